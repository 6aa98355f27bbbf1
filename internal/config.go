package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SCREEN_SESSION_"

// Detector failure policies
const (
	DetectorFailureAbort  = "abort"
	DetectorFailureScreen = "screen"
)

// Config holds every tunable of the recorder. Zero values are replaced by DefaultConfig.
type Config struct {
	Mode        Mode            `yaml:"mode"`
	FPS         int             `yaml:"fps"`
	DetectEvery int             `yaml:"detect_every"`
	Storage     string          `yaml:"storage"`
	Canvas      CanvasConfig    `yaml:"canvas"`
	Capture     CaptureConfig   `yaml:"capture"`
	Overlay     OverlayConfig   `yaml:"overlay"`
	Encoder     EncoderConfig   `yaml:"encoder"`
	Thumbnail   ThumbnailConfig `yaml:"thumbnail"`
	Server      ServerConfig    `yaml:"server"`
	Publish     PublishConfig   `yaml:"publish"`
}

// CanvasConfig sizes the composite canvas
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CaptureConfig names the platform devices handed to ffmpeg
type CaptureConfig struct {
	Display      string `yaml:"display"`
	Camera       string `yaml:"camera"`
	Microphone   string `yaml:"microphone"`
	CameraWidth  int    `yaml:"camera_width"`
	CameraHeight int    `yaml:"camera_height"`
}

// OverlayConfig controls the face-landmark overlay
type OverlayConfig struct {
	Scale                  float64       `yaml:"scale"`
	Offset                 float64       `yaml:"offset"`
	DetectDelay            time.Duration `yaml:"detect_delay"`
	OnDetectorFailure      string        `yaml:"on_detector_failure"`
	DetectorCommand        []string      `yaml:"detector_command"`
	MaxFaces               int           `yaml:"max_faces"`
	MinDetectionConfidence float64       `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64       `yaml:"min_tracking_confidence"`
}

// EncoderConfig selects the output container and encoder process
type EncoderConfig struct {
	FFmpegPath      string        `yaml:"ffmpeg_path"`
	VideoMimeType   string        `yaml:"video_mime_type"`
	AudioMimeType   string        `yaml:"audio_mime_type"`
	Timeslice       time.Duration `yaml:"timeslice"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ThumbnailConfig sizes the preview image
type ThumbnailConfig struct {
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Quality int           `yaml:"quality"`
	Wait    time.Duration `yaml:"wait"`
}

// ServerConfig configures the local library server
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// PublishConfig configures uploads to S3-compatible storage
type PublishConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Mode:        ModeScreen,
		FPS:         60,
		DetectEvery: 8,
		Canvas:      CanvasConfig{Width: 1920, Height: 1080},
		Capture: CaptureConfig{
			CameraWidth:  640,
			CameraHeight: 480,
		},
		Overlay: OverlayConfig{
			Scale:                  0.2,
			Offset:                 0.8,
			DetectDelay:            time.Second,
			OnDetectorFailure:      DetectorFailureAbort,
			MaxFaces:               3,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
		},
		Encoder: EncoderConfig{
			FFmpegPath:      "ffmpeg",
			VideoMimeType:   "video/mp4",
			AudioMimeType:   "audio/webm",
			Timeslice:       time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Thumbnail: ThumbnailConfig{Width: 320, Height: 180, Quality: 85, Wait: 2 * time.Second},
		Server:    ServerConfig{Addr: "127.0.0.1:8787"},
		Publish:   PublishConfig{Region: "us-east-1", Prefix: "recordings"},
	}
}

// LoadConfig builds the effective configuration: defaults, then the YAML file at path
// (missing file is fine), then .env and SCREEN_SESSION_* environment overrides.
func LoadConfig(path, envFile string) (Config, error) {
	cfg := DefaultConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			LogDebug("Loaded config from %s", path)
		case errors.Is(err, os.ErrNotExist):
			LogDebug("No config file at %s, using defaults", path)
		default:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := getEnv("MODE", ""); v != "" {
		mode, err := ParseMode(v)
		if err != nil {
			return err
		}
		c.Mode = mode
	}
	c.FPS = getEnvInt("FPS", c.FPS)
	c.DetectEvery = getEnvInt("DETECT_EVERY", c.DetectEvery)
	c.Storage = getEnv("STORAGE", c.Storage)
	c.Capture.Display = getEnv("DISPLAY_DEVICE", c.Capture.Display)
	c.Capture.Camera = getEnv("CAMERA_DEVICE", c.Capture.Camera)
	c.Capture.Microphone = getEnv("MICROPHONE_DEVICE", c.Capture.Microphone)
	c.Overlay.OnDetectorFailure = getEnv("ON_DETECTOR_FAILURE", c.Overlay.OnDetectorFailure)
	if v := getEnv("DETECTOR_COMMAND", ""); v != "" {
		c.Overlay.DetectorCommand = strings.Fields(v)
	}
	c.Encoder.FFmpegPath = getEnv("FFMPEG", c.Encoder.FFmpegPath)
	c.Encoder.VideoMimeType = getEnv("VIDEO_MIME_TYPE", c.Encoder.VideoMimeType)
	c.Encoder.AudioMimeType = getEnv("AUDIO_MIME_TYPE", c.Encoder.AudioMimeType)
	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Publish.Bucket = getEnv("S3_BUCKET", c.Publish.Bucket)
	c.Publish.Region = getEnv("S3_REGION", c.Publish.Region)
	c.Publish.Endpoint = getEnv("S3_ENDPOINT", c.Publish.Endpoint)
	c.Publish.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.Publish.AccessKeyID)
	c.Publish.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.Publish.SecretAccessKey)
	return nil
}

// fillDefaults restores defaults for fields a partial YAML file zeroed out
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.FPS == 0 {
		c.FPS = d.FPS
	}
	if c.DetectEvery == 0 {
		c.DetectEvery = d.DetectEvery
	}
	if c.Canvas.Width == 0 || c.Canvas.Height == 0 {
		c.Canvas = d.Canvas
	}
	if c.Capture.CameraWidth == 0 || c.Capture.CameraHeight == 0 {
		c.Capture.CameraWidth, c.Capture.CameraHeight = d.Capture.CameraWidth, d.Capture.CameraHeight
	}
	if c.Overlay.OnDetectorFailure == "" {
		c.Overlay.OnDetectorFailure = d.Overlay.OnDetectorFailure
	}
	if c.Overlay.MaxFaces == 0 {
		c.Overlay.MaxFaces = d.Overlay.MaxFaces
	}
	if c.Encoder.FFmpegPath == "" {
		c.Encoder.FFmpegPath = d.Encoder.FFmpegPath
	}
	if c.Encoder.VideoMimeType == "" {
		c.Encoder.VideoMimeType = d.Encoder.VideoMimeType
	}
	if c.Encoder.AudioMimeType == "" {
		c.Encoder.AudioMimeType = d.Encoder.AudioMimeType
	}
	if c.Encoder.ShutdownTimeout == 0 {
		c.Encoder.ShutdownTimeout = d.Encoder.ShutdownTimeout
	}
	if c.Thumbnail.Width == 0 || c.Thumbnail.Height == 0 {
		c.Thumbnail.Width, c.Thumbnail.Height = d.Thumbnail.Width, d.Thumbnail.Height
	}
	if c.Thumbnail.Quality == 0 {
		c.Thumbnail.Quality = d.Thumbnail.Quality
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Publish.Prefix == "" {
		c.Publish.Prefix = d.Publish.Prefix
	}
}

// Validate fails fast on values the pipeline cannot run with
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.FPS < 1 || c.FPS > 60 {
		return fmt.Errorf("fps must be between 1 and 60, got %d", c.FPS)
	}
	if c.DetectEvery < 1 {
		return fmt.Errorf("detect_every must be at least 1, got %d", c.DetectEvery)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 || c.Canvas.Width%2 != 0 || c.Canvas.Height%2 != 0 {
		return fmt.Errorf("canvas size must be positive and even, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Overlay.Scale <= 0 || c.Overlay.Scale > 1 {
		return fmt.Errorf("overlay.scale must be in (0, 1], got %v", c.Overlay.Scale)
	}
	if c.Overlay.Offset < 0 || c.Overlay.Offset+c.Overlay.Scale > 1+1e-9 {
		return fmt.Errorf("overlay.offset must keep the overlay on the canvas, got offset %v scale %v", c.Overlay.Offset, c.Overlay.Scale)
	}
	switch c.Overlay.OnDetectorFailure {
	case DetectorFailureAbort, DetectorFailureScreen:
	default:
		return fmt.Errorf("overlay.on_detector_failure must be %q or %q, got %q",
			DetectorFailureAbort, DetectorFailureScreen, c.Overlay.OnDetectorFailure)
	}
	if c.Mode == ModeFace && len(c.Overlay.DetectorCommand) == 0 {
		return errors.New("face mode requires overlay.detector_command")
	}
	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		return fmt.Errorf("thumbnail size must be positive, got %dx%d", c.Thumbnail.Width, c.Thumbnail.Height)
	}
	if c.Thumbnail.Quality < 1 || c.Thumbnail.Quality > 100 {
		return fmt.Errorf("thumbnail.quality must be between 1 and 100, got %d", c.Thumbnail.Quality)
	}
	if c.Encoder.Timeslice < 0 {
		return fmt.Errorf("encoder.timeslice must not be negative, got %v", c.Encoder.Timeslice)
	}
	if _, err := LookupFormat(c.MimeType()); err != nil {
		return err
	}
	return nil
}

// MimeType returns the output container for the configured mode
func (c Config) MimeType() string {
	if c.Mode == ModeAudio {
		return c.Encoder.AudioMimeType
	}
	return c.Encoder.VideoMimeType
}

// FramePeriod returns the frame clock period
func (c Config) FramePeriod() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FPS)
}

// DetectorOptions returns the detector construction options
func (c Config) DetectorOptions() DetectorOptions {
	return DetectorOptions{
		MaxFaces:               c.Overlay.MaxFaces,
		MinDetectionConfidence: c.Overlay.MinDetectionConfidence,
		MinTrackingConfidence:  c.Overlay.MinTrackingConfidence,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		LogWarn("Ignoring %s%s=%q: not an integer", envPrefix, key, v)
		return fallback
	}
	return n
}
