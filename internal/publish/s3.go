// Package publish uploads finished recordings to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/iksnae/screen-session/internal"
)

// partSize is the multipart chunk size; recordings above it go up in parts
const partSize = 5 * 1024 * 1024

// objectUploader is the part of manager.Uploader the publisher needs
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Result describes the objects written for one recording
type Result struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	MediaKey     string `json:"media_key" yaml:"media_key"`
	MediaURL     string `json:"media_url" yaml:"media_url"`
	ThumbnailKey string `json:"thumbnail_key,omitempty" yaml:"thumbnail_key,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" yaml:"thumbnail_url,omitempty"`
}

// Publisher uploads recordings and their thumbnails to one bucket
type Publisher struct {
	uploader objectUploader
	bucket   string
	prefix   string
	log      *zap.Logger
}

// NewPublisher builds an S3 client from cfg. Static credentials come from the config or
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY; otherwise the default credential chain applies.
// A custom endpoint switches to path-style addressing for MinIO and similar servers.
func NewPublisher(ctx context.Context, cfg internal.PublishConfig, logger *zap.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("publish: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	} else {
		logger.Warn("S3 publisher using default credential chain")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	logger.Info("S3 publisher ready",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint))
	return newPublisher(uploader, cfg, logger), nil
}

func newPublisher(up objectUploader, cfg internal.PublishConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		uploader: up,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		log:      logger.With(zap.String("component", "publish")),
	}
}

// ObjectKey returns the media key for rec: <prefix>/<id>.<ext>
func ObjectKey(prefix string, rec *internal.Recording) string {
	return path.Join(strings.Trim(prefix, "/"), fmt.Sprintf("%d.%s", rec.ID, rec.Extension()))
}

// ThumbnailKey returns the thumbnail key for rec: <prefix>/<id>_thumbnail.jpg
func ThumbnailKey(prefix string, rec *internal.Recording) string {
	return path.Join(strings.Trim(prefix, "/"), fmt.Sprintf("%d_thumbnail.jpg", rec.ID))
}

// Publish uploads the recording bytes and, when present, its thumbnail. rec must carry Data.
func (p *Publisher) Publish(ctx context.Context, rec *internal.Recording, thumb []byte) (*Result, error) {
	if rec == nil || len(rec.Data) == 0 {
		return nil, errors.New("publish: recording has no data")
	}
	res := &Result{Bucket: p.bucket, MediaKey: ObjectKey(p.prefix, rec)}

	loc, err := p.put(ctx, res.MediaKey, rec.MimeType, rec.Data)
	if err != nil {
		return nil, err
	}
	res.MediaURL = loc
	p.log.Info("recording uploaded",
		zap.Int64("id", rec.ID),
		zap.String("key", res.MediaKey),
		zap.Int("bytes", len(rec.Data)))

	if len(thumb) > 0 {
		res.ThumbnailKey = ThumbnailKey(p.prefix, rec)
		loc, err := p.put(ctx, res.ThumbnailKey, "image/jpeg", thumb)
		if err != nil {
			return res, err
		}
		res.ThumbnailURL = loc
	}
	return res, nil
}

func (p *Publisher) put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	out, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return out.Location, nil
}
