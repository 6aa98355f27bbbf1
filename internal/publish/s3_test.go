package publish

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iksnae/screen-session/internal"
)

type upload struct {
	bucket      string
	key         string
	contentType string
	length      int64
	body        string
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []upload
	failKey string
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	if key == f.failKey {
		return nil, errors.New("access denied")
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, upload{
		bucket:      aws.ToString(in.Bucket),
		key:         key,
		contentType: aws.ToString(in.ContentType),
		length:      aws.ToInt64(in.ContentLength),
		body:        string(body),
	})
	f.mu.Unlock()
	return &manager.UploadOutput{Location: "https://bucket.example/" + key}, nil
}

func TestObjectKey(t *testing.T) {
	video := &internal.Recording{ID: 1700000000000, MimeType: "video/mp4"}
	audio := &internal.Recording{ID: 42, MimeType: "audio/webm;codecs=opus"}

	tests := []struct {
		prefix string
		rec    *internal.Recording
		want   string
		thumb  string
	}{
		{"recordings", video, "recordings/1700000000000.mp4", "recordings/1700000000000_thumbnail.jpg"},
		{"/recordings/", video, "recordings/1700000000000.mp4", "recordings/1700000000000_thumbnail.jpg"},
		{"", audio, "42.webm", "42_thumbnail.jpg"},
		{"a/b", audio, "a/b/42.webm", "a/b/42_thumbnail.jpg"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.rec); got != tt.want {
			t.Errorf("ObjectKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
		if got := ThumbnailKey(tt.prefix, tt.rec); got != tt.thumb {
			t.Errorf("ThumbnailKey(%q) = %q, want %q", tt.prefix, got, tt.thumb)
		}
	}
}

func TestPublishUploadsMediaAndThumbnail(t *testing.T) {
	up := &fakeUploader{}
	p := newPublisher(up, internal.PublishConfig{Bucket: "media", Prefix: "recordings"}, nil)
	rec := &internal.Recording{ID: 7, MimeType: "video/mp4", Data: []byte("moov")}

	res, err := p.Publish(context.Background(), rec, []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(up.uploads) != 2 {
		t.Fatalf("Expected 2 uploads, got %d", len(up.uploads))
	}
	media := up.uploads[0]
	if media.bucket != "media" || media.key != "recordings/7.mp4" || media.contentType != "video/mp4" {
		t.Errorf("Unexpected media upload: %+v", media)
	}
	if media.body != "moov" || media.length != 4 {
		t.Errorf("Media body = %q (%d)", media.body, media.length)
	}
	if thumb := up.uploads[1]; thumb.key != "recordings/7_thumbnail.jpg" || thumb.contentType != "image/jpeg" {
		t.Errorf("Unexpected thumbnail upload: %+v", thumb)
	}
	if res.MediaURL != "https://bucket.example/recordings/7.mp4" {
		t.Errorf("MediaURL = %q", res.MediaURL)
	}
	if res.ThumbnailKey == "" || res.ThumbnailURL == "" {
		t.Errorf("Expected thumbnail in result: %+v", res)
	}
}

func TestPublishWithoutThumbnail(t *testing.T) {
	up := &fakeUploader{}
	p := newPublisher(up, internal.PublishConfig{Bucket: "media"}, nil)
	rec := &internal.Recording{ID: 9, MimeType: "audio/webm", Data: []byte("opus")}

	res, err := p.Publish(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(up.uploads) != 1 || up.uploads[0].key != "9.webm" {
		t.Errorf("Unexpected uploads: %+v", up.uploads)
	}
	if res.ThumbnailKey != "" {
		t.Errorf("ThumbnailKey = %q, want empty", res.ThumbnailKey)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Run("empty recording", func(t *testing.T) {
		p := newPublisher(&fakeUploader{}, internal.PublishConfig{Bucket: "media"}, nil)
		if _, err := p.Publish(context.Background(), &internal.Recording{ID: 1}, nil); err == nil {
			t.Error("Expected error for recording without data")
		}
	})

	t.Run("upload failure", func(t *testing.T) {
		up := &fakeUploader{failKey: "1.mp4"}
		p := newPublisher(up, internal.PublishConfig{Bucket: "media"}, nil)
		rec := &internal.Recording{ID: 1, MimeType: "video/mp4", Data: []byte("x")}
		if _, err := p.Publish(context.Background(), rec, nil); err == nil {
			t.Error("Expected upload error")
		}
	})
}

func TestNewPublisher(t *testing.T) {
	if _, err := NewPublisher(context.Background(), internal.PublishConfig{}, nil); err == nil {
		t.Error("Expected error without bucket")
	}

	cfg := internal.PublishConfig{
		Bucket:          "media",
		Region:          "us-east-1",
		Prefix:          "recordings",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	}
	p, err := NewPublisher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if p.bucket != "media" || p.prefix != "recordings" {
		t.Errorf("Publisher = %+v", p)
	}
}
