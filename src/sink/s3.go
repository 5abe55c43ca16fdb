package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/config"
)

// objectPutter is the part of *minio.Client the sink needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Sink uploads the export to an S3-compatible bucket as <prefix>/stats_<generated_at>.json.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Sink connects to the endpoint described by cfg.
func NewS3Sink(cfg config.S3) (*S3Sink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Sink) Name() string { return "s3" }

// Key returns the object key for exp.
func (s *S3Sink) Key(exp *analysis.Export) string {
	stamp := exp.GeneratedAt
	if t, err := analysis.ParseTimestamp(exp.GeneratedAt); err == nil {
		stamp = t.UTC().Format("20060102T150405Z")
	}
	return path.Join(s.prefix, "stats_"+stamp+".json")
}

func (s *S3Sink) Write(ctx context.Context, exp *analysis.Export) error {
	body, err := exp.JSON()
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	key := s.Key(exp)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

var _ objectPutter = (*minio.Client)(nil)
