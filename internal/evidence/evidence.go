// Package evidence stores screenshot artifacts captured during registration
// attempts and returns stable references for audit records.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists one screenshot and returns a reference to it.
type Store interface {
	Save(ctx context.Context, eventID, label string, png []byte) (string, error)
}

// S3Store writes screenshots to an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3 evidence store. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Store(ctx context.Context, bucket, region, endpoint string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
	}, nil
}

// Save uploads the screenshot and returns its s3:// reference.
func (s *S3Store) Save(ctx context.Context, eventID, label string, png []byte) (string, error) {
	key := objectKey(eventID, label)
	contentType := "image/png"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(png),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// DirStore writes screenshots to a local directory. It is the fallback when
// no bucket is configured.
type DirStore struct {
	dir string
}

// NewDirStore creates the directory if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Save writes the screenshot and returns its file path.
func (d *DirStore) Save(_ context.Context, eventID, label string, png []byte) (string, error) {
	path := filepath.Join(d.dir, objectKey(eventID, label))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

func objectKey(eventID, label string) string {
	return filepath.ToSlash(filepath.Join(eventID, fmt.Sprintf("%s-%s.png", time.Now().UTC().Format("20060102T150405"), label)))
}
