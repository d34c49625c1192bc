// Package blob stores uploaded images in an S3-compatible bucket and hands
// back their public URLs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/huzaifasad/backendforfamily/internal/config"
)

var (
	ErrDisabled        = errors.New("blob storage is not configured")
	ErrUnsupportedType = errors.New("only jpg, jpeg and png images are allowed")
	ErrTooLarge        = errors.New("file is too large")
)

var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Store struct {
	client  s3Client
	cfg     config.S3Config
	maxSize int64
}

// New returns a store for cfg. Without a bucket every upload fails with
// ErrDisabled.
func New(cfg config.S3Config) *Store {
	s := &Store{cfg: cfg, maxSize: cfg.MaxUploadSize}
	if cfg.Enabled() {
		s.client = NewS3Client(cfg)
	}
	return s
}

// NewS3Client builds a client for cfg. A custom endpoint switches to path-style
// addressing for MinIO and similar servers.
func NewS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.Endpoint != "",
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *Store) Enabled() bool {
	return s.client != nil
}

// MaxSize is the largest accepted upload in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Upload stores body under folder with a random name keeping filename's
// extension, and returns the object's public URL.
func (s *Store) Upload(ctx context.Context, folder, filename string, body io.Reader) (string, error) {
	if s.client == nil {
		return "", ErrDisabled
	}
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedTypes[ext]
	if !ok {
		return "", ErrUnsupportedType
	}

	limit := s.maxSize
	if limit <= 0 {
		limit = 5 << 20
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}

	key := path.Join(folder, uuid.NewString()+ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes the object behind a URL previously returned by Upload.
// URLs from elsewhere are ignored.
func (s *Store) Delete(ctx context.Context, url string) error {
	if s.client == nil || url == "" {
		return nil
	}
	prefix := s.URL("")
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	key := strings.TrimPrefix(url, prefix)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *Store) URL(key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}
