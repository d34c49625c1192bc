package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/huzaifasad/backendforfamily/internal/config"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), contentTypes: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.contentTypes[*input.Key] = *input.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(mock *mockS3Client) *Store {
	return &Store{
		client:  mock,
		cfg:     config.S3Config{Bucket: "family", PublicBaseURL: "https://cdn.example.com/"},
		maxSize: 16,
	}
}

func TestUpload(t *testing.T) {
	mock := newMockS3()
	s := newTestStore(mock)

	url, err := s.Upload(context.Background(), "profile_pictures", "Me.PNG", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "https://cdn.example.com/profile_pictures/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q", url)
	}

	key := strings.TrimPrefix(url, "https://cdn.example.com/")
	if got := string(mock.objects[key]); got != "png-bytes" {
		t.Errorf("stored = %q, want png-bytes", got)
	}
	if mock.contentTypes[key] != "image/png" {
		t.Errorf("content type = %q", mock.contentTypes[key])
	}

	if err := s.Delete(context.Background(), url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := mock.objects[key]; ok {
		t.Error("object should be deleted")
	}
}

func TestUploadRejects(t *testing.T) {
	s := newTestStore(newMockS3())

	if _, err := s.Upload(context.Background(), "x", "doc.pdf", strings.NewReader("a")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("pdf err = %v, want ErrUnsupportedType", err)
	}
	big := bytes.Repeat([]byte("a"), 17)
	if _, err := s.Upload(context.Background(), "x", "a.jpg", bytes.NewReader(big)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("big err = %v, want ErrTooLarge", err)
	}
}

func TestUploadPutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("connection refused")
	s := newTestStore(mock)

	if _, err := s.Upload(context.Background(), "x", "a.jpg", strings.NewReader("a")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDisabled(t *testing.T) {
	s := New(config.S3Config{})
	if s.Enabled() {
		t.Fatal("expected disabled store without bucket")
	}
	if _, err := s.Upload(context.Background(), "x", "a.jpg", strings.NewReader("a")); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		cfg  config.S3Config
		want string
	}{
		{config.S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com"}, "https://cdn.example.com/k.png"},
		{config.S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b/k.png"},
		{config.S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/k.png"},
	}
	for _, tt := range tests {
		s := &Store{cfg: tt.cfg}
		if got := s.URL("k.png"); got != tt.want {
			t.Errorf("URL = %q, want %q", got, tt.want)
		}
	}
}
