package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Memory is an in-process ArtifactStore for development and tests. It holds
// artifact bytes in a map keyed by gs://-style references so the rest of the
// pipeline is exercised unchanged.
type Memory struct {
	bucket string

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory(bucket string) *Memory {
	if bucket == "" {
		bucket = "local"
	}
	return &Memory{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

func (s *Memory) Upload(ctx context.Context, localPath, objectName, contentType string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	s.mu.Lock()
	s.objects[objectName] = data
	s.mu.Unlock()

	return FormatRef(s.bucket, objectName), nil
}

func (s *Memory) UploadReader(ctx context.Context, r io.Reader, objectName, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload body: %w", err)
	}

	s.mu.Lock()
	s.objects[objectName] = data
	s.mu.Unlock()

	return FormatRef(s.bucket, objectName), nil
}

func (s *Memory) Download(ctx context.Context, ref, localPath string) error {
	_, object, err := ParseRef(ref)
	if err != nil {
		return err
	}

	s.mu.RLock()
	data, ok := s.objects[object]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return os.WriteFile(localPath, data, 0644)
}

func (s *Memory) SignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	_, object, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	_, ok := s.objects[object]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object), nil
}

// Put seeds an object directly; test helper.
func (s *Memory) Put(objectName string, data []byte) string {
	s.mu.Lock()
	s.objects[objectName] = data
	s.mu.Unlock()
	return FormatRef(s.bucket, objectName)
}

// Get returns a stored object's bytes; test helper.
func (s *Memory) Get(objectName string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectName]
	return data, ok
}

var _ ArtifactStore = (*Memory)(nil)
