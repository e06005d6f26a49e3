package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCS is the Google Cloud Storage implementation of ArtifactStore.
// The bucket is fixed at construction; cross-bucket references (for example a
// generated video parked in another bucket by the generation service) are
// still resolvable through Download.
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS creates a GCS-backed artifact store using application default
// credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (s *GCS) Close() error {
	return s.client.Close()
}

func (s *GCS) Upload(ctx context.Context, localPath, objectName, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	return s.UploadReader(ctx, f, objectName, contentType)
}

func (s *GCS) UploadReader(ctx context.Context, r io.Reader, objectName, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	// Cache-friendly headers so the player can range-request the file
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", objectName, err)
	}

	ref := FormatRef(s.bucket, objectName)
	log.Printf("[Storage] Uploaded %s (%s)", ref, contentType)
	return ref, nil
}

func (s *GCS) Download(ctx context.Context, ref, localPath string) error {
	bucket, object, err := ParseRef(ref)
	if err != nil {
		return err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("failed to open %s: %w", ref, err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to download %s: %w", ref, err)
	}

	log.Printf("[Storage] Downloaded %s to %s", ref, localPath)
	return nil
}

func (s *GCS) SignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	bucket, object, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	url, err := s.client.Bucket(bucket).SignedURL(object, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", ref, err)
	}

	log.Printf("[Storage] Signed URL for %s (expires in %s)", object, expiry)
	return url, nil
}

var _ ArtifactStore = (*GCS)(nil)
