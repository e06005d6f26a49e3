// Package storage provides the artifact store: binary audio/video artifacts
// addressed by opaque gs:// references, with time-limited retrievable links
// for finished videos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// Folders within the bucket, mirroring what the frontend expects.
	AudioFolder = "audio/"
	VideoFolder = "video/"
)

// ErrNotFound is returned when a reference does not resolve to an artifact.
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore stores and fetches binary artifacts by opaque reference and
// mints externally retrievable links for finished artifacts. Content is
// preserved byte-exact; content type metadata must be set so mobile browsers
// play final videos (video/mp4).
type ArtifactStore interface {
	// Upload stores the local file under objectName and returns its reference.
	Upload(ctx context.Context, localPath, objectName, contentType string) (string, error)

	// UploadReader stores the reader's contents under objectName.
	UploadReader(ctx context.Context, r io.Reader, objectName, contentType string) (string, error)

	// Download fetches the artifact behind ref into localPath.
	Download(ctx context.Context, ref, localPath string) error

	// SignedURL returns a time-limited retrievable link for ref.
	SignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

// ParseRef splits a gs://bucket/object reference.
func ParseRef(ref string) (bucket, object string, err error) {
	if !strings.HasPrefix(ref, "gs://") {
		return "", "", fmt.Errorf("invalid storage reference %q: missing gs:// scheme", ref)
	}
	rest := strings.TrimPrefix(ref, "gs://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage reference %q", ref)
	}
	return parts[0], parts[1], nil
}

// FormatRef builds a gs://bucket/object reference.
func FormatRef(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}
