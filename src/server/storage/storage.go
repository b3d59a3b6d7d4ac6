package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is where raw snapshot payloads are archived.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Ping(ctx context.Context) error
}
