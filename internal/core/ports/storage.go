package ports

import (
	"context"
	"io"
)

// FileStorage stores uploaded blobs in named buckets.
type FileStorage interface {
	// UploadFile stores the blob and returns its public URL.
	UploadFile(ctx context.Context, bucket, path string, blob io.Reader, contentType string) (string, error)
	OpenFile(ctx context.Context, bucket, path string) (io.ReadCloser, string, error)
}

// KeyValueStore is one of the locally persisted string stores the identity
// client keeps its tokens in.
type KeyValueStore interface {
	Name() string
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
