package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

const defaultContentType = "application/octet-stream"

// GridFSStorage keeps uploaded files in one GridFS bucket per storage bucket
// and serves them under <siteURL>/media/<bucket>/<path>.
type GridFSStorage struct {
	db      *mongo.Database
	siteURL string
}

var _ ports.FileStorage = (*GridFSStorage)(nil)

func NewGridFSStorage(db *mongo.Database, siteURL string) *GridFSStorage {
	return &GridFSStorage{db: db, siteURL: strings.TrimRight(siteURL, "/")}
}

// UploadFile stores r under path in bucket and returns its public URL.
func (s *GridFSStorage) UploadFile(ctx context.Context, bucket, path string, r io.Reader, contentType string) (string, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	stream, err := b.OpenUploadStream(path, opts)
	if err != nil {
		return "", fmt.Errorf("gridfs open upload: %w", err)
	}
	if err := applyDeadline(ctx, stream.SetWriteDeadline); err != nil {
		_ = stream.Abort()
		return "", err
	}
	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Abort()
		return "", fmt.Errorf("gridfs upload: %w", err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("gridfs close upload: %w", err)
	}

	return s.publicURL(bucket, path), nil
}

// OpenFile returns the newest revision of path and its content type.
// The caller closes the reader.
func (s *GridFSStorage) OpenFile(ctx context.Context, bucket, path string) (io.ReadCloser, string, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, "", err
	}

	stream, err := b.OpenDownloadStreamByName(path)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", domain.ErrFileNotFound
		}
		return nil, "", fmt.Errorf("gridfs open download: %w", err)
	}
	if err := applyDeadline(ctx, stream.SetReadDeadline); err != nil {
		_ = stream.Close()
		return nil, "", err
	}

	contentType := defaultContentType
	var meta struct {
		ContentType string `bson:"content_type"`
	}
	if raw := stream.GetFile().Metadata; raw != nil {
		if err := bson.Unmarshal(raw, &meta); err == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	return stream, contentType, nil
}

func (s *GridFSStorage) bucket(name string) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket %q: %w", name, err)
	}
	return b, nil
}

func (s *GridFSStorage) publicURL(bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.siteURL + "/media/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// applyDeadline carries the context deadline, if any, onto a GridFS stream.
func applyDeadline(ctx context.Context, set func(t time.Time) error) error {
	if d, ok := ctx.Deadline(); ok {
		if err := set(d); err != nil {
			return fmt.Errorf("gridfs deadline: %w", err)
		}
	}
	return nil
}
