package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const publicURLBase = "https://storage.googleapis.com"

type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStorage(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Publish uploads localPath as <prefix>/<runID>/<file> and returns the
// object's public URL.
func (s *GCSStorage) Publish(ctx context.Context, runID, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := objectName(s.prefix, runID, filepath.Base(localPath))
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType(localPath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	slog.Debug("Published artifact", "bucket", s.bucket, "object", name)
	return ObjectURL(s.bucket, name), nil
}

// Clean deletes objects under the prefix created before the cutoff.
func (s *GCSStorage) Clean(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	bkt := s.client.Bucket(s.bucket)

	query := &storage.Query{Prefix: s.prefix}
	if err := query.SetAttrSelection([]string{"Name", "Created"}); err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	removed := 0
	it := bkt.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("failed to list objects: %w", err)
		}
		if !attrs.Created.Before(cutoff) {
			continue
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", attrs.Name, err)
		}
		removed++
	}

	return removed, nil
}

func objectName(prefix, runID, file string) string {
	return path.Join(prefix, runID, file)
}

func ObjectURL(bucket, name string) string {
	return publicURLBase + "/" + bucket + "/" + name
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".html":
		return "text/html; charset=utf-8"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
