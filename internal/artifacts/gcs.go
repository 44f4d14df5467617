package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSBlobs stores artifacts as objects in a Cloud Storage bucket
type GCSBlobs struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSBlobs connects with application default credentials
func NewGCSBlobs(ctx context.Context, bucket, prefix string) (*GCSBlobs, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSBlobs{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
	}, nil
}

// ObjectName maps an artifact key to its object name
func (g *GCSBlobs) ObjectName(key string) string {
	if g.prefix == "" {
		return key
	}
	return path.Join(g.prefix, key)
}

func (g *GCSBlobs) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	object := g.ObjectName(key)
	w := g.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", g.name, object, describe(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", g.name, object, describe(err))
	}
	return fmt.Sprintf("gs://%s/%s", g.name, object), nil
}

func (g *GCSBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	object := g.ObjectName(key)
	r, err := g.bucket.Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, object)
	}
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", g.name, object, describe(err))
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Close releases the storage client
func (g *GCSBlobs) Close() error {
	return g.client.Close()
}

func describe(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("googleapi %d: %s: %w", gerr.Code, gerr.Message, err)
	}
	return err
}
