package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSBlobs stores artifacts as files below a root directory
type FSBlobs struct {
	root string
}

// NewFSBlobs creates a filesystem backend; keys are relative to root
func NewFSBlobs(root string) *FSBlobs {
	return &FSBlobs{root: root}
}

func (f *FSBlobs) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *FSBlobs) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return p, nil
}

func (f *FSBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
	}
	return data, err
}
