package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediadrop/portal/internal/model"
)

// LocalBackend stores objects as files under a root directory. Keys map to
// root-relative paths; absolute keys are used verbatim so that finalization
// can read straight out of the upload daemon's data directory.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *LocalBackend) Write(_ context.Context, key string, body io.Reader, _ string) error {
	dst := b.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return nil
}

func (b *LocalBackend) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (b *LocalBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Rename copies and then deletes rather than calling os.Rename: the upload
// daemon's data directory and the organized tree are commonly separate
// volume mounts, where an atomic rename fails with EXDEV.
func (b *LocalBackend) Rename(ctx context.Context, oldKey, newKey string) error {
	src, err := os.Open(b.path(oldKey))
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", oldKey, err)
	}
	defer src.Close()

	if err := b.Write(ctx, newKey, src, ""); err != nil {
		return err
	}

	if err := os.Remove(b.path(oldKey)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceDelete, oldKey, err)
	}

	return nil
}

func (b *LocalBackend) List(_ context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, strings.ReplaceAll(rel, string(filepath.Separator), "/"))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list storage root: %w", err)
	}
	return keys, nil
}

func (b *LocalBackend) Kind() string {
	return model.StorageLocal
}
