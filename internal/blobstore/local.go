package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStore keeps blobs as files below a base directory.
type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(baseDir string, logger *zap.Logger) (*LocalStore, error) {
	if baseDir == "" {
		return nil, errors.New("blob base directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.HasPrefix(baseDir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[1:])
	}
	baseDir = filepath.Clean(baseDir)
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", baseDir, err)
	}
	return &LocalStore{baseDir: baseDir, logger: logger}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

// Put writes the blob through a temp file and renames it into place so
// readers never observe a partial file.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return 0, fmt.Errorf("rename blob: %w", err)
	}

	s.logger.Debug("blob stored",
		zap.String("storage_key", key),
		zap.Int64("size", written),
		zap.String("content_type", contentType),
	)
	return written, nil
}

// Open opens a stored blob for reading.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the blob and prunes empty parent directories up to the base.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob %s: %w", key, err)
	}

	for dir := filepath.Dir(fullPath); dir != s.baseDir && strings.HasPrefix(dir, s.baseDir); dir = filepath.Dir(dir) {
		// Remove fails on non-empty directories, which ends the walk.
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

var _ Store = (*LocalStore)(nil)
