// Package blobstore stores the original bytes of uploaded documents.
//
// Keys are slash-separated relative paths ("<workspace>/<document>/<name>").
// Two backends are provided: LocalStore on the filesystem and S3Store on any
// S3-compatible object store.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned by Open when no blob exists under the key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is key-addressed binary storage.
type Store interface {
	// Put writes r under key, replacing any existing blob, and returns the
	// number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)

	// Open returns a reader for the blob. Returns ErrNotFound if absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Key builds the storage key for a document's original file.
func Key(workspaceID, documentID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		name = "content"
	}
	return workspaceID + "/" + documentID + "/" + name
}

// cleanKey normalizes key and rejects anything that could leave the store root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
