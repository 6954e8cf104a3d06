// Package blobstore persists uploaded bytes and hands back an opaque
// reference that is stored on documents and failure reports.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid blob name")

// Object is the outcome of a successful Put.
type Object struct {
	Reference string
	Size      int64
}

// Store accepts a byte stream under a suggested name.
type Store interface {
	Put(ctx context.Context, content io.Reader, name, contentType string) (Object, error)
}

// validName rejects names that would escape the store's namespace.
func validName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}
