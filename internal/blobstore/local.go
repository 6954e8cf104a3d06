package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes blobs into a single directory on disk.
type LocalStore struct {
	dir    string
	prefix string
}

// NewLocalStore creates dir when missing. References are "{base(dir)}/{name}",
// e.g. "uploads/plan_20250115_103000_ab12cd34.pdf".
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	prefix := filepath.Base(filepath.Clean(dir))
	if prefix == "." || prefix == string(filepath.Separator) {
		prefix = ""
	}
	return &LocalStore{dir: dir, prefix: prefix}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Put streams into a temp file, fsyncs, then renames into place so readers
// never observe a partial blob.
func (s *LocalStore) Put(ctx context.Context, content io.Reader, name, _ string) (Object, error) {
	if !validName(name) {
		return Object{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	fullPath := filepath.Join(s.dir, name)
	tmpPath := fullPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return Object{}, fmt.Errorf("create temp blob: %w", err)
	}

	size, err := io.Copy(file, content)
	if err != nil {
		file.Close()
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("write blob: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("fsync blob: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("rename blob: %w", err)
	}

	reference := name
	if s.prefix != "" {
		reference = s.prefix + "/" + name
	}
	return Object{Reference: reference, Size: size}, nil
}
