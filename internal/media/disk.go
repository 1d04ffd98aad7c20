package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalDisk is a Blob rooted at a directory, served by the API under
// publicURL.
type LocalDisk struct {
	dir       string
	publicURL string
}

// NewLocalDisk creates dir if needed.
func NewLocalDisk(dir, publicURL string) (*LocalDisk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalDisk{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir is the root directory, for serving the files.
func (d *LocalDisk) Dir() string { return d.dir }

func (d *LocalDisk) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(d.dir, clean), nil
}

// Put writes to a temporary file and renames it into place.
func (d *LocalDisk) Put(_ context.Context, key string, r io.Reader) error {
	dst, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Delete removes key. A missing file is not an error.
func (d *LocalDisk) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *LocalDisk) URL(key string) string {
	return d.publicURL + "/" + strings.TrimLeft(key, "/")
}

var _ Blob = (*LocalDisk)(nil)
