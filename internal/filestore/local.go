package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Local stores uploads on the local filesystem under a single directory.
type Local struct {
	dir string
}

var _ Store = (*Local)(nil)

// NewLocal creates the upload directory if needed and returns a local
// store rooted there.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// Save writes the upload to disk under a fresh ID.
func (l *Local) Save(_ context.Context, filename string, r io.Reader) (FileInfo, error) {
	id := newFileID(filename)
	path := filepath.Join(l.dir, id)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return FileInfo{}, fmt.Errorf("failed to write upload file: %w", err)
	}

	return FileInfo{
		ID:         id,
		Name:       filepath.Base(filename),
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Open returns the stored file's contents.
func (l *Local) Open(_ context.Context, id string) (io.ReadCloser, error) {
	if !validFileID(id) {
		return nil, ErrBadFileID
	}

	f, err := os.Open(filepath.Join(l.dir, id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", id, err)
	}
	return f, nil
}

// Delete removes a stored file. Deleting an absent file is not an error.
func (l *Local) Delete(_ context.Context, id string) error {
	if !validFileID(id) {
		return ErrBadFileID
	}

	err := os.Remove(filepath.Join(l.dir, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete upload %s: %w", id, err)
	}
	return nil
}
