// Package filestore persists uploaded import files so a parse can be
// retried or audited after the upload request has completed. Backends:
// local disk for single-node deployments, S3 for shared ones.
package filestore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no stored file matches the requested ID.
var ErrNotFound = errors.New("file not found")

// ErrBadFileID is returned for IDs that do not look like ones this
// package issued. It keeps path traversal out of the local backend.
var ErrBadFileID = errors.New("invalid file ID")

// FileInfo describes a stored upload.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store saves and retrieves uploaded files by opaque ID.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (FileInfo, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

var fileIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]+)?$`)

// newFileID issues an ID that preserves the upload's extension, so the
// extractor can tell CSV from XLSX when the file is reopened later.
func newFileID(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return uuid.NewString() + ext
}

func validFileID(id string) bool {
	return fileIDPattern.MatchString(id)
}
