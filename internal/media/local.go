package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clipstream/internal/apperr"

	"github.com/google/uuid"
)

// LocalStore keeps assets as flat files under a root directory and serves
// them from a base URL. Suitable for single-node deployments; the Store
// interface leaves room for an object-storage implementation.
type LocalStore struct {
	root    string
	baseURL string
	newID   func() string
}

// NewLocalStore prepares the root directory for writes.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	const op = "media.NewLocalStore"
	if root == "" {
		return nil, apperr.Validation(op, "media root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("create media root: %w", err))
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		newID:   uuid.NewString,
	}, nil
}

// Store writes the upload under a fresh id. The temp-write-then-rename keeps
// partially written assets out of the served directory.
func (s *LocalStore) Store(ctx context.Context, upload Upload) (Object, error) {
	const op = "media.LocalStore.Store"
	if err := ctx.Err(); err != nil {
		return Object{}, apperr.Unavailable(op, err)
	}
	if upload.Reader == nil {
		return Object{}, apperr.Validation(op, "upload body is required")
	}

	id := s.newID()
	if ext := filepath.Ext(upload.Name); ext != "" && len(ext) <= 8 {
		id += strings.ToLower(ext)
	}

	tmpFile, err := os.CreateTemp(s.root, "upload-*")
	if err != nil {
		return Object{}, apperr.Unavailable(op, fmt.Errorf("create temp asset: %w", err))
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, upload.Reader); err != nil {
		return Object{}, apperr.Unavailable(op, fmt.Errorf("write asset: %w", err))
	}
	if err := tmpFile.Sync(); err != nil {
		return Object{}, apperr.Unavailable(op, fmt.Errorf("flush asset: %w", err))
	}
	if err := tmpFile.Close(); err != nil {
		return Object{}, apperr.Unavailable(op, fmt.Errorf("close asset: %w", err))
	}
	if err := os.Rename(tmpPath, filepath.Join(s.root, id)); err != nil {
		return Object{}, apperr.Unavailable(op, fmt.Errorf("publish asset: %w", err))
	}
	success = true

	return Object{ID: id, URL: s.baseURL + "/" + id}, nil
}

// Delete removes the stored asset. Deleting an absent asset is not an error.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	const op = "media.LocalStore.Delete"
	if err := ctx.Err(); err != nil {
		return apperr.Unavailable(op, err)
	}
	// Reject ids that would escape the root.
	if id == "" || id != filepath.Base(id) {
		return apperr.Validation(op, "invalid asset id")
	}
	if err := os.Remove(filepath.Join(s.root, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Unavailable(op, fmt.Errorf("remove asset: %w", err))
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
