// Package media stores uploaded binary assets and hands back stable
// references. The service stores video files, thumbnails, avatars, and cover
// images through the same interface.
package media

import (
	"context"
	"io"

	"clipstream/internal/apperr"

	"golang.org/x/sync/errgroup"
)

// Object is a stored asset reference.
type Object struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Upload is one named asset to store.
type Upload struct {
	Name   string
	Reader io.Reader
}

// Store persists uploaded assets. Implementations must make Delete idempotent
// so cleanup after a partial failure can always run.
type Store interface {
	Store(ctx context.Context, upload Upload) (Object, error)
	Delete(ctx context.Context, id string) error
}

// StoreAll uploads the given assets concurrently and returns objects in input
// order. If any upload fails, the ones that succeeded are deleted and the
// first error is returned, so callers never hold a half-stored asset set.
func StoreAll(ctx context.Context, store Store, uploads ...Upload) ([]Object, error) {
	const op = "media.StoreAll"
	objects := make([]Object, len(uploads))
	group, ctx := errgroup.WithContext(ctx)
	for i, upload := range uploads {
		i, upload := i, upload
		group.Go(func() error {
			object, err := store.Store(ctx, upload)
			if err != nil {
				return err
			}
			objects[i] = object
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		for _, object := range objects {
			if object.ID == "" {
				continue
			}
			_ = store.Delete(context.WithoutCancel(ctx), object.ID)
		}
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Unavailable(op, err)
	}
	return objects, nil
}
