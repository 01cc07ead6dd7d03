// Package blob is the durable file storage the floor artifacts and venue media
// live in. Paths are slash separated and relative to the storage root.
package blob

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read, Delete and Rename when the source path is
// missing.
var ErrNotExist = errors.New("blob does not exist")

type Storage interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	// Write replaces the whole object. Parent directories are created.
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	MkdirAll(ctx context.Context, path string) error
	// Rename moves a file or a whole directory tree.
	Rename(ctx context.Context, from, to string) error
}
