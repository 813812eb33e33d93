// Package storage abstracts the physical object namespace that uploads land
// in. Two backends exist: the local filesystem tree and an S3-compatible
// bucket. The backend is selected once at configuration time and injected
// into the reconciler; nothing branches on a storage-kind string inline.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrSourceDelete marks a rename whose copy succeeded but whose source
// delete did not. The destination object is intact; the caller may treat the
// orphaned source as acceptable collateral.
var ErrSourceDelete = errors.New("source delete after copy failed")

// Backend is the capability set the reconciler needs from a storage
// namespace. Rename must be implemented as copy-then-delete so that it works
// across filesystem mounts and object-store prefixes alike; a delete failure
// after a successful copy is reported but callers treat it as non-fatal.
type Backend interface {
	Write(ctx context.Context, key string, body io.Reader, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Rename(ctx context.Context, oldKey, newKey string) error
	// List returns every object key in the namespace.
	List(ctx context.Context) ([]string, error)
	Kind() string
}
