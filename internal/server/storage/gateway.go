// Package storage is the object storage gateway: signed upload and download
// URLs, existence and size probes, and deletes against an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrObjectNotFound is returned by SizeOf when no object exists under the key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrForeignKey is returned when a key does not start with the owner's prefix.
	ErrForeignKey = errors.New("storage key outside owner prefix")
)

// Gateway is the object storage boundary used by the upload engine and the
// query layer. Keys are used verbatim; every call is scoped to an owner.
type Gateway interface {
	PresignPut(ctx context.Context, ownerID, key string) (string, error)
	PresignGet(ctx context.Context, ownerID, key string) (string, error)
	Exists(ctx context.Context, ownerID, key string) (bool, error)
	SizeOf(ctx context.Context, ownerID, key string) (int64, error)
	Delete(ctx context.Context, ownerID, key string) error
	Ping(ctx context.Context) error
}

func checkOwner(ownerID, key string) error {
	if ownerID == "" || !strings.HasPrefix(key, ownerID+"/") {
		return fmt.Errorf("%w: %s", ErrForeignKey, key)
	}
	return nil
}
