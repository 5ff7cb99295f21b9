package repository

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for object storage operations.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
//
// Writes and deletes are visible immediately and are not part of any
// relational transaction.
type ObjectStorage interface {
	// Put stores an object under key.
	// size may be -1 when unknown.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Delete removes an object from the storage.
	// Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in the storage.
	Exists(ctx context.Context, key string) (bool, error)

	// FileURL returns the URL under which the object can be fetched.
	FileURL(ctx context.Context, key string) (string, error)
}
