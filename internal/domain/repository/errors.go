package repository

import "errors"

var (
	// ErrVideoNotFound is returned when a video cannot be found.
	ErrVideoNotFound = errors.New("video not found")

	// ErrDuplicateVideo is returned when attempting to create a video that already exists.
	ErrDuplicateVideo = errors.New("video already exists")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound is returned when an object does not exist in storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrTxDone is returned when a unit of work is used after commit or rollback.
	ErrTxDone = errors.New("transaction already closed")
)
