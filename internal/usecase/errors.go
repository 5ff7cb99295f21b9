package usecase

import (
	"errors"
	"fmt"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
)

var (
	// ErrValidation classifies failures raised before any store is touched.
	ErrValidation = errors.New("validation failed")

	// ErrStorageWrite classifies saga failures caused by an object storage write.
	ErrStorageWrite = errors.New("object storage write failed")

	// ErrRelational classifies saga failures caused by the relational store.
	ErrRelational = errors.New("relational store operation failed")

	// ErrRelationMismatch is returned when the submitted categories and genres
	// do not cover each other.
	ErrRelationMismatch = errors.New("categories and genres do not cover each other")

	// ErrUnknownReference is returned when a relation names a missing or deleted entity.
	ErrUnknownReference = errors.New("referenced entity does not exist")
)

// ValidationError reports a rejected payload field.
// It matches both ErrValidation and its cause with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// asValidationError converts model field errors into ValidationError.
// Other errors are returned unchanged.
func asValidationError(err error) error {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Field: fe.Field, Err: fe.Err}
	}
	return err
}

// SagaState is a step of the video persistence saga.
type SagaState string

const (
	StateStarted                  SagaState = "started"
	StateScalarWritten            SagaState = "scalar_written"
	StateRelationsSynced          SagaState = "relations_synced"
	StateFilesUploaded            SagaState = "files_uploaded"
	StateCommitted                SagaState = "committed"
	StateFailed                   SagaState = "failed"
	StateCompensatingFilesDeleted SagaState = "compensating_files_deleted"
	StateRolledBack               SagaState = "rolled_back"
)

// SagaError is returned by a saga that failed and was rolled back.
// State is the last step reached before the failure. Kind is one of
// ErrStorageWrite or ErrRelational.
type SagaError struct {
	Op    string
	State SagaState
	Kind  error
	Err   error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("%s video after %s: %v", e.Op, e.State, e.Err)
}

func (e *SagaError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
