package services

import (
	"errors"
	"fmt"
	"solar-workflow-api/store"
)

var (
	// ErrNotFound wraps store.ErrNotFound so callers only need one sentinel.
	ErrNotFound            = fmt.Errorf("not found: %w", store.ErrNotFound)
	ErrUnauthorized        = errors.New("unauthorized")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrExternalStorage     = errors.New("external storage error")
	ErrBatchPartialFailure = errors.New("batch partially failed")
	ErrImportInProgress    = errors.New("another import is already running")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CapacityError is returned when an upload would push a category past its cap.
type CapacityError struct {
	Category string
	Existing int
	Incoming int
	Max      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("category %q allows %d files: %d stored, %d incoming", e.Category, e.Max, e.Existing, e.Incoming)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// StorageError wraps a failed object storage call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrExternalStorage
}

// notFound maps store.ErrNotFound onto ErrNotFound naming the missing entity.
func notFound(entity, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return err
}
