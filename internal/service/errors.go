package service

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. The typed errors below match them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("listing not found")
	ErrStorage    = errors.New("storage failure")
	ErrAttachment = errors.New("invalid attachment")
)

// ValidationError reports a draft field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StorageError wraps a failure of the durable medium during Op.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// AttachmentError reports an upload rejected before anything was stored.
type AttachmentError struct {
	Filename string
	Reason   string
}

func (e *AttachmentError) Error() string {
	if e.Filename == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

func (e *AttachmentError) Is(target error) bool { return target == ErrAttachment }
