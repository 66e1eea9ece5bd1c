// Package apperr defines the error taxonomy shared by services and
// handlers. Handlers translate these into HTTP status codes and
// human-readable messages; internal details (driver errors, SQL) stay
// wrapped and are only logged.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError signals caller-fixable input problems.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidation(msg string, fields map[string]string) *ValidationError {
	return &ValidationError{Msg: msg, Fields: fields}
}

// NotFoundError signals a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d introuvable", e.Entity, e.ID)
}

func NewNotFound(entity string, id uint) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError signals a uniqueness or referential-integrity conflict.
// Reference collisions are retryable once; restricted deletes are not.
type ConflictError struct {
	Msg string
	Err error
}

func (e *ConflictError) Error() string { return e.Msg }
func (e *ConflictError) Unwrap() error { return e.Err }

func NewConflict(msg string, err error) *ConflictError {
	return &ConflictError{Msg: msg, Err: err}
}

// StorageError wraps a failure of the persistence gateway itself.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("stockage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func NewStorage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
