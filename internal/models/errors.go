package models

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidCredentialsMessage is shared by every login failure so callers cannot
// tell an unknown username from a wrong password.
const InvalidCredentialsMessage = "invalid username or password"

// ValidationError carries every violated field rule of one input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// DuplicateNameError reports a uniqueness conflict on a name-like field.
type DuplicateNameError struct {
	Resource string
	Name     string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s name '%s' already exists", e.Resource, e.Name)
}

// NotFoundError reports an id or key lookup miss.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// AuthenticationError is returned for any credential mismatch.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return InvalidCredentialsMessage
}

// CategoryInUseError is returned when the delete policy forbids removing a
// category that products still reference.
type CategoryInUseError struct {
	ID       string
	Products int
}

func (e *CategoryInUseError) Error() string {
	return fmt.Sprintf("category %s is still referenced by %d product(s)", e.ID, e.Products)
}

// ErrDuplicateKey is wrapped into the StorageError of a write that violated
// a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

// StorageError wraps an unexpected failure of the backing store or object storage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err, or returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsDuplicateName(err error) bool {
	var target *DuplicateNameError
	return errors.As(err, &target)
}

func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

func IsCategoryInUse(err error) bool {
	var target *CategoryInUseError
	return errors.As(err, &target)
}

func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
