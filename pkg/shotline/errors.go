package shotline

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrVersionNotFound indicates a version was not found
	ErrVersionNotFound = errors.New("version not found")

	// ErrOwnerNotFound indicates the owning production entity does not exist
	ErrOwnerNotFound = errors.New("owning entity not found")

	// ErrDuplicateCode indicates a version code is already taken
	ErrDuplicateCode = errors.New("version code already exists")

	// ErrDuplicateEntityCode indicates an owning-entity code is already taken
	// for its entity kind
	ErrDuplicateEntityCode = errors.New("entity code already exists")

	// ErrInvalidOwnerRef indicates malformed or mutually-exclusive owner addressing
	ErrInvalidOwnerRef = errors.New("invalid owner reference")

	// ErrUnsupportedEntityType indicates an entity kind outside the closed set
	ErrUnsupportedEntityType = errors.New("unsupported entity type")

	// ErrMissingParent indicates a composite create without its required parent reference
	ErrMissingParent = errors.New("required parent reference missing")

	// ErrStorageBackendNotFound indicates no blob store is registered for a bucket
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	// ErrUploadFailed indicates an upload operation failed
	ErrUploadFailed = errors.New("upload failed")

	// ErrUnsupportedThumbnail indicates the deriver cannot thumbnail the content type
	ErrUnsupportedThumbnail = errors.New("content type cannot be thumbnailed")
)

// VersionError represents an error related to version operations
type VersionError struct {
	VersionID int64
	Op        string
	Err       error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version operation %s failed for version %d: %v", e.Op, e.VersionID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Bucket string
	Key    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s in bucket %s: %v", e.Op, e.Key, e.Bucket, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
