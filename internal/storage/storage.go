// Package storage provides object storage abstractions used by the object
// store backend of the warehouse.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUploadFailed       = errors.New("upload failed")
	ErrDownloadFailed     = errors.New("download failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath, replacing any existing object.
	// Readers observe either the old or the new object, never a partial one.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads objectPath to localPath.
	// Returns ErrObjectNotFound if the object does not exist.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ETag returns the current entity tag of an object.
	// Returns ErrObjectNotFound if the object does not exist.
	ETag(ctx context.Context, objectPath string) (string, error)

	// ConditionalPut uploads only if the precondition is met.
	// etag is the expected ETag of the existing object; an empty etag
	// requires that the object does not exist yet.
	ConditionalPut(ctx context.Context, localPath, objectPath, etag string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
