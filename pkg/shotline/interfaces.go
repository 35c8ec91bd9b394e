package shotline

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for storage backends. One store is
// registered per bucket name on the service.
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// GetDownloadURL returns a URL for downloading content. Presigned
	// backends return a fresh time-limited URL on every call; public
	// backends return a stable URL.
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for a stored object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// Repository defines the interface for version and owning-entity persistence.
type Repository interface {
	// Version operations
	CreateVersion(ctx context.Context, version *Version) error
	GetVersion(ctx context.Context, id int64) (*Version, error)
	GetVersionByCode(ctx context.Context, code string) (*Version, error)
	ListVersions(ctx context.Context, filter VersionFilter) ([]*Version, error)
	UpdateVersion(ctx context.Context, version *Version) error
	// DeleteVersion removes the record; ErrVersionNotFound when no row was
	// affected (lost race with a concurrent delete).
	DeleteVersion(ctx context.Context, id int64) error

	// Invariant helpers, scoped by owner key
	NextVersionNumber(ctx context.Context, owner OwnerRef) (int, error)
	ClearLatest(ctx context.Context, owner OwnerRef, excludeID int64) error
	// NewestVersion returns the most recently created version for the owner,
	// or nil when none remain.
	NewestVersion(ctx context.Context, owner OwnerRef) (*Version, error)

	// Owning-entity operations
	CreateOwnerEntity(ctx context.Context, entity *OwnerEntity) error
	OwnerEntityByCode(ctx context.Context, t EntityType, code string) (*OwnerEntity, error)
	OwnerEntityExists(ctx context.Context, ref OwnerRef) (bool, error)
	// NextOwnerSequence yields the parent-scoped counter used for generated
	// entity codes.
	NextOwnerSequence(ctx context.Context, t EntityType, parentID int64) (int, error)

	// InTx runs fn against a transactional view of the repository. All
	// writes commit together or roll back together.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// StatusStore resolves workflow statuses. A miss returns (nil, nil): callers
// treat an unknown code as "no status" rather than an error.
type StatusStore interface {
	StatusByCode(ctx context.Context, code string) (*Status, error)
	StatusByID(ctx context.Context, id int64) (*Status, error)
}

// EventKind names the notification events the engine can emit.
type EventKind string

// Event kind constants (typed).
const (
	EventVersionApproved EventKind = "version.approved"
	EventVersionRejected EventKind = "version.rejected"
)

// Event is the payload handed to the notifier on workflow transitions.
type Event struct {
	Kind        EventKind
	VersionID   int64
	VersionCode string
	Owner       OwnerRef
	ActorID     *int64
	Reason      string
}

// Notifier defines the fire-and-forget notification dispatch interface.
// Implementations must never panic; the engine logs and swallows returned
// errors, so a failing dispatcher cannot fail a version update.
type Notifier interface {
	// Publish sends an informational notification to the external channel.
	Publish(ctx context.Context, event Event) error

	// NotifyUser enqueues an in-app notification for a single user.
	NotifyUser(ctx context.Context, userID int64, event Event) error
}

// Thumbnailer derives a downscaled preview from an uploaded image buffer.
type Thumbnailer interface {
	// Thumbnail returns the re-encoded preview bytes and their content type.
	Thumbnail(data []byte, contentType string) ([]byte, string, error)

	// Supports reports whether the deriver can handle the content type.
	Supports(contentType string) bool
}
