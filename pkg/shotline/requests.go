package shotline

// Request DTOs consumed by the engine. The HTTP layer translates its wire
// shapes into these and never reaches into the repository directly.

// CreateVersionRequest contains parameters for creating a new version.
//
// Owner addressing follows ParseOwnerRef semantics: EntityType is required,
// and at least one of OwnerID / OwnerCode must be set (numeric preferred).
type CreateVersionRequest struct {
	EntityType EntityType
	OwnerID    int64
	OwnerCode  string

	Code        string
	Name        string
	Description string
	Format      string
	FilePath    *string
	Status      string // status code; defaults to "wip" when empty
	CreatedBy   *int64
	AssignedTo  *int64
	Latest      *bool // nil means true
}

// UpdateVersionRequest contains the patch applied to an existing version.
// Nil fields are left untouched.
type UpdateVersionRequest struct {
	ID          int64
	Name        *string
	Description *string
	Format      *string
	Status      *string // status code
	Reason      string  // carried into rejection notifications
	AssignedTo  *int64
	Latest      *bool
	ActorID     *int64 // user performing the update, for notifications
}

// ListVersionsRequest contains parameters for listing versions.
type ListVersionsRequest struct {
	EntityType EntityType
	OwnerID    int64
	OwnerCode  string
	LatestOnly bool
	Status     string
	Limit      *int
	Offset     *int
}

// AttachFileRequest contains parameters for attaching a blob to a version.
type AttachFileRequest struct {
	VersionID   int64
	Kind        FileKind
	FileName    string
	ContentType string
	Data        []byte
	Bucket      string // empty means the service default bucket
}

// CreateOwnerWithVersionRequest describes the composite creation of an
// owning entity together with its first version.
type CreateOwnerWithVersionRequest struct {
	Code      string // generated when empty
	Name      string
	ProjectID *int64 // required parent for asset and playlist
	EpisodeID *int64 // required parent for sequence

	Version CreateVersionRequest // owner addressing fields are ignored
}
