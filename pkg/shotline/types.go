package shotline

import "time"

// StatusCode is the domain type for workflow status codes.
type StatusCode string

// Workflow status constants (typed).
const (
	StatusWIP      StatusCode = "wip"
	StatusReview   StatusCode = "review"
	StatusApproved StatusCode = "approved"
	StatusRejected StatusCode = "rejected"
)

// FileKind distinguishes the two blobs a version can carry.
type FileKind string

// File kind constants (typed).
const (
	FileKindPrimary   FileKind = "primary"
	FileKindThumbnail FileKind = "thumbnail"
)

// Status is a workflow state a version can be in.
type Status struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Version represents a single content iteration attached to an owning
// production entity.
//
// FilePath and ThumbnailPath hold stored "bucket/key" paths, never URLs.
// The service resolves them to fetchable URLs on every read so presigned
// URLs cannot go stale between requests.
type Version struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Owner           OwnerRef  `json:"owner"`
	Name            string    `json:"name,omitempty"`
	Description     string    `json:"description,omitempty"`
	Format          string    `json:"format,omitempty"`
	VersionNumber   int       `json:"version_number"`
	Latest          bool      `json:"latest"`
	FilePath        *string   `json:"file_path,omitempty"`
	ThumbnailPath   *string   `json:"thumbnail_path,omitempty"`
	StatusID        *int64    `json:"status_id,omitempty"`
	StatusUpdatedAt time.Time `json:"status_updated_at"`
	CreatedBy       *int64    `json:"created_by,omitempty"`
	AssignedTo      *int64    `json:"assigned_to,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Computed fields (not persisted - populated by the service layer)
	StatusCode   string `json:"status,omitempty" db:"-"`
	FileURL      string `json:"file_url,omitempty" db:"-"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" db:"-"`
}

// OwnerEntity represents a production object row created by the composite
// orchestrator (asset, sequence or playlist) or referenced by a version
// (episode, project).
type OwnerEntity struct {
	ID        int64      `json:"id"`
	Type      EntityType `json:"type"`
	Code      string     `json:"code"`
	Name      string     `json:"name,omitempty"`
	ProjectID *int64     `json:"project_id,omitempty"`
	EpisodeID *int64     `json:"episode_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Ref returns the numeric owner reference for the entity.
func (e *OwnerEntity) Ref() OwnerRef {
	return OwnerByID(e.Type, e.ID)
}

// VersionFilter defines filtering options for listing versions.
type VersionFilter struct {
	Owner      *OwnerRef
	StatusID   *int64
	LatestOnly bool
	Limit      *int
	Offset     *int
}
