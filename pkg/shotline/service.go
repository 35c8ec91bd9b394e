package shotline

import "context"

// Service is the version lifecycle engine exposed to the API layer.
type Service interface {
	// Version lifecycle
	CreateVersion(ctx context.Context, req CreateVersionRequest) (*Version, error)
	GetVersion(ctx context.Context, id int64) (*Version, error)
	GetVersionByCode(ctx context.Context, code string) (*Version, error)
	ListVersions(ctx context.Context, req ListVersionsRequest) ([]*Version, error)
	UpdateVersion(ctx context.Context, req UpdateVersionRequest) (*Version, error)
	DeleteVersion(ctx context.Context, id int64) error

	// File attachment
	AttachFile(ctx context.Context, req AttachFileRequest) (*Version, error)

	// Composite creation
	CreateAssetWithVersion(ctx context.Context, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error)
	CreateSequenceWithVersion(ctx context.Context, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error)
	CreatePlaylistWithVersion(ctx context.Context, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error)
}
