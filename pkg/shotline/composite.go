package shotline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Composite creation: an owning entity and its first version land in one
// repository transaction, so a failed version insert never leaves an
// orphaned entity row behind.

// compositeKind describes per-kind wiring for composite creation. One table
// entry per creatable entity kind replaces scattered type switches.
type compositeKind struct {
	codePrefix string
	parentType EntityType
	// parentID extracts the required parent reference from the request.
	parentID func(req CreateOwnerWithVersionRequest) *int64
	// assign writes the validated parent back onto the entity row.
	assign func(entity *OwnerEntity, parentID int64)
}

var compositeKinds = map[EntityType]compositeKind{
	EntityAsset: {
		codePrefix: "AST",
		parentType: EntityProject,
		parentID:   func(req CreateOwnerWithVersionRequest) *int64 { return req.ProjectID },
		assign:     func(e *OwnerEntity, id int64) { e.ProjectID = &id },
	},
	EntitySequence: {
		codePrefix: "SEQ",
		parentType: EntityEpisode,
		parentID:   func(req CreateOwnerWithVersionRequest) *int64 { return req.EpisodeID },
		assign:     func(e *OwnerEntity, id int64) { e.EpisodeID = &id },
	},
	EntityPlaylist: {
		codePrefix: "PLY",
		parentType: EntityProject,
		parentID:   func(req CreateOwnerWithVersionRequest) *int64 { return req.ProjectID },
		assign:     func(e *OwnerEntity, id int64) { e.ProjectID = &id },
	},
}

func (s *service) CreateAssetWithVersion(ctx context.Context, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error) {
	return s.createOwnerWithVersion(ctx, EntityAsset, req)
}

func (s *service) CreateSequenceWithVersion(ctx context.Context, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error) {
	return s.createOwnerWithVersion(ctx, EntitySequence, req)
}

func (s *service) CreatePlaylistWithVersion(ctx context.Context, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error) {
	return s.createOwnerWithVersion(ctx, EntityPlaylist, req)
}

func (s *service) createOwnerWithVersion(ctx context.Context, kind EntityType, req CreateOwnerWithVersionRequest) (*OwnerEntity, *Version, error) {
	spec, ok := compositeKinds[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedEntityType, kind)
	}

	parentID := spec.parentID(req)
	if parentID == nil || *parentID <= 0 {
		return nil, nil, fmt.Errorf("%w: %s requires a %s", ErrMissingParent, kind, spec.parentType)
	}

	parentRef := OwnerByID(spec.parentType, *parentID)
	exists, err := s.owners.Exists(ctx, parentRef)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, parentRef)
	}

	statusCode := req.Version.Status
	if statusCode == "" {
		statusCode = string(StatusWIP)
	}
	status, err := s.statuses.StatusByCode(ctx, statusCode)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	entity := &OwnerEntity{
		Type:      kind,
		Code:      req.Code,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	spec.assign(entity, *parentID)

	latest := req.Version.Latest == nil || *req.Version.Latest
	version := &Version{
		Code:            req.Version.Code,
		Name:            req.Version.Name,
		Description:     req.Version.Description,
		Format:          req.Version.Format,
		FilePath:        req.Version.FilePath,
		VersionNumber:   1,
		Latest:          latest,
		StatusUpdatedAt: now,
		CreatedBy:       req.Version.CreatedBy,
		AssignedTo:      req.Version.AssignedTo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status != nil {
		version.StatusID = &status.ID
	}

	err = s.repository.InTx(ctx, func(tx Repository) error {
		if entity.Code == "" {
			seq, err := tx.NextOwnerSequence(ctx, kind, *parentID)
			if err != nil {
				return err
			}
			entity.Code = fmt.Sprintf("%s%04d", spec.codePrefix, seq)
		}
		if err := tx.CreateOwnerEntity(ctx, entity); err != nil {
			return err
		}

		version.Owner = entity.Ref()
		if version.Code == "" {
			version.Code = generatedVersionCode(OwnerByCode(kind, entity.Code), 1)
		}
		return tx.CreateVersion(ctx, version)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) || errors.Is(err, ErrDuplicateEntityCode) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("composite %s creation failed: %w", kind, err)
	}

	return entity, s.resolveVersion(ctx, version), nil
}
