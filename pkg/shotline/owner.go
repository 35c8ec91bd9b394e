package shotline

import (
	"context"
	"fmt"
)

// EntityType is the closed set of production entity kinds a version can be
// attached to.
type EntityType string

// Entity type constants (typed).
const (
	EntityAsset    EntityType = "asset"
	EntitySequence EntityType = "sequence"
	EntityEpisode  EntityType = "episode"
	EntityProject  EntityType = "project"
	EntityPlaylist EntityType = "playlist"
)

// ValidEntityType reports whether t is one of the supported entity kinds.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityAsset, EntitySequence, EntityEpisode, EntityProject, EntityPlaylist:
		return true
	}
	return false
}

// OwnerRef identifies the production entity a version belongs to. It is
// resolved once at the boundary: exactly one of ID (numeric addressing) or
// Code (legacy string addressing) is set, and Type is always one of the
// closed entity-type set. Downstream code never re-checks nullability.
type OwnerRef struct {
	Type EntityType `json:"type"`
	ID   int64      `json:"id,omitempty"`
	Code string     `json:"code,omitempty"`
}

// OwnerByID builds a numeric owner reference.
func OwnerByID(t EntityType, id int64) OwnerRef {
	return OwnerRef{Type: t, ID: id}
}

// OwnerByCode builds a legacy code owner reference.
func OwnerByCode(t EntityType, code string) OwnerRef {
	return OwnerRef{Type: t, Code: code}
}

// ParseOwnerRef validates raw addressing input and returns a well-formed
// reference. The numeric form wins when both are supplied, matching the
// preference for migrated entity kinds.
func ParseOwnerRef(t EntityType, id int64, code string) (OwnerRef, error) {
	if t == "" {
		return OwnerRef{}, fmt.Errorf("%w: entity type is required", ErrInvalidOwnerRef)
	}
	if !ValidEntityType(t) {
		return OwnerRef{}, fmt.Errorf("%w: %s", ErrUnsupportedEntityType, t)
	}
	switch {
	case id > 0:
		return OwnerByID(t, id), nil
	case code != "":
		return OwnerByCode(t, code), nil
	}
	return OwnerRef{}, fmt.Errorf("%w: neither owner id nor owner code supplied", ErrInvalidOwnerRef)
}

// ByID reports whether the reference uses numeric addressing.
func (r OwnerRef) ByID() bool { return r.ID > 0 }

// IsZero reports an unset reference.
func (r OwnerRef) IsZero() bool { return r.Type == "" }

// Key returns the canonical owner key the latest/version-number invariants
// are scoped by.
func (r OwnerRef) Key() string {
	if r.ByID() {
		return fmt.Sprintf("%s#%d", r.Type, r.ID)
	}
	return fmt.Sprintf("%s@%s", r.Type, r.Code)
}

func (r OwnerRef) String() string { return r.Key() }

// OwnerExistsFunc checks existence of a single owning entity.
type OwnerExistsFunc func(ctx context.Context, ref OwnerRef) (bool, error)

// OwnerDirectory maps each entity kind to the hooks its module supplies.
// The engine consumes the table generically instead of switching on
// entity-type strings at every call site.
type OwnerDirectory map[EntityType]OwnerHooks

// OwnerHooks are the per-kind callbacks registered in an OwnerDirectory.
type OwnerHooks struct {
	Exists OwnerExistsFunc
}

// Register adds or replaces the hooks for an entity kind.
func (d OwnerDirectory) Register(t EntityType, hooks OwnerHooks) {
	d[t] = hooks
}

// Exists resolves the owning entity through the registered hook.
func (d OwnerDirectory) Exists(ctx context.Context, ref OwnerRef) (bool, error) {
	hooks, ok := d[ref.Type]
	if !ok || hooks.Exists == nil {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedEntityType, ref.Type)
	}
	return hooks.Exists(ctx, ref)
}
