package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reelworks/shotline/pkg/shotline"
)

// Repository implements shotline.Repository and shotline.StatusStore using
// in-memory storage. It is intended for tests and development servers.
type Repository struct {
	mu sync.RWMutex
	// txMu serializes transactions; InTx snapshots state and restores it
	// when the transaction function fails. Multi-step sequences must go
	// through InTx to get rollback semantics.
	txMu sync.Mutex

	nextVersionID int64
	nextEntityID  int64

	versions       map[int64]*shotline.Version
	versionsByCode map[string]int64
	entities       map[int64]*shotline.OwnerEntity
	entitiesByKey  map[string]int64 // "type:code" -> entity id
	statuses       map[int64]*shotline.Status
	statusesByCode map[string]int64
}

// New creates a new in-memory repository seeded with the standard workflow
// statuses.
func New() *Repository {
	r := &Repository{
		versions:       make(map[int64]*shotline.Version),
		versionsByCode: make(map[string]int64),
		entities:       make(map[int64]*shotline.OwnerEntity),
		entitiesByKey:  make(map[string]int64),
		statuses:       make(map[int64]*shotline.Status),
		statusesByCode: make(map[string]int64),
	}
	for i, code := range []shotline.StatusCode{
		shotline.StatusWIP, shotline.StatusReview, shotline.StatusApproved, shotline.StatusRejected,
	} {
		id := int64(i + 1)
		r.statuses[id] = &shotline.Status{ID: id, Code: string(code)}
		r.statusesByCode[string(code)] = id
	}
	return r
}

// Directory returns the owning-entity polymorphism table backed by this
// repository, with every supported entity kind registered.
func (r *Repository) Directory() shotline.OwnerDirectory {
	dir := make(shotline.OwnerDirectory)
	for _, t := range []shotline.EntityType{
		shotline.EntityAsset, shotline.EntitySequence, shotline.EntityEpisode,
		shotline.EntityProject, shotline.EntityPlaylist,
	} {
		dir.Register(t, shotline.OwnerHooks{Exists: r.OwnerEntityExists})
	}
	return dir
}

// Version operations

func (r *Repository) CreateVersion(ctx context.Context, version *shotline.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.versionsByCode[version.Code]; taken {
		return fmt.Errorf("%w: %s", shotline.ErrDuplicateCode, version.Code)
	}
	if version.ID == 0 {
		r.nextVersionID++
		version.ID = r.nextVersionID
	}

	versionCopy := *version
	r.versions[version.ID] = &versionCopy
	r.versionsByCode[version.Code] = version.ID
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id int64) (*shotline.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	version, exists := r.versions[id]
	if !exists {
		return nil, shotline.ErrVersionNotFound
	}
	versionCopy := *version
	return &versionCopy, nil
}

func (r *Repository) GetVersionByCode(ctx context.Context, code string) (*shotline.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.versionsByCode[code]
	if !exists {
		return nil, shotline.ErrVersionNotFound
	}
	versionCopy := *r.versions[id]
	return &versionCopy, nil
}

func (r *Repository) ListVersions(ctx context.Context, filter shotline.VersionFilter) ([]*shotline.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*shotline.Version
	for _, version := range r.versions {
		if filter.Owner != nil && version.Owner.Key() != filter.Owner.Key() {
			continue
		}
		if filter.LatestOnly && !version.Latest {
			continue
		}
		if filter.StatusID != nil {
			if version.StatusID == nil || *version.StatusID != *filter.StatusID {
				continue
			}
		}
		versionCopy := *version
		result = append(result, &versionCopy)
	}

	// Sort by created_at descending, newest first; id breaks ties between
	// versions created in the same instant.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset != nil && *filter.Offset > 0 {
		if *filter.Offset >= len(result) {
			return []*shotline.Version{}, nil
		}
		result = result[*filter.Offset:]
	}
	if filter.Limit != nil && *filter.Limit > 0 && *filter.Limit < len(result) {
		result = result[:*filter.Limit]
	}
	return result, nil
}

func (r *Repository) UpdateVersion(ctx context.Context, version *shotline.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.versions[version.ID]
	if !exists {
		return shotline.ErrVersionNotFound
	}
	if current.Code != version.Code {
		if other, taken := r.versionsByCode[version.Code]; taken && other != version.ID {
			return fmt.Errorf("%w: %s", shotline.ErrDuplicateCode, version.Code)
		}
		delete(r.versionsByCode, current.Code)
		r.versionsByCode[version.Code] = version.ID
	}

	versionCopy := *version
	r.versions[version.ID] = &versionCopy
	return nil
}

func (r *Repository) DeleteVersion(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	version, exists := r.versions[id]
	if !exists {
		return shotline.ErrVersionNotFound
	}
	delete(r.versions, id)
	delete(r.versionsByCode, version.Code)
	return nil
}

func (r *Repository) NextVersionNumber(ctx context.Context, owner shotline.OwnerRef) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	highest := 0
	for _, version := range r.versions {
		if version.Owner.Key() == owner.Key() && version.VersionNumber > highest {
			highest = version.VersionNumber
		}
	}
	return highest + 1, nil
}

func (r *Repository) ClearLatest(ctx context.Context, owner shotline.OwnerRef, excludeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, version := range r.versions {
		if version.ID == excludeID {
			continue
		}
		if version.Owner.Key() == owner.Key() {
			version.Latest = false
		}
	}
	return nil
}

func (r *Repository) NewestVersion(ctx context.Context, owner shotline.OwnerRef) (*shotline.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *shotline.Version
	for _, version := range r.versions {
		if version.Owner.Key() != owner.Key() {
			continue
		}
		if newest == nil ||
			version.CreatedAt.After(newest.CreatedAt) ||
			(version.CreatedAt.Equal(newest.CreatedAt) && version.ID > newest.ID) {
			newest = version
		}
	}
	if newest == nil {
		return nil, nil
	}
	newestCopy := *newest
	return &newestCopy, nil
}

// Owning-entity operations

func entityKey(t shotline.EntityType, code string) string {
	return string(t) + ":" + code
}

func (r *Repository) CreateOwnerEntity(ctx context.Context, entity *shotline.OwnerEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entityKey(entity.Type, entity.Code)
	if _, taken := r.entitiesByKey[key]; taken {
		return fmt.Errorf("%w: %s %q", shotline.ErrDuplicateEntityCode, entity.Type, entity.Code)
	}
	if entity.ID == 0 {
		r.nextEntityID++
		entity.ID = r.nextEntityID
	}

	entityCopy := *entity
	r.entities[entity.ID] = &entityCopy
	r.entitiesByKey[key] = entity.ID
	return nil
}

func (r *Repository) OwnerEntityByCode(ctx context.Context, t shotline.EntityType, code string) (*shotline.OwnerEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.entitiesByKey[entityKey(t, code)]
	if !exists {
		return nil, shotline.ErrOwnerNotFound
	}
	entityCopy := *r.entities[id]
	return &entityCopy, nil
}

func (r *Repository) OwnerEntityExists(ctx context.Context, ref shotline.OwnerRef) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ref.ByID() {
		entity, exists := r.entities[ref.ID]
		return exists && entity.Type == ref.Type, nil
	}
	_, exists := r.entitiesByKey[entityKey(ref.Type, ref.Code)]
	return exists, nil
}

func (r *Repository) NextOwnerSequence(ctx context.Context, t shotline.EntityType, parentID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, entity := range r.entities {
		if entity.Type != t {
			continue
		}
		if (entity.ProjectID != nil && *entity.ProjectID == parentID) ||
			(entity.EpisodeID != nil && *entity.EpisodeID == parentID) {
			count++
		}
	}
	return count + 1, nil
}

// Transactions

// InTx serializes the transaction, snapshots all state, runs fn against the
// repository and restores the snapshot when fn fails.
func (r *Repository) InTx(ctx context.Context, fn func(shotline.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snap := r.snapshot()
	if err := fn(r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	nextVersionID  int64
	nextEntityID   int64
	versions       map[int64]*shotline.Version
	versionsByCode map[string]int64
	entities       map[int64]*shotline.OwnerEntity
	entitiesByKey  map[string]int64
}

func (r *Repository) snapshot() snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := snapshot{
		nextVersionID:  r.nextVersionID,
		nextEntityID:   r.nextEntityID,
		versions:       make(map[int64]*shotline.Version, len(r.versions)),
		versionsByCode: make(map[string]int64, len(r.versionsByCode)),
		entities:       make(map[int64]*shotline.OwnerEntity, len(r.entities)),
		entitiesByKey:  make(map[string]int64, len(r.entitiesByKey)),
	}
	for id, v := range r.versions {
		versionCopy := *v
		snap.versions[id] = &versionCopy
	}
	for code, id := range r.versionsByCode {
		snap.versionsByCode[code] = id
	}
	for id, e := range r.entities {
		entityCopy := *e
		snap.entities[id] = &entityCopy
	}
	for key, id := range r.entitiesByKey {
		snap.entitiesByKey[key] = id
	}
	return snap
}

func (r *Repository) restore(snap snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextVersionID = snap.nextVersionID
	r.nextEntityID = snap.nextEntityID
	r.versions = snap.versions
	r.versionsByCode = snap.versionsByCode
	r.entities = snap.entities
	r.entitiesByKey = snap.entitiesByKey
}

// Status operations

func (r *Repository) StatusByCode(ctx context.Context, code string) (*shotline.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.statusesByCode[code]
	if !exists {
		return nil, nil
	}
	statusCopy := *r.statuses[id]
	return &statusCopy, nil
}

func (r *Repository) StatusByID(ctx context.Context, id int64) (*shotline.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, exists := r.statuses[id]
	if !exists {
		return nil, nil
	}
	statusCopy := *status
	return &statusCopy, nil
}
