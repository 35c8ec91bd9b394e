package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelworks/shotline/pkg/shotline"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements shotline.Repository and shotline.StatusStore using
// PostgreSQL.
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository over a connection or transaction.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool.
// Transaction support (InTx) requires the pool form.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Directory returns the owning-entity polymorphism table backed by the
// production_entity table, with every supported entity kind registered.
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

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case "version_code_unique":
				return shotline.ErrDuplicateCode
			case "production_entity_kind_code":
				return shotline.ErrDuplicateEntityCode
			case "version_latest_by_owner_id", "version_latest_by_owner_code":
				// A racing writer set the latest flag between our clear and
				// insert; the caller should retry.
				return fmt.Errorf("lost latest-flag race in %s: %s", operation, pgErr.ConstraintName)
			}
			return fmt.Errorf("duplicate entry violates %s", pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return shotline.ErrVersionNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// ownerPredicate builds the WHERE fragment that scopes a query to one owner
// key. Numeric references match owner_id, legacy references match owner_code.
func ownerPredicate(owner shotline.OwnerRef, argOffset int) (string, []interface{}) {
	if owner.ByID() {
		return fmt.Sprintf("owner_type = $%d AND owner_id = $%d", argOffset, argOffset+1),
			[]interface{}{string(owner.Type), owner.ID}
	}
	return fmt.Sprintf("owner_type = $%d AND owner_code = $%d", argOffset, argOffset+1),
		[]interface{}{string(owner.Type), owner.Code}
}

const versionColumns = `
	id, code, owner_type, owner_id, owner_code, name, description, format,
	version_number, latest, file_path, thumbnail_path, status_id,
	status_updated_at, created_by, assigned_to, created_at, updated_at`

func scanVersion(row pgx.Row) (*shotline.Version, error) {
	var (
		v         shotline.Version
		ownerType string
		ownerID   *int64
		ownerCode *string
	)
	err := row.Scan(
		&v.ID, &v.Code, &ownerType, &ownerID, &ownerCode,
		&v.Name, &v.Description, &v.Format,
		&v.VersionNumber, &v.Latest, &v.FilePath, &v.ThumbnailPath, &v.StatusID,
		&v.StatusUpdatedAt, &v.CreatedBy, &v.AssignedTo, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Owner = shotline.OwnerRef{Type: shotline.EntityType(ownerType)}
	if ownerID != nil {
		v.Owner.ID = *ownerID
	}
	if ownerCode != nil {
		v.Owner.Code = *ownerCode
	}
	return &v, nil
}

func ownerColumns(owner shotline.OwnerRef) (ownerID *int64, ownerCode *string) {
	if owner.ByID() {
		id := owner.ID
		return &id, nil
	}
	code := owner.Code
	return nil, &code
}

// Version operations

func (r *Repository) CreateVersion(ctx context.Context, version *shotline.Version) error {
	ownerID, ownerCode := ownerColumns(version.Owner)

	query := `
		INSERT INTO version (
			code, owner_type, owner_id, owner_code, name, description, format,
			version_number, latest, file_path, thumbnail_path, status_id,
			status_updated_at, created_by, assigned_to, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		version.Code, string(version.Owner.Type), ownerID, ownerCode,
		version.Name, version.Description, version.Format,
		version.VersionNumber, version.Latest, version.FilePath, version.ThumbnailPath,
		version.StatusID, version.StatusUpdatedAt, version.CreatedBy, version.AssignedTo,
		version.CreatedAt, version.UpdatedAt).Scan(&version.ID)

	if err != nil {
		return r.handlePostgresError("create version", err)
	}

	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id int64) (*shotline.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM version WHERE id = $1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shotline.ErrVersionNotFound
		}
		return nil, r.handlePostgresError("get version", err)
	}
	return version, nil
}

func (r *Repository) GetVersionByCode(ctx context.Context, code string) (*shotline.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM version WHERE code = $1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shotline.ErrVersionNotFound
		}
		return nil, r.handlePostgresError("get version by code", err)
	}
	return version, nil
}

func (r *Repository) ListVersions(ctx context.Context, filter shotline.VersionFilter) ([]*shotline.Version, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.Owner != nil {
		clause, ownerArgs := ownerPredicate(*filter.Owner, len(args)+1)
		clauses = append(clauses, clause)
		args = append(args, ownerArgs...)
	}
	if filter.LatestOnly {
		clauses = append(clauses, "latest")
	}
	if filter.StatusID != nil {
		args = append(args, *filter.StatusID)
		clauses = append(clauses, fmt.Sprintf("status_id = $%d", len(args)))
	}

	query := `SELECT ` + versionColumns + ` FROM version`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit != nil && *filter.Limit > 0 {
		args = append(args, *filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset != nil && *filter.Offset > 0 {
		args = append(args, *filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list versions", err)
	}
	defer rows.Close()

	var versions []*shotline.Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

func (r *Repository) UpdateVersion(ctx context.Context, version *shotline.Version) error {
	query := `
		UPDATE version SET
			code = $2, name = $3, description = $4, format = $5,
			latest = $6, file_path = $7, thumbnail_path = $8, status_id = $9,
			status_updated_at = $10, assigned_to = $11, updated_at = $12
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		version.ID, version.Code, version.Name, version.Description, version.Format,
		version.Latest, version.FilePath, version.ThumbnailPath, version.StatusID,
		version.StatusUpdatedAt, version.AssignedTo, version.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update version", err)
	}
	if tag.RowsAffected() == 0 {
		return shotline.ErrVersionNotFound
	}
	return nil
}

func (r *Repository) DeleteVersion(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM version WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete version", err)
	}
	if tag.RowsAffected() == 0 {
		return shotline.ErrVersionNotFound
	}
	return nil
}

func (r *Repository) NextVersionNumber(ctx context.Context, owner shotline.OwnerRef) (int, error) {
	// Serialize concurrent creators on the same owner key for the duration
	// of the surrounding transaction.
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, owner.Key()); err != nil {
		return 0, r.handlePostgresError("lock owner", err)
	}

	clause, args := ownerPredicate(owner, 1)
	query := `SELECT COALESCE(MAX(version_number), 0) FROM version WHERE ` + clause

	var highest int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&highest); err != nil {
		return 0, r.handlePostgresError("next version number", err)
	}
	return highest + 1, nil
}

func (r *Repository) ClearLatest(ctx context.Context, owner shotline.OwnerRef, excludeID int64) error {
	clause, args := ownerPredicate(owner, 2)
	query := `UPDATE version SET latest = FALSE WHERE id <> $1 AND latest AND ` + clause

	if _, err := r.db.Exec(ctx, query, append([]interface{}{excludeID}, args...)...); err != nil {
		return r.handlePostgresError("clear latest", err)
	}
	return nil
}

func (r *Repository) NewestVersion(ctx context.Context, owner shotline.OwnerRef) (*shotline.Version, error) {
	clause, args := ownerPredicate(owner, 1)
	query := `SELECT ` + versionColumns + ` FROM version WHERE ` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT 1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.handlePostgresError("newest version", err)
	}
	return version, nil
}

// Owning-entity operations

func (r *Repository) CreateOwnerEntity(ctx context.Context, entity *shotline.OwnerEntity) error {
	query := `
		INSERT INTO production_entity (
			entity_type, code, name, project_id, episode_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		string(entity.Type), entity.Code, entity.Name,
		entity.ProjectID, entity.EpisodeID, entity.CreatedAt, entity.UpdatedAt).Scan(&entity.ID)
	if err != nil {
		return r.handlePostgresError("create production entity", err)
	}
	return nil
}

func (r *Repository) OwnerEntityByCode(ctx context.Context, t shotline.EntityType, code string) (*shotline.OwnerEntity, error) {
	query := `
		SELECT id, entity_type, code, name, project_id, episode_id, created_at, updated_at
		FROM production_entity WHERE entity_type = $1 AND code = $2`

	var entity shotline.OwnerEntity
	err := r.db.QueryRow(ctx, query, string(t), code).Scan(
		&entity.ID, &entity.Type, &entity.Code, &entity.Name,
		&entity.ProjectID, &entity.EpisodeID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shotline.ErrOwnerNotFound
		}
		return nil, r.handlePostgresError("get production entity", err)
	}
	return &entity, nil
}

func (r *Repository) OwnerEntityExists(ctx context.Context, ref shotline.OwnerRef) (bool, error) {
	var (
		query string
		arg   interface{}
	)
	if ref.ByID() {
		query = `SELECT EXISTS (SELECT 1 FROM production_entity WHERE entity_type = $1 AND id = $2)`
		arg = ref.ID
	} else {
		query = `SELECT EXISTS (SELECT 1 FROM production_entity WHERE entity_type = $1 AND code = $2)`
		arg = ref.Code
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, string(ref.Type), arg).Scan(&exists); err != nil {
		return false, r.handlePostgresError("production entity exists", err)
	}
	return exists, nil
}

func (r *Repository) NextOwnerSequence(ctx context.Context, t shotline.EntityType, parentID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM production_entity
		WHERE entity_type = $1 AND (project_id = $2 OR episode_id = $2)`

	var count int
	if err := r.db.QueryRow(ctx, query, string(t), parentID).Scan(&count); err != nil {
		return 0, r.handlePostgresError("next entity sequence", err)
	}
	return count + 1, nil
}

// Transactions

// InTx runs fn inside a database transaction. Nested calls reuse the current
// transaction.
func (r *Repository) InTx(ctx context.Context, fn func(shotline.Repository) error) error {
	if r.pool == nil {
		// Already transactional (or a bare connection): run in place.
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository{db: tx})
	})
}

// Status operations

func (r *Repository) StatusByCode(ctx context.Context, code string) (*shotline.Status, error) {
	var status shotline.Status
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name FROM status WHERE code = $1`, code).Scan(
		&status.ID, &status.Code, &status.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.handlePostgresError("get status by code", err)
	}
	return &status, nil
}

func (r *Repository) StatusByID(ctx context.Context, id int64) (*shotline.Status, error) {
	var status shotline.Status
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name FROM status WHERE id = $1`, id).Scan(
		&status.ID, &status.Code, &status.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.handlePostgresError("get status by id", err)
	}
	return &status, nil
}
