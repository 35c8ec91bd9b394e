package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/reelworks/shotline/pkg/shotline"
)

func uniqueViolation(constraint string) error {
	return fmt.Errorf("insert: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: constraint,
	})
}

func TestHandlePostgresError(t *testing.T) {
	r := New(nil)

	t.Run("version code violation", func(t *testing.T) {
		err := r.handlePostgresError("create_version", uniqueViolation("version_code_unique"))
		assert.ErrorIs(t, err, shotline.ErrDuplicateCode)
	})

	t.Run("entity code violation", func(t *testing.T) {
		err := r.handlePostgresError("create_owner_entity", uniqueViolation("production_entity_kind_code"))
		assert.ErrorIs(t, err, shotline.ErrDuplicateEntityCode)
	})

	t.Run("latest index violation is not a code conflict", func(t *testing.T) {
		for _, constraint := range []string{"version_latest_by_owner_id", "version_latest_by_owner_code"} {
			err := r.handlePostgresError("create_version", uniqueViolation(constraint))
			assert.NotErrorIs(t, err, shotline.ErrDuplicateCode)
			assert.NotErrorIs(t, err, shotline.ErrDuplicateEntityCode)
			assert.ErrorContains(t, err, constraint)
		}
	})

	t.Run("other unique violation stays generic", func(t *testing.T) {
		err := r.handlePostgresError("create_status", uniqueViolation("status_code_key"))
		assert.NotErrorIs(t, err, shotline.ErrDuplicateCode)
		assert.ErrorContains(t, err, "status_code_key")
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		err := r.handlePostgresError("get_version", pgx.ErrNoRows)
		assert.ErrorIs(t, err, shotline.ErrVersionNotFound)
	})

	t.Run("plain errors are wrapped", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := r.handlePostgresError("list_versions", cause)
		assert.ErrorIs(t, err, cause)
	})
}
