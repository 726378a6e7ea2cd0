// AngelaMos | 2026
// postgres.go

package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/BfdCampos/workplay/internal/core"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const userColumns = `
		u.id, u.name, u.email, u.email_verified, u.image, u.role_id,
		r.dashboard, u.created_at, u.updated_at`

type postgresStore struct {
	db       core.DBTX
	root     *sqlx.DB
	reassign []ReassignTarget
}

// NewPostgresStore returns a Store backed by the schema in the migrations
// package. reassign lists the extra ownership columns moved by
// ReassignUserData.
func NewPostgresStore(db *sqlx.DB, reassign []ReassignTarget) Store {
	return &postgresStore{db: db, root: db, reassign: reassign}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.root == nil {
		return fn(s)
	}

	return core.InTx(ctx, s.root, func(tx *sqlx.Tx) error {
		return fn(&postgresStore{db: tx, reassign: s.reassign})
	})
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

var _ Store = (*postgresStore)(nil)
