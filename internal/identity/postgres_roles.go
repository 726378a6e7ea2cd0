// AngelaMos | 2026
// postgres_roles.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/BfdCampos/workplay/internal/core"
)

func (s *postgresStore) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, name, dashboard
		FROM roles
		ORDER BY dashboard, id`

	var roles []Role
	if err := s.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	return roles, nil
}

func (s *postgresStore) GetRole(ctx context.Context, id string) (*Role, error) {
	var role Role
	err := s.db.GetContext(
		ctx,
		&role,
		`SELECT id, name, dashboard FROM roles WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}

	return &role, nil
}

// SetUserRole changes the role and writes the audit row in one transaction.
// Setting the role a user already holds writes nothing.
func (s *postgresStore) SetUserRole(
	ctx context.Context,
	userID, roleID, actor string,
) (*User, error) {
	var updated *User

	err := s.InTx(ctx, func(tx Store) error {
		ps := tx.(*postgresStore)

		if _, err := ps.GetRole(ctx, roleID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf(
					"set user role: unknown role %q: %w",
					roleID,
					core.ErrInvalidInput,
				)
			}
			return fmt.Errorf("set user role: %w", err)
		}

		if _, err := uuid.Parse(userID); err != nil {
			return fmt.Errorf("set user role: %w", core.ErrNotFound)
		}

		var current string
		err := ps.db.GetContext(
			ctx,
			&current,
			`SELECT role_id FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("set user role: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("set user role: %w", err)
		}

		if current != roleID {
			_, err = ps.db.ExecContext(
				ctx,
				`UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`,
				userID,
				roleID,
			)
			if err != nil {
				return fmt.Errorf("set user role: %w", err)
			}

			_, err = ps.db.ExecContext(ctx, `
				INSERT INTO role_changes (id, user_id, from_role, to_role, actor)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.New().String(),
				userID,
				current,
				roleID,
				actor,
			)
			if err != nil {
				return fmt.Errorf("record role change: %w", err)
			}
		}

		user, err := ps.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *postgresStore) ListRoleChanges(
	ctx context.Context,
	userID string,
) ([]RoleChange, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []RoleChange{}, nil
	}

	query := `
		SELECT id, user_id, from_role, to_role, actor, created_at
		FROM role_changes
		WHERE user_id = $1
		ORDER BY created_at DESC`

	changes := []RoleChange{}
	if err := s.db.SelectContext(ctx, &changes, query, userID); err != nil {
		return nil, fmt.Errorf("list role changes: %w", err)
	}

	return changes, nil
}

func (s *postgresStore) ReassignUserData(ctx context.Context, from, to string) error {
	return s.InTx(ctx, func(tx Store) error {
		ps := tx.(*postgresStore)

		statements := []string{
			`UPDATE accounts SET user_id = $2 WHERE user_id = $1`,
			`UPDATE sessions SET user_id = $2 WHERE user_id = $1`,
		}
		for _, target := range ps.reassign {
			column := pgx.Identifier{target.Column}.Sanitize()
			statements = append(statements, fmt.Sprintf(
				`UPDATE %s SET %s = $2 WHERE %s = $1`,
				pgx.Identifier{target.Table}.Sanitize(),
				column,
				column,
			))
		}

		for _, stmt := range statements {
			if _, err := ps.db.ExecContext(ctx, stmt, from, to); err != nil {
				return fmt.Errorf("reassign user data: %w", err)
			}
		}

		return nil
	})
}
