// AngelaMos | 2026
// postgres_users.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/BfdCampos/workplay/internal/core"
)

func (s *postgresStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		WITH inserted AS (
			INSERT INTO users (id, name, email, email_verified, image, role_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING role_id, created_at, updated_at
		)
		SELECT i.created_at, i.updated_at, r.dashboard
		FROM inserted i
		JOIN roles r ON r.id = i.role_id`

	err := s.db.GetContext(ctx, user, query,
		user.ID,
		user.Name,
		user.Email,
		user.EmailVerified,
		user.Image,
		user.RoleID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrConflict)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf(
				"create user: unknown role %q: %w",
				user.RoleID,
				core.ErrInvalidInput,
			)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (s *postgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}

	query := `
		SELECT` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`

	var user User
	err := s.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (s *postgresStore) GetUserByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `
		SELECT` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1`

	var user User
	err := s.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (s *postgresStore) UpdateUser(
	ctx context.Context,
	patch UserPatch,
) (*User, error) {
	if _, err := uuid.Parse(patch.ID); err != nil {
		return nil, fmt.Errorf("update user: %w", core.ErrNotFound)
	}

	query := `
		WITH u AS (
			UPDATE users
			SET name = COALESCE($2, name),
			    email = COALESCE($3, email),
			    email_verified = COALESCE($4, email_verified),
			    image = COALESCE($5, image),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT` + userColumns + `
		FROM u
		JOIN roles r ON r.id = u.role_id`

	var user User
	err := s.db.GetContext(ctx, &user, query,
		patch.ID,
		patch.Name,
		patch.Email,
		patch.EmailVerified,
		patch.Image,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("update user: %w", core.ErrConflict)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return &user, nil
}

func (s *postgresStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("delete user: still referenced: %w", core.ErrConflict)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	return nil
}

func (s *postgresStore) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(u.email ILIKE $%d OR u.name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("u.role_id = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users u WHERE %s",
		whereClause,
	)
	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT`+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE %s
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (s *postgresStore) CountUsersByRole(ctx context.Context) ([]RoleCount, error) {
	query := `
		SELECT role_id, COUNT(*) AS count
		FROM users
		GROUP BY role_id
		ORDER BY role_id`

	var counts []RoleCount
	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}

	return counts, nil
}
