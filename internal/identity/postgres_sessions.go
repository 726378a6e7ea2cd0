// AngelaMos | 2026
// postgres_sessions.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BfdCampos/workplay/internal/core"
)

type sessionUserRow struct {
	User
	SessionID        string    `db:"session_id"`
	SessionTokenHash string    `db:"session_token_hash"`
	SessionExpires   time.Time `db:"session_expires"`
	SessionCreatedAt time.Time `db:"session_created_at"`
}

func (row *sessionUserRow) toSessionAndUser() *SessionAndUser {
	return &SessionAndUser{
		Session: Session{
			ID:        row.SessionID,
			TokenHash: row.SessionTokenHash,
			UserID:    row.User.ID,
			Expires:   row.SessionExpires,
			CreatedAt: row.SessionCreatedAt,
		},
		User: row.User,
	}
}

func (s *postgresStore) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sessions (id, session_token_hash, user_id, expires)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := s.db.GetContext(ctx, &session.CreatedAt, query,
		session.ID,
		session.TokenHash,
		session.UserID,
		session.Expires,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create session: %w", core.ErrConflict)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create session: unknown user: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (s *postgresStore) GetSessionAndUser(
	ctx context.Context,
	tokenHash string,
) (*SessionAndUser, error) {
	query := `
		SELECT` + userColumns + `,
		       s.id AS session_id,
		       s.session_token_hash,
		       s.expires AS session_expires,
		       s.created_at AS session_created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		JOIN roles r ON r.id = u.role_id
		WHERE s.session_token_hash = $1`

	var row sessionUserRow
	err := s.db.GetContext(ctx, &row, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session and user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session and user: %w", err)
	}

	return row.toSessionAndUser(), nil
}

func (s *postgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get session: %w", core.ErrNotFound)
	}

	query := `
		SELECT id, session_token_hash, user_id, expires, created_at
		FROM sessions
		WHERE id = $1`

	var session Session
	err := s.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (s *postgresStore) UpdateSession(
	ctx context.Context,
	tokenHash string,
	expires time.Time,
) (*Session, error) {
	query := `
		UPDATE sessions
		SET expires = $2
		WHERE session_token_hash = $1
		RETURNING id, session_token_hash, user_id, expires, created_at`

	var session Session
	err := s.db.GetContext(ctx, &session, query, tokenHash, expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	return &session, nil
}

func (s *postgresStore) DeleteSessionByToken(
	ctx context.Context,
	tokenHash string,
) (int64, error) {
	return s.execCount(
		ctx,
		"delete session",
		`DELETE FROM sessions WHERE session_token_hash = $1`,
		tokenHash,
	)
}

func (s *postgresStore) DeleteSessionByID(ctx context.Context, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}

	return s.execCount(ctx, "delete session by id", `DELETE FROM sessions WHERE id = $1`, id)
}

func (s *postgresStore) DeleteSessionsByUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}

	return s.execCount(
		ctx,
		"delete sessions by user",
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
}

func (s *postgresStore) DeleteAllSessions(ctx context.Context) (int64, error) {
	return s.execCount(ctx, "delete all sessions", `DELETE FROM sessions`)
}

func (s *postgresStore) ListSessionsByUser(
	ctx context.Context,
	userID string,
) ([]Session, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Session{}, nil
	}

	query := `
		SELECT id, session_token_hash, user_id, expires, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC`

	sessions := []Session{}
	if err := s.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

func (s *postgresStore) CountActiveSessions(
	ctx context.Context,
	now time.Time,
) (int, error) {
	var count int
	err := s.db.GetContext(
		ctx,
		&count,
		`SELECT COUNT(*) FROM sessions WHERE expires > $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}

	return count, nil
}

func (s *postgresStore) DeleteExpiredSessions(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	return s.execCount(
		ctx,
		"delete expired sessions",
		`DELETE FROM sessions WHERE expires <= $1`,
		now,
	)
}

func (s *postgresStore) execCount(
	ctx context.Context,
	op, query string,
	args ...any,
) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}
