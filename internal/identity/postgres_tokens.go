// AngelaMos | 2026
// postgres_tokens.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BfdCampos/workplay/internal/core"
)

func (s *postgresStore) CreateVerificationToken(
	ctx context.Context,
	token *VerificationToken,
) error {
	query := `
		INSERT INTO verification_tokens (identifier, token_hash, expires)
		VALUES ($1, $2, $3)`

	_, err := s.db.ExecContext(ctx, query, token.Identifier, token.TokenHash, token.Expires)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create verification token: %w", core.ErrConflict)
		}
		return fmt.Errorf("create verification token: %w", err)
	}

	return nil
}

// ConsumeVerificationToken deletes and returns the row in one statement, so
// of two concurrent callers exactly one sees the token.
func (s *postgresStore) ConsumeVerificationToken(
	ctx context.Context,
	identifier, tokenHash string,
) (*VerificationToken, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE identifier = $1 AND token_hash = $2
		RETURNING identifier, token_hash, expires`

	var token VerificationToken
	err := s.db.GetContext(ctx, &token, query, identifier, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume verification token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume verification token: %w", err)
	}

	return &token, nil
}

func (s *postgresStore) DeleteExpiredVerificationTokens(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	return s.execCount(
		ctx,
		"delete expired verification tokens",
		`DELETE FROM verification_tokens WHERE expires <= $1`,
		now,
	)
}
