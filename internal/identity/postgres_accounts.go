// AngelaMos | 2026
// postgres_accounts.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/BfdCampos/workplay/internal/core"
)

const accountColumns = `
		id, user_id, type, provider, provider_account_id, refresh_token,
		access_token, expires_at, token_type, scope, id_token, session_state,
		created_at`

func (s *postgresStore) CreateAccount(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	query := `
		INSERT INTO accounts (
			id, user_id, type, provider, provider_account_id, refresh_token,
			access_token, expires_at, token_type, scope, id_token, session_state
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING created_at`

	err := s.db.GetContext(ctx, &account.CreatedAt, query,
		account.ID,
		account.UserID,
		account.Type,
		account.Provider,
		account.ProviderAccountID,
		account.RefreshToken,
		account.AccessToken,
		account.ExpiresAt,
		account.TokenType,
		account.Scope,
		account.IDToken,
		account.SessionState,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create account: %w", core.ErrConflict)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create account: unknown user: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

func (s *postgresStore) GetAccount(
	ctx context.Context,
	provider, providerAccountID string,
) (*Account, error) {
	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2`

	var account Account
	err := s.db.GetContext(ctx, &account, query, provider, providerAccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &account, nil
}

func (s *postgresStore) GetUserByAccount(
	ctx context.Context,
	provider, providerAccountID string,
) (*User, error) {
	query := `
		SELECT` + userColumns + `
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		JOIN roles r ON r.id = u.role_id
		WHERE a.provider = $1 AND a.provider_account_id = $2`

	var user User
	err := s.db.GetContext(ctx, &user, query, provider, providerAccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by account: %w", err)
	}

	return &user, nil
}

func (s *postgresStore) DeleteAccount(
	ctx context.Context,
	provider, providerAccountID string,
) error {
	query := `
		DELETE FROM accounts
		WHERE provider = $1 AND provider_account_id = $2`

	result, err := s.db.ExecContext(ctx, query, provider, providerAccountID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete account: %w", core.ErrNotFound)
	}

	return nil
}

func (s *postgresStore) DeleteAccountsByUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete accounts by user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete accounts by user: %w", err)
	}

	return rows, nil
}

func (s *postgresStore) ListAccountsByUser(
	ctx context.Context,
	userID string,
) ([]Account, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Account{}, nil
	}

	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at`

	accounts := []Account{}
	if err := s.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}
