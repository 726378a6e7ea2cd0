// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/session"
)

type Service struct {
	adapter *identity.Adapter
	revoker *session.Revoker
	logger  *slog.Logger
}

func NewService(adapter *identity.Adapter, revoker *session.Revoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{adapter: adapter, revoker: revoker, logger: logger}
}

func (s *Service) GetMe(ctx context.Context, userID string) (*identity.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.GetUser(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*identity.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.adapter.UpdateUser(ctx, identity.UserPatch{
		ID:    userID,
		Name:  req.Name,
		Image: req.Image,
	})
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}
	return s.adapter.DeleteUser(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*identity.User, error) {
	user, err := s.adapter.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return user, nil
}

func (s *Service) GetUserDetail(ctx context.Context, id string) (*UserDetail, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	sessions, err := s.adapter.ListSessions(ctx, id)
	if err != nil {
		return nil, err
	}

	accounts, err := s.adapter.ListAccounts(ctx, id)
	if err != nil {
		return nil, err
	}

	changes, err := s.adapter.ListRoleChanges(ctx, id)
	if err != nil {
		return nil, err
	}

	return &UserDetail{
		User:        user,
		Sessions:    sessions,
		Accounts:    accounts,
		RoleChanges: changes,
	}, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params identity.ListUsersParams,
) ([]identity.User, int, error) {
	return s.adapter.ListUsers(ctx, params)
}

// UpdateUserRole refuses edits to the caller's own role. Banning a user also
// ends their sessions.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	caller *identity.SessionAndUser,
	targetID, role string,
) (*identity.User, error) {
	if caller == nil {
		return nil, fmt.Errorf("update role: %w", core.ErrUnauthorized)
	}
	if caller.User.ID == targetID {
		return nil, fmt.Errorf("update role: own role: %w", core.ErrForbidden)
	}

	user, err := s.adapter.SetUserRole(ctx, caller.User.ID, targetID, role)
	if err != nil {
		return nil, err
	}

	if user.IsBanned() {
		count, err := s.revoker.DeleteUserSessions(ctx, caller, targetID)
		if err != nil {
			s.logger.Warn("failed to end sessions of banned user",
				"user_id", targetID,
				"error", err,
			)
		} else {
			s.logger.Info("banned user signed out",
				"user_id", targetID,
				"sessions", count,
			)
		}
	}

	return user, nil
}

// CanDeleteUser allows dashboard users to delete anyone except themselves
// and other dashboard users.
func (s *Service) CanDeleteUser(
	ctx context.Context,
	caller *identity.SessionAndUser,
	targetID string,
) error {
	if caller == nil || !caller.User.CanViewDashboard() {
		return fmt.Errorf("delete user: %w", core.ErrUnauthorized)
	}

	if caller.User.ID == targetID {
		return fmt.Errorf("delete user: self: %w", core.ErrForbidden)
	}

	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return err
	}

	if target.CanViewDashboard() {
		return fmt.Errorf("cannot delete dashboard users: %w", core.ErrForbidden)
	}

	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.adapter.DeleteUser(ctx, id)
}
