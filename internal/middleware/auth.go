// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
)

const (
	UserIDKey    contextKey = "user_id"
	UserRoleKey  contextKey = "user_role"
	SessionIDKey contextKey = "session_id"
	SessionKey   contextKey = "session"
	resolvedKey  contextKey = "session_resolved"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*identity.SessionAndUser, error)
}

// Authenticator rejects requests without a live session. A session already
// resolved by OptionalAuth is reused.
func Authenticator(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetSession(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			if resolved, _ := r.Context().Value(resolvedKey).(bool); resolved {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			token := ExtractToken(r, cookieName)

			if token == "" {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			found, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				slog.Error("session lookup failed", "error", err)
				core.InternalServerError(w, err)
				return
			}
			if found == nil {
				core.JSONError(w, core.UnauthorizedError("session expired or invalid"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), found)))
		})
	}
}

// OptionalAuth attaches the session when one resolves and never rejects.
func OptionalAuth(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r, cookieName); token != "" {
				found, err := resolver.Resolve(r.Context(), token)
				switch {
				case err != nil:
					slog.Warn("optional session lookup failed", "error", err)
				case found != nil:
					r = r.WithContext(withSession(r.Context(), found))
				default:
					r = r.WithContext(context.WithValue(r.Context(), resolvedKey, true))
				}
			} else {
				r = r.WithContext(context.WithValue(r.Context(), resolvedKey, true))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withSession(ctx context.Context, found *identity.SessionAndUser) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, found.User.ID)
	ctx = context.WithValue(ctx, UserRoleKey, found.User.RoleID)
	ctx = context.WithValue(ctx, SessionIDKey, found.Session.ID)
	ctx = context.WithValue(ctx, SessionKey, found)
	return ctx
}

// DenyRoles answers 403 for callers holding any of roles.
func DenyRoles(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			if userRole == "" {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			if _, ok := roleSet[userRole]; ok {
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireDashboard admits users whose role carries the dashboard flag.
// Everyone else gets the same "unauthorized" answer.
func RequireDashboard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CanViewDashboard(r.Context()) {
			core.JSONError(w, core.UnauthorizedError(""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractToken prefers the session cookie and falls back to a bearer token.
func ExtractToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

func GetSession(ctx context.Context) *identity.SessionAndUser {
	if found, ok := ctx.Value(SessionKey).(*identity.SessionAndUser); ok {
		return found
	}
	return nil
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}

func CanViewDashboard(ctx context.Context) bool {
	found := GetSession(ctx)
	return found != nil && found.User.CanViewDashboard()
}

// WithSession is exported for handler tests that bypass Authenticator.
func WithSession(ctx context.Context, found *identity.SessionAndUser) context.Context {
	return withSession(ctx, found)
}
