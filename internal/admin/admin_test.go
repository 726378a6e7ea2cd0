// AngelaMos | 2026
// admin_test.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BfdCampos/workplay/internal/identity"
)

func newRouter(h *Handler) chi.Router {
	passthrough := func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	h.RegisterRoutes(r, passthrough, passthrough)
	return r
}

func get(r chi.Router, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListRoles(t *testing.T) {
	store := identity.NewMemoryStore()
	h := NewHandler(HandlerConfig{Identity: identity.NewAdapter(store, nil, identity.RoleUser, nil)})

	rec := get(newRouter(h), "/admin/roles")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []RoleResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	dashboard := map[string]bool{}
	for _, r := range body.Data {
		dashboard[r.ID] = r.Dashboard
	}
	assert.Len(t, dashboard, 4)
	assert.True(t, dashboard[identity.RoleAdmin])
	assert.False(t, dashboard[identity.RoleUser])
}

func TestSystemStatsWithoutInfrastructure(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryStore()
	adapter := identity.NewAdapter(store, nil, identity.RoleUser, nil)
	for _, role := range []string{identity.RoleUser, identity.RoleUser, identity.RoleGuest} {
		u, err := adapter.CreateUser(ctx, identity.NewUser{Name: role, RoleID: role})
		require.NoError(t, err)
		_, err = adapter.CreateSession(ctx, identity.NewSession{UserID: u.ID, Expires: time.Now().Add(time.Hour)})
		require.NoError(t, err)
	}

	rec := get(newRouter(NewHandler(HandlerConfig{Identity: adapter})), "/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 3, body.Data.Identity.Users)
	assert.Equal(t, 2, body.Data.Identity.UsersByRole[identity.RoleUser])
	assert.Equal(t, 3, body.Data.Identity.ActiveSessions)
	assert.False(t, body.Data.Database.Enabled)
	assert.False(t, body.Data.Redis.Enabled)
	assert.Nil(t, body.Data.Redis.Stats)
	assert.NotEmpty(t, body.Data.Runtime.GoVersion)
}

func TestSystemStatsReportsUnhealthyRedis(t *testing.T) {
	adapter := identity.NewAdapter(identity.NewMemoryStore(), nil, identity.RoleUser, nil)
	h := NewHandler(HandlerConfig{
		Identity:  adapter,
		RedisPing: func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})

	rec := get(newRouter(h), "/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Redis.Enabled)
	assert.False(t, body.Data.Redis.Healthy)
}
