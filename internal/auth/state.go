// AngelaMos | 2026
// state.go

package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/redis/go-redis/v9"

	"github.com/BfdCampos/workplay/internal/core"
)

const (
	stateTokenType   = "oauth_state"
	stateKeyPrefix   = "oauth_state:"
	defaultStateTTL  = 10 * time.Minute
	minStateKeyBytes = 32
)

type StateClaims struct {
	ID          string
	Provider    string
	CallbackURL string
}

// StateSigner issues the OAuth state parameter as a short-lived HS256 JWT.
// Each state verifies once.
type StateSigner struct {
	key    jwk.Key
	issuer string
	ttl    time.Duration
	guard  replayGuard
}

func NewStateSigner(
	secret, issuer string,
	ttl time.Duration,
	rdb *redis.Client,
) (*StateSigner, error) {
	if len(secret) < minStateKeyBytes {
		return nil, fmt.Errorf("state secret must be at least %d bytes", minStateKeyBytes)
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}

	key, err := jwk.Import([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("import state key: %w", err)
	}
	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	var guard replayGuard = newMemoryReplayGuard()
	if rdb != nil {
		guard = &redisReplayGuard{client: rdb}
	}

	return &StateSigner{key: key, issuer: issuer, ttl: ttl, guard: guard}, nil
}

func (s *StateSigner) Issue(provider, callbackURL string) (string, *StateClaims, error) {
	now := time.Now()
	id := uuid.New().String()

	token, err := jwt.NewBuilder().
		JwtID(id).
		Issuer(s.issuer).
		Subject(provider).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		NotBefore(now).
		Claim("callback_url", callbackURL).
		Claim("type", stateTokenType).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("build state: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return "", nil, fmt.Errorf("sign state: %w", err)
	}

	return string(signed), &StateClaims{
		ID:          id,
		Provider:    provider,
		CallbackURL: callbackURL,
	}, nil
}

// Verify checks signature, expiry and provider, then burns the state id.
func (s *StateSigner) Verify(
	ctx context.Context,
	state, provider string,
) (*StateClaims, error) {
	token, err := jwt.Parse(
		[]byte(state),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify state: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify state: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil || tokenType != stateTokenType {
		return nil, fmt.Errorf("verify state: invalid token type: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject != provider {
		return nil, fmt.Errorf("verify state: provider mismatch: %w", core.ErrTokenInvalid)
	}

	id, ok := token.JwtID()
	if !ok || id == "" {
		return nil, fmt.Errorf("verify state: missing id: %w", core.ErrTokenInvalid)
	}

	var callbackURL string
	//nolint:errcheck // optional claim
	_ = token.Get("callback_url", &callbackURL)

	fresh, err := s.guard.claim(ctx, id, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("verify state: %w", err)
	}
	if !fresh {
		return nil, fmt.Errorf("verify state: already used: %w", core.ErrTokenInvalid)
	}

	return &StateClaims{ID: id, Provider: subject, CallbackURL: callbackURL}, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}

type replayGuard interface {
	claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

type redisReplayGuard struct {
	client *redis.Client
}

func (g *redisReplayGuard) claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, stateKeyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim state: %w", err)
	}
	return ok, nil
}

type memoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newMemoryReplayGuard() *memoryReplayGuard {
	return &memoryReplayGuard{seen: make(map[string]time.Time)}
}

func (g *memoryReplayGuard) claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for k, until := range g.seen {
		if now.After(until) {
			delete(g.seen, k)
		}
	}

	if _, used := g.seen[id]; used {
		return false, nil
	}
	g.seen[id] = now.Add(ttl)
	return true, nil
}
