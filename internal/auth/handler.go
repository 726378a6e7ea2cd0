// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/middleware"
	"github.com/BfdCampos/workplay/internal/provider"
	"github.com/BfdCampos/workplay/internal/user"
)

const (
	signInPath      = "/v1/auth/signin/"
	stateCookieName = "workplay.state"
	pkceCookieName  = "workplay.pkce"
	stateCookiePath = "/v1/auth/callback"
)

type HandlerConfig struct {
	Service      *Service
	Registry     *provider.Registry
	Signer       *StateSigner
	CookieName   string
	SecureCookie bool
	BaseURL      string
	Logger       *slog.Logger
}

type Handler struct {
	service      *Service
	registry     *provider.Registry
	signer       *StateSigner
	cookieName   string
	secureCookie bool
	baseURL      string
	validator    *validator.Validate
	logger       *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:      cfg.Service,
		registry:     cfg.Registry,
		signer:       cfg.Signer,
		cookieName:   cfg.CookieName,
		secureCookie: cfg.SecureCookie,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		validator:    validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
	}
}

// RegisterRoutes expects OptionalAuth to run upstream so the session and
// callback handlers can see the current caller.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/providers", h.ListProviders)
		r.Get("/signin/{provider}", h.SignIn)
		r.Get("/callback/{provider}", h.Callback)
		if h.registry.CredentialsEnabled() {
			r.Post("/callback/credentials", h.CredentialsCallback)
		}

		r.Get("/session", h.GetSession)
		r.Post("/signout", h.SignOut)
	})
}

// RegisterDevRoutes is a no-op when the credentials provider is disabled.
func (h *Handler) RegisterDevRoutes(r chi.Router) {
	if !h.registry.CredentialsEnabled() {
		return
	}

	r.Route("/dev", func(r chi.Router) {
		r.Get("/users", h.DevListUsers)
		r.Post("/sessions", h.DevCreateSession)
	})
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.List()
	providers := make([]ProviderResponse, len(descriptors))
	for i, d := range descriptors {
		providers[i] = ToProviderResponse(d)
	}

	core.OK(w, providers)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")

	d, ok := h.registry.Get(providerID)
	if !ok || d.Source == nil {
		core.NotFound(w, "provider")
		return
	}

	callbackURL := h.safeCallbackURL(r.URL.Query().Get("callbackUrl"))

	state, claims, err := h.signer.Issue(providerID, callbackURL)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	verifier := oauth2.GenerateVerifier()
	h.setFlowCookie(w, stateCookieName, claims.ID)
	h.setFlowCookie(w, pkceCookieName, verifier)

	http.Redirect(w, r, d.Source.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")

	d, ok := h.registry.Get(providerID)
	if !ok || d.Source == nil {
		core.NotFound(w, "provider")
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warn("provider returned error",
			"provider", providerID,
			"error", providerErr,
		)
		core.Unauthorized(w, "sign in cancelled")
		return
	}

	code := query.Get("code")
	if code == "" {
		core.BadRequest(w, "authorization code required")
		return
	}

	claims, err := h.signer.Verify(r.Context(), query.Get("state"), providerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value != claims.ID {
		core.JSONError(w, core.TokenInvalidError())
		return
	}
	verifier, err := r.Cookie(pkceCookieName)
	if err != nil || verifier.Value == "" {
		core.JSONError(w, core.TokenInvalidError())
		return
	}
	h.clearCookie(w, stateCookieName, stateCookiePath)
	h.clearCookie(w, pkceCookieName, stateCookiePath)

	result, err := d.Source.Authenticate(r.Context(), code, verifier.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var signedIn *SignInResult
	if current := middleware.GetSession(r.Context()); current != nil && current.User.IsGuest() {
		signedIn, err = h.service.LinkGuest(r.Context(), &current.User, providerID, &result.Profile, result.Token)
	} else {
		signedIn, err = h.service.SignIn(r.Context(), providerID, &result.Profile, result.Token)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.setSessionCookie(w, signedIn.Session)
	http.Redirect(w, r, h.safeCallbackURL(claims.CallbackURL), http.StatusFound)
}

func (h *Handler) CredentialsCallback(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	signedIn, err := h.service.SignInWithCredentials(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.setSessionCookie(w, signedIn.Session)
	core.OK(w, SignInResponse{
		User:        user.ToUserResponse(signedIn.User),
		Expires:     signedIn.Session.Expires,
		CallbackURL: h.safeCallbackURL(req.CallbackURL),
	})
}

// GetSession answers with an empty envelope for anonymous callers.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	found := middleware.GetSession(r.Context())
	if found == nil {
		core.Done(w)
		return
	}

	core.OK(w, ToSessionResponse(&found.Session, &found.User))
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r, h.cookieName)

	if err := h.service.SignOut(r.Context(), token); err != nil {
		core.InternalServerError(w, err)
		return
	}

	h.clearCookie(w, h.cookieName, "/")
	core.Done(w)
}

func (h *Handler) DevListUsers(w http.ResponseWriter, r *http.Request) {
	params := identity.ListUsersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 50),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, user.ToUserResponseList(users), params.Page, params.PageSize, total)
}

func (h *Handler) DevCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	signedIn, err := h.service.SignInWithCredentials(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.Created(w, DevSessionResponse{
		Token:   signedIn.Session.Token,
		User:    user.ToUserResponse(signedIn.User),
		Expires: signedIn.Session.Expires,
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, session *identity.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.Expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// setFlowCookie scopes a sign-in flow cookie to the callback path for the
// lifetime of the state token.
func (h *Handler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   int(h.signer.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeCallbackURL only allows relative paths and absolute URLs on the
// configured base URL.
func (h *Handler) safeCallbackURL(raw string) string {
	if raw == "" {
		return "/"
	}

	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") && !strings.HasPrefix(raw, "/\\") {
		return raw
	}

	if h.baseURL == "" {
		return "/"
	}

	target, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	base, err := url.Parse(h.baseURL)
	if err != nil {
		return "/"
	}
	if target.Scheme != base.Scheme || target.Host != base.Host {
		return "/"
	}

	return target.String()
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid request")
	case errors.Is(err, core.ErrUpstream):
		h.logger.Error("identity provider failure", "error", err)
		core.JSONError(w, core.NewAppError(
			err,
			"identity provider unavailable",
			http.StatusBadGateway,
			"UPSTREAM_ERROR",
		))
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
