package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/rate"
	tokens "github.com/crewgate/crewgate/internal/security/token"
	"github.com/crewgate/crewgate/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newIssuer(t *testing.T) *jwtx.Issuer {
	t.Helper()
	iss, err := jwtx.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return iss
}

func signFor(t *testing.T, iss *jwtx.Issuer, role types.Role) string {
	t.Helper()
	tok, err := iss.Sign(&repository.User{
		ID:    "usr-1",
		Email: "capitan@naviera.test",
		Role:  role,
	})
	require.NoError(t, err)
	return tok
}

// okHandler confirma que el request atravesó el chain.
func okHandler(seen *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = true
		w.WriteHeader(http.StatusOK)
	})
}

// downBlacklist simula el denylist con el backend caído.
type downBlacklist struct{}

func (downBlacklist) Add(context.Context, repository.BlacklistEntry) error { return nil }
func (downBlacklist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}
func (downBlacklist) DeleteExpired(context.Context, time.Time) (int, error) { return 0, nil }

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	// Sin header el middleware genera un ULID propio.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rr.Header().Get("X-Request-ID"))

	// El ID del cliente se propaga tal cual.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "cliente-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, "cliente-123", seen)
	require.Equal(t, "cliente-123", rr.Header().Get("X-Request-ID"))

	// Un ID desmedido se descarta y se genera uno nuevo.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 200))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.NotEqual(t, strings.Repeat("a", 200), seen)
	require.NotEmpty(t, seen)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	st := memory.New()
	var seen bool
	h := Chain(okHandler(&seen), RequireAuth(newIssuer(t), st.Blacklist()))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "invalid_token")
	require.False(t, seen)
}

func TestRequireAuth_ValidTokenInjectsClaims(t *testing.T) {
	st := memory.New()
	iss := newIssuer(t)
	tok := signFor(t, iss, types.RoleManager)

	var claims *jwtx.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Chain(inner, RequireAuth(iss, st.Blacklist()))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, claims)
	require.Equal(t, "usr-1", claims.UserID)
	require.Equal(t, types.RoleManager, claims.Role)
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	st := memory.New()
	iss := newIssuer(t)
	tok := signFor(t, iss, types.RoleAdmin)
	require.NoError(t, st.Blacklist().Add(context.Background(), repository.BlacklistEntry{
		TokenHash: tokens.SHA256Hex(tok),
		Reason:    "logout",
		ExpiresAt: time.Now().Add(time.Hour),
		RevokedAt: time.Now(),
	}))

	var seen bool
	h := Chain(okHandler(&seen), RequireAuth(iss, st.Blacklist()))
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, seen)
}

func TestRequireAuth_DenylistDownFailsClosed(t *testing.T) {
	iss := newIssuer(t)
	tok := signFor(t, iss, types.RoleAdmin)

	var seen bool
	h := Chain(okHandler(&seen), RequireAuth(iss, downBlacklist{}))
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	// Denylist sin respuesta: el token firmado NO alcanza.
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.False(t, seen)
}

func TestRequireRole_Ordering(t *testing.T) {
	st := memory.New()
	iss := newIssuer(t)

	var seen bool
	h := Chain(okHandler(&seen),
		RequireAuth(iss, st.Blacklist()),
		RequireRole(types.RoleManager),
	)

	// crew no alcanza el mínimo manager.
	req := httptest.NewRequest(http.MethodGet, "/api/security/events", nil)
	req.Header.Set("Authorization", "Bearer "+signFor(t, iss, types.RoleCrew))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.False(t, seen)

	// admin supera manager.
	req = httptest.NewRequest(http.MethodGet, "/api/security/events", nil)
	req.Header.Set("Authorization", "Bearer "+signFor(t, iss, types.RoleAdmin))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, seen)
}

func TestRequireRole_WithoutAuthRejects(t *testing.T) {
	// RequireRole sin RequireAuth antes no encuentra claims y corta 401.
	var seen bool
	h := Chain(okHandler(&seen), RequireRole(types.RoleManager))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/security/events", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, seen)
}

func TestRequireCronSecret(t *testing.T) {
	var seen bool
	h := Chain(okHandler(&seen), RequireCronSecret("s3cret"))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/cron/sweep", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/sweep", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, seen)

	// Secreto vacío en config = endpoint cerrado, no abierto.
	h = Chain(okHandler(&seen), RequireCronSecret(""))
	req = httptest.NewRequest(http.MethodPost, "/api/cron/sweep", nil)
	req.Header.Set("X-Cron-Secret", "")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestWithRateLimit_LimitAndHeaders(t *testing.T) {
	limiter := rate.NewMemoryLimiter(2, time.Minute)
	var hits int
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	h := Chain(inner, WithRateLimit(RateLimitConfig{
		Limiter: limiter,
		Class:   rate.ClassAuth,
		Limit:   2,
	}))

	newReq := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "192.0.2.10:4444"
		return r
	}

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, newReq())
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
		require.NotEmpty(t, rr.Header().Get("X-RateLimit-Remaining"))
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newReq())
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Equal(t, 2, hits)

	// Otra IP tiene su propia ventana.
	other := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	other.RemoteAddr = "192.0.2.11:4444"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestWithRateLimit_NilLimiterPassesThrough(t *testing.T) {
	var seen bool
	h := Chain(okHandler(&seen), WithRateLimit(RateLimitConfig{Class: rate.ClassAPI}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, seen)
}
