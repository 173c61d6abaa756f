package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewgate/crewgate/internal/audit"
	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/security/lockout"
	"github.com/crewgate/crewgate/internal/security/password"
	tokens "github.com/crewgate/crewgate/internal/security/token"
	"github.com/crewgate/crewgate/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testMeta = RequestMeta{IP: "10.0.0.1", UserAgent: "go-test", DeviceFingerprint: "fp-1"}

// captureMailer guarda el último token enviado en lugar de mandar correo.
type captureMailer struct {
	mu    sync.Mutex
	email string
	token string
	sent  int
}

func (m *captureMailer) SendMagicLink(_ context.Context, email, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = email
	m.token = token
	m.sent++
	return nil
}

type testEnv struct {
	store    *memory.Store
	issuer   *jwtx.Issuer
	lockout  *lockout.Policy
	recorder *securitysvc.RecorderService
	mailer   *captureMailer

	login     LoginService
	magicLink MagicLinkService
	refresh   RefreshService
	logout    LogoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.New()
	issuer, err := jwtx.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	aud := audit.NewLogger(st.Audit())
	t.Cleanup(aud.Close)

	rec := securitysvc.NewRecorderService(securitysvc.RecorderDeps{Events: st.Events()})
	lock := lockout.New(st.Lockouts())
	mailer := &captureMailer{}

	env := &testEnv{
		store:    st,
		issuer:   issuer,
		lockout:  lock,
		recorder: rec,
		mailer:   mailer,
	}
	env.login = NewLoginService(LoginDeps{
		Store: st, Issuer: issuer, Lockout: lock, Recorder: rec, Audit: aud,
		RefreshTTL: 24 * time.Hour,
	})
	env.magicLink = NewMagicLinkService(MagicLinkDeps{
		Store: st, Issuer: issuer, Lockout: lock, Recorder: rec, Audit: aud,
		Mailer: mailer, LinkTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour,
	})
	env.refresh = NewRefreshService(RefreshDeps{
		Store: st, Issuer: issuer, Recorder: rec, Audit: aud,
		RefreshTTL: 24 * time.Hour,
	})
	env.logout = NewLogoutService(LogoutDeps{Store: st, Issuer: issuer, Audit: aud})
	return env
}

func (e *testEnv) seedAdmin(t *testing.T, email, plain string) *repository.User {
	t.Helper()
	hash, err := password.Hash(password.Default, plain)
	require.NoError(t, err)
	u := repository.User{
		ID:           "usr-" + email,
		Email:        email,
		Role:         types.RoleAdmin,
		PasswordHash: &hash,
		IsActive:     true,
	}
	e.store.SeedUser(u)
	return &u
}

func (e *testEnv) seedCrew(t *testing.T, email string) *repository.User {
	t.Helper()
	u := repository.User{
		ID:       "usr-" + email,
		Email:    email,
		Role:     types.RoleCrew,
		IsActive: true,
	}
	e.store.SeedUser(u)
	return &u
}

func (e *testEnv) eventTypes(t *testing.T) []types.EventType {
	t.Helper()
	evs, err := e.recorder.List(context.Background(), repository.SecurityEventFilter{})
	require.NoError(t, err)
	out := make([]types.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func TestLoginPassword_Success(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	resp, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email:    "  Capitan@Naviera.Test ",
		Password: "correct horse battery",
	}, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, u.ID, resp.User.ID)
	require.Equal(t, "admin", resp.User.Role)

	// El access token emitido es verificable.
	claims, err := env.issuer.Parse(resp.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)

	// El login abre una sesión de dispositivo.
	sessions, err := env.store.Sessions().ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].IsActive)
	require.Equal(t, testMeta.IP, sessions[0].IPAddress)
}

func TestLoginPassword_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{Email: "a@b.test"}, testMeta)
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestLoginPassword_BadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	_, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "wrong",
	}, testMeta)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Contains(t, env.eventTypes(t), types.EventLoginFailure)
}

func TestLoginPassword_UnknownUserSameAnswer(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "nadie@naviera.test", Password: "whatever",
	}, testMeta)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// El intento contra un email inexistente también cuenta para el lockout.
	rec, err := env.store.Lockouts().Get(context.Background(), "nadie@naviera.test")
	require.NoError(t, err)
	require.Equal(t, 1, rec.Failures)
}

func TestLoginPassword_CrewHasNoPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedCrew(t, "marinero@naviera.test")

	_, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "marinero@naviera.test", Password: "anything",
	}, testMeta)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginPassword_ProgressiveLockout(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")
	bad := dto.LoginRequest{Email: "capitan@naviera.test", Password: "wrong"}

	for i := 0; i < 3; i++ {
		_, err := env.login.LoginPassword(context.Background(), bad, testMeta)
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	// El cuarto fallo activa el lock con Retry-After.
	_, err := env.login.LoginPassword(context.Background(), bad, testMeta)
	var locked *lockout.LockedError
	require.ErrorAs(t, err, &locked)
	require.Greater(t, locked.RetryAfter, time.Duration(0))
	require.Contains(t, env.eventTypes(t), types.EventAccountLockout)

	// Mientras dura el lock, ni la password correcta entra.
	_, err = env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "correct horse battery",
	}, testMeta)
	require.ErrorIs(t, err, lockout.ErrAccountLocked)
}

func TestLoginPassword_SuccessResetsLockout(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	_, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "wrong",
	}, testMeta)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "correct horse battery",
	}, testMeta)
	require.NoError(t, err)

	_, err = env.store.Lockouts().Get(context.Background(), "capitan@naviera.test")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLoginPassword_MFAGate(t *testing.T) {
	env := newTestEnv(t)
	hash, err := password.Hash(password.Default, "correct horse battery")
	require.NoError(t, err)
	secret := "JBSWY3DPEHPK3PXP"
	env.store.SeedUser(repository.User{
		ID:           "usr-mfa",
		Email:        "jefa@naviera.test",
		Role:         types.RoleManager,
		PasswordHash: &hash,
		MFASecret:    &secret,
		IsActive:     true,
	})

	// Password correcta sin código: se pide el segundo factor.
	_, err = env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "jefa@naviera.test", Password: "correct horse battery",
	}, testMeta)
	require.ErrorIs(t, err, ErrMFARequired)

	// Código incorrecto.
	_, err = env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "jefa@naviera.test", Password: "correct horse battery", MFACode: "000000",
	}, testMeta)
	require.ErrorIs(t, err, ErrMFAInvalid)
	require.Contains(t, env.eventTypes(t), types.EventMFAFailure)
}

func TestMagicLink_RequestAndConsume(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedCrew(t, "marinero@naviera.test")

	err := env.magicLink.Request(context.Background(), "Marinero@Naviera.Test", testMeta)
	require.NoError(t, err)
	require.Equal(t, 1, env.mailer.sent)
	require.Equal(t, "marinero@naviera.test", env.mailer.email)
	require.NotEmpty(t, env.mailer.token)

	resp, err := env.magicLink.Consume(context.Background(), env.mailer.token, testMeta)
	require.NoError(t, err)
	require.Equal(t, u.ID, resp.User.ID)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)

	// Replay del mismo link: rechazado y registrado como replay.
	_, err = env.magicLink.Consume(context.Background(), env.mailer.token, testMeta)
	require.ErrorIs(t, err, ErrLinkUsed)
	require.Contains(t, env.eventTypes(t), types.EventTokenReplay)
}

func TestMagicLink_UnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)

	err := env.magicLink.Request(context.Background(), "nadie@naviera.test", testMeta)
	require.NoError(t, err)
	require.Zero(t, env.mailer.sent)
}

func TestMagicLink_RejectedForPasswordRoles(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	err := env.magicLink.Request(context.Background(), "capitan@naviera.test", testMeta)
	require.ErrorIs(t, err, ErrMagicLinkNotAllowed)
	require.Zero(t, env.mailer.sent)
	require.Contains(t, env.eventTypes(t), types.EventAuthorizationFail)
}

func TestMagicLink_GarbageToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.magicLink.Consume(context.Background(), "not-a-token", testMeta)
	require.ErrorIs(t, err, ErrLinkInvalid)
}

func TestRefresh_Rotation(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	first, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "correct horse battery",
	}, testMeta)
	require.NoError(t, err)

	second, err := env.refresh.Refresh(context.Background(), first.RefreshToken, testMeta)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, u.ID, second.User.ID)
}

func TestRefresh_ReplayRevokesFamily(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	first, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "correct horse battery",
	}, testMeta)
	require.NoError(t, err)

	second, err := env.refresh.Refresh(context.Background(), first.RefreshToken, testMeta)
	require.NoError(t, err)

	// Presentar el token ya rotado quema toda la familia.
	_, err = env.refresh.Refresh(context.Background(), first.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrRefreshRevoked)
	require.Contains(t, env.eventTypes(t), types.EventTokenReplay)

	_, err = env.refresh.Refresh(context.Background(), second.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrRefreshRevoked)
}

func TestRefresh_GarbageToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.refresh.Refresh(context.Background(), "not-a-token", testMeta)
	require.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestLogout_SingleDevice(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")

	resp, err := env.login.LoginPassword(context.Background(), dto.LoginRequest{
		Email: "capitan@naviera.test", Password: "correct horse battery",
	}, testMeta)
	require.NoError(t, err)

	revoked, err := env.logout.Logout(context.Background(), LogoutInput{
		UserID:       u.ID,
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		Meta:         testMeta,
	})
	require.NoError(t, err)
	require.Equal(t, 1, revoked)

	// El access token entra al denylist y el refresh no rota más.
	dead, err := env.store.Blacklist().IsRevoked(context.Background(), tokens.SHA256Hex(resp.Token))
	require.NoError(t, err)
	require.True(t, dead)

	_, err = env.refresh.Refresh(context.Background(), resp.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrRefreshRevoked)
}

func TestLogout_Everywhere(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedAdmin(t, "capitan@naviera.test", "correct horse battery")
	req := dto.LoginRequest{Email: "capitan@naviera.test", Password: "correct horse battery"}

	first, err := env.login.LoginPassword(context.Background(), req, testMeta)
	require.NoError(t, err)
	_, err = env.login.LoginPassword(context.Background(), req, RequestMeta{IP: "10.0.0.2", UserAgent: "other-device"})
	require.NoError(t, err)

	revoked, err := env.logout.Logout(context.Background(), LogoutInput{
		UserID:      u.ID,
		AccessToken: first.Token,
		Everywhere:  true,
		Meta:        testMeta,
	})
	require.NoError(t, err)
	require.Equal(t, 2, revoked)

	sessions, err := env.store.Sessions().ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		require.False(t, s.IsActive)
	}
}
