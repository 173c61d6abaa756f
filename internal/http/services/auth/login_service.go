package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crewgate/crewgate/internal/audit"
	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/security/lockout"
	"github.com/crewgate/crewgate/internal/security/password"
	"github.com/crewgate/crewgate/internal/security/totp"
	"github.com/crewgate/crewgate/internal/store"
)

// Errores de login
var (
	ErrMissingFields      = fmt.Errorf("missing required fields")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrMFARequired        = fmt.Errorf("mfa code required")
	ErrMFAInvalid         = fmt.Errorf("mfa code invalid")
	ErrStoreUnavailable   = fmt.Errorf("auth store unavailable")
)

// LoginDeps contiene las dependencias del login service.
type LoginDeps struct {
	Store      store.Store
	Issuer     *jwtx.Issuer
	Lockout    *lockout.Policy
	Recorder   *securitysvc.RecorderService
	Audit      *audit.Logger
	RefreshTTL time.Duration
}

type loginService struct {
	deps LoginDeps
	mint tokenMint
}

// NewLoginService crea el servicio de login con password.
func NewLoginService(deps LoginDeps) LoginService {
	return &loginService{
		deps: deps,
		mint: tokenMint{store: deps.Store, issuer: deps.Issuer, refreshTTL: deps.RefreshTTL},
	}
}

func (s *loginService) LoginPassword(ctx context.Context, in dto.LoginRequest, meta RequestMeta) (*dto.LoginResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("LoginPassword"),
	)

	// Paso 0: Normalización
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	// Paso 1: Lockout gate. El chequeo corre antes de tocar credenciales;
	// si el store del lockout no responde, el login se rechaza (fail
	// closed), nunca se salta el gate.
	if err := s.deps.Lockout.Check(ctx, in.Email); err != nil {
		var locked *lockout.LockedError
		if errors.As(err, &locked) {
			metrics.LoginAttempts.WithLabelValues("locked").Inc()
			return nil, locked
		}
		log.Error("lockout check failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	// Paso 2: Buscar usuario y verificar password. Usuario inexistente y
	// password incorrecta responden idéntico, y ambos cuentan contra el
	// lockout: no se puede enumerar emails midiendo el contador.
	user, err := s.deps.Store.Users().FindByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("user not found")
			return nil, s.failLogin(ctx, in.Email, meta, "unknown_user")
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	log = log.With(logger.UserID(user.ID))

	// Crew no tiene password: su única vía es el magic link. La respuesta
	// es la misma que credenciales inválidas.
	if user.PasswordHash == nil || *user.PasswordHash == "" {
		log.Debug("no password identity")
		return nil, s.failLogin(ctx, in.Email, meta, "no_password")
	}

	if !password.Verify(in.Password, *user.PasswordHash) {
		log.Debug("password check failed")
		return nil, s.failLogin(ctx, in.Email, meta, "bad_password")
	}

	// Paso 3: MFA gate
	if user.MFASecret != nil && *user.MFASecret != "" {
		if strings.TrimSpace(in.MFACode) == "" {
			return nil, ErrMFARequired
		}
		secret, err := totp.DecodeSecret(*user.MFASecret)
		if err != nil {
			log.Error("mfa secret corrupt", logger.Err(err))
			return nil, ErrStoreUnavailable
		}
		if !totp.Verify(secret, strings.TrimSpace(in.MFACode), time.Now(), 1) {
			return nil, s.failMFA(ctx, user, meta)
		}
	}

	// Paso 4: éxito. El contador de fallos se limpia y se emiten tokens.
	if err := s.deps.Lockout.Reset(ctx, in.Email); err != nil {
		// No bloquea el login; el próximo fallo repone el registro.
		log.Warn("lockout reset failed", logger.Err(err))
	}

	resp, err := s.mint.issue(ctx, user, meta, true)
	if err != nil {
		log.Error("token issue failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	log.Info("login succeeded")

	s.deps.Audit.Record(ctx, audit.Entry{
		Action:     "auth.login",
		ActorID:    user.ID,
		Resource:   "user",
		ResourceID: user.ID,
		IPAddress:  meta.IP,
		After:      map[string]any{"method": "password", "role": string(user.Role)},
	})
	return resp, nil
}

// failLogin registra el fallo contra el lockout y como security event, y
// retorna ErrInvalidCredentials (o el lockout recién activado).
func (s *loginService) failLogin(ctx context.Context, email string, meta RequestMeta, reason string) error {
	metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()

	rec, err := s.deps.Lockout.RecordFailure(ctx, email)
	if err != nil {
		// El contador no avanzó; el intento igual se rechaza.
		logger.From(ctx).Error("lockout record failed",
			logger.Component("auth.login"),
			logger.Err(err),
		)
		return ErrInvalidCredentials
	}

	s.deps.Recorder.Record(ctx, securitysvc.EventInput{
		Type:      types.EventLoginFailure,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Details: map[string]any{
			"identity": email,
			"reason":   reason,
			"failures": rec.Failures,
		},
	})

	if rec.LockedUntil != nil {
		if remaining := time.Until(*rec.LockedUntil); remaining > 0 {
			s.deps.Recorder.Record(ctx, securitysvc.EventInput{
				Type:      types.EventAccountLockout,
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
				Details: map[string]any{
					"identity":    email,
					"failures":    rec.Failures,
					"retry_after": remaining.Seconds(),
				},
			})
			return &lockout.LockedError{Identity: email, RetryAfter: remaining}
		}
	}
	return ErrInvalidCredentials
}

// failMFA registra el intento MFA fallido para forense y como evento.
func (s *loginService) failMFA(ctx context.Context, user *repository.User, meta RequestMeta) error {
	metrics.LoginAttempts.WithLabelValues("mfa_failed").Inc()

	if err := s.deps.Store.MFAFailures().Append(ctx, repository.MFAFailure{
		UserID:    user.ID,
		IPAddress: meta.IP,
		Reason:    "totp_mismatch",
	}); err != nil {
		logger.From(ctx).Warn("mfa failure log write failed",
			logger.Component("auth.login"),
			logger.Err(err),
		)
	}

	s.deps.Recorder.Record(ctx, securitysvc.EventInput{
		Type:      types.EventMFAFailure,
		UserID:    user.ID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Details:   map[string]any{"reason": "totp_mismatch"},
	})
	return ErrMFAInvalid
}
