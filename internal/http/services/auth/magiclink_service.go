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
	tokens "github.com/crewgate/crewgate/internal/security/token"
	"github.com/crewgate/crewgate/internal/store"
)

// Errores de magic link
var (
	// ErrMagicLinkNotAllowed: el flujo passwordless es exclusivo de crew.
	ErrMagicLinkNotAllowed = fmt.Errorf("magic link not allowed for role")
	ErrLinkInvalid         = fmt.Errorf("magic link invalid")
	ErrLinkExpired         = fmt.Errorf("magic link expired")
	ErrLinkUsed            = fmt.Errorf("magic link already used")
)

// Mailer envía el correo del magic link.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, token string, ttl time.Duration) error
}

// MagicLinkDeps contiene las dependencias del servicio de magic links.
type MagicLinkDeps struct {
	Store      store.Store
	Issuer     *jwtx.Issuer
	Lockout    *lockout.Policy
	Recorder   *securitysvc.RecorderService
	Audit      *audit.Logger
	Mailer     Mailer
	LinkTTL    time.Duration
	RefreshTTL time.Duration
}

type magicLinkService struct {
	deps MagicLinkDeps
	mint tokenMint
}

// NewMagicLinkService crea el servicio de magic links.
func NewMagicLinkService(deps MagicLinkDeps) MagicLinkService {
	return &magicLinkService{
		deps: deps,
		mint: tokenMint{store: deps.Store, issuer: deps.Issuer, refreshTTL: deps.RefreshTTL},
	}
}

func (s *magicLinkService) Request(ctx context.Context, email string, meta RequestMeta) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.magiclink"),
		logger.Op("Request"),
	)

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrMissingFields
	}

	user, err := s.deps.Store.Users().FindByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			// Respuesta idéntica exista o no el email: no confirmamos
			// cuentas a quien pregunta.
			log.Debug("magic link requested for unknown email")
			return nil
		}
		log.Error("user lookup failed", logger.Err(err))
		return ErrStoreUnavailable
	}

	// Solo crew entra por link; admin y manager autentican con password
	// y MFA, un link en una casilla comprometida saltearía ambos.
	if user.Role != types.RoleCrew {
		log.Warn("magic link rejected for role",
			logger.UserID(user.ID),
			logger.String("role", string(user.Role)),
		)
		s.deps.Recorder.Record(ctx, securitysvc.EventInput{
			Type:      types.EventAuthorizationFail,
			UserID:    user.ID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Details:   map[string]any{"reason": "magic_link_role", "role": string(user.Role)},
		})
		return ErrMagicLinkNotAllowed
	}

	raw, err := tokens.GenerateOpaqueToken(tokens.MagicLinkBytes)
	if err != nil {
		return fmt.Errorf("generate magic link token: %w", err)
	}
	if _, err := s.deps.Store.MagicLinks().Create(ctx, repository.CreateMagicLinkInput{
		Email: email,
		Token: raw,
		TTL:   s.deps.LinkTTL,
	}); err != nil {
		log.Error("magic link create failed", logger.Err(err))
		return ErrStoreUnavailable
	}

	if err := s.deps.Mailer.SendMagicLink(ctx, email, raw, s.deps.LinkTTL); err != nil {
		log.Error("magic link send failed", logger.Err(err))
		return fmt.Errorf("send magic link: %w", err)
	}

	log.Info("magic link sent", logger.UserID(user.ID))
	s.deps.Audit.Record(ctx, audit.Entry{
		Action:     "auth.magic_link.request",
		ActorID:    user.ID,
		Resource:   "user",
		ResourceID: user.ID,
		IPAddress:  meta.IP,
	})
	return nil
}

func (s *magicLinkService) Consume(ctx context.Context, token string, meta RequestMeta) (*dto.LoginResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.magiclink"),
		logger.Op("Consume"),
	)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrLinkInvalid
	}

	// El canje es check-and-set en el store: de dos requests con el mismo
	// token, exactamente uno recibe el link y el otro cae acá abajo.
	link, err := s.deps.Store.MagicLinks().Consume(ctx, token, meta.IP)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenUsed):
			// Reuso de un link ya canjeado es señal de robo del enlace.
			log.Warn("magic link replay detected", logger.ClientIP(meta.IP))
			s.deps.Recorder.Record(ctx, securitysvc.EventInput{
				Type:      types.EventTokenReplay,
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
				Details:   map[string]any{"credential": "magic_link"},
			})
			return nil, ErrLinkUsed
		case errors.Is(err, repository.ErrTokenExpired):
			return nil, ErrLinkExpired
		case repository.IsNotFound(err):
			return nil, ErrLinkInvalid
		default:
			log.Error("magic link consume failed", logger.Err(err))
			return nil, ErrStoreUnavailable
		}
	}

	user, err := s.deps.Store.Users().FindByEmail(ctx, link.Email)
	if err != nil {
		log.Error("user lookup failed after consume", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	if err := s.deps.Lockout.Reset(ctx, link.Email); err != nil {
		log.Warn("lockout reset failed", logger.Err(err))
	}

	resp, err := s.mint.issue(ctx, user, meta, true)
	if err != nil {
		log.Error("token issue failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	log.Info("magic login succeeded", logger.UserID(user.ID))

	s.deps.Audit.Record(ctx, audit.Entry{
		Action:     "auth.login",
		ActorID:    user.ID,
		Resource:   "user",
		ResourceID: user.ID,
		IPAddress:  meta.IP,
		After:      map[string]any{"method": "magic_link", "role": string(user.Role)},
	})
	return resp, nil
}
