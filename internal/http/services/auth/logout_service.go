package auth

import (
	"context"
	"time"

	"github.com/crewgate/crewgate/internal/audit"
	"github.com/crewgate/crewgate/internal/domain/repository"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/observability/logger"
	tokens "github.com/crewgate/crewgate/internal/security/token"
	"github.com/crewgate/crewgate/internal/store"
)

// LogoutDeps contiene las dependencias del logout service.
type LogoutDeps struct {
	Store  store.Store
	Issuer *jwtx.Issuer
	Audit  *audit.Logger
}

type logoutService struct {
	deps LogoutDeps
}

// NewLogoutService crea el servicio de logout.
func NewLogoutService(deps LogoutDeps) LogoutService {
	return &logoutService{deps: deps}
}

func (s *logoutService) Logout(ctx context.Context, in LogoutInput) (int, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.logout"),
		logger.Op("Logout"),
		logger.UserID(in.UserID),
	)

	// Paso 1: el access token presentado entra al denylist hasta su propia
	// expiración; después el sweep lo poda sin riesgo.
	expiresAt := time.Now().UTC().Add(s.deps.Issuer.AccessTTL)
	if claims, err := s.deps.Issuer.Parse(in.AccessToken); err == nil {
		expiresAt = claims.ExpiresAt
	}
	if err := s.deps.Store.Blacklist().Add(ctx, repository.BlacklistEntry{
		TokenHash: tokens.SHA256Hex(in.AccessToken),
		Reason:    "logout",
		ExpiresAt: expiresAt,
		RevokedAt: time.Now().UTC(),
	}); err != nil {
		log.Error("blacklist add failed", logger.Err(err))
		return 0, ErrStoreUnavailable
	}

	// Paso 2: refresh tokens y sesiones.
	revoked := 0
	if in.Everywhere {
		n, err := s.deps.Store.RefreshTokens().RevokeAllByUser(ctx, in.UserID)
		if err != nil {
			log.Error("revoke all refresh tokens failed", logger.Err(err))
			return 0, ErrStoreUnavailable
		}
		revoked = n
		if _, err := s.deps.Store.Sessions().TerminateAllByUser(ctx, in.UserID, "logout_everywhere"); err != nil {
			log.Warn("terminate sessions failed", logger.Err(err))
		}
	} else if in.RefreshToken != "" {
		if err := s.deps.Store.RefreshTokens().Revoke(ctx, tokens.SHA256Hex(in.RefreshToken)); err != nil {
			log.Warn("refresh token revoke failed", logger.Err(err))
		} else {
			revoked = 1
		}
	}

	log.Info("logout completed", logger.Count(revoked))
	s.deps.Audit.Record(ctx, audit.Entry{
		Action:     "auth.logout",
		ActorID:    in.UserID,
		Resource:   "user",
		ResourceID: in.UserID,
		IPAddress:  in.Meta.IP,
		After:      map[string]any{"everywhere": in.Everywhere, "revoked": revoked},
	})
	return revoked, nil
}
