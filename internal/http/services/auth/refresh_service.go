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
	"github.com/crewgate/crewgate/internal/observability/logger"
	tokens "github.com/crewgate/crewgate/internal/security/token"
	"github.com/crewgate/crewgate/internal/store"
)

// Errores de refresh
var (
	ErrRefreshInvalid = fmt.Errorf("refresh token invalid")
	ErrRefreshExpired = fmt.Errorf("refresh token expired")
	ErrRefreshRevoked = fmt.Errorf("refresh token revoked")
)

// RefreshDeps contiene las dependencias del refresh service.
type RefreshDeps struct {
	Store      store.Store
	Issuer     *jwtx.Issuer
	Recorder   *securitysvc.RecorderService
	Audit      *audit.Logger
	RefreshTTL time.Duration
}

type refreshService struct {
	deps RefreshDeps
}

// NewRefreshService crea el servicio de rotación de refresh tokens.
func NewRefreshService(deps RefreshDeps) RefreshService {
	return &refreshService{deps: deps}
}

func (s *refreshService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*dto.LoginResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.refresh"),
		logger.Op("Refresh"),
	)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrRefreshInvalid
	}
	oldHash := tokens.SHA256Hex(refreshToken)

	// Necesitamos el user antes de rotar para poder firmar el access token.
	current, err := s.deps.Store.RefreshTokens().GetByHash(ctx, oldHash)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRefreshInvalid
		}
		log.Error("refresh lookup failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	user, err := s.deps.Store.Users().FindByID(ctx, current.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRefreshInvalid
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}
	log = log.With(logger.UserID(user.ID))

	newRaw, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	// La rotación es atómica en el store: revocar el viejo e insertar el
	// nuevo es una sola unidad. Dos requests con el mismo token: uno gana,
	// el otro ve el viejo ya revocado.
	rotated, err := s.deps.Store.RefreshTokens().Rotate(ctx, oldHash, repository.CreateRefreshTokenInput{
		UserID:     user.ID,
		TokenHash:  tokens.SHA256Hex(newRaw),
		DeviceInfo: meta.UserAgent,
		TTL:        s.deps.RefreshTTL,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenRevoked):
			// Presentar un token ya rotado es la firma clásica de un
			// refresh token robado. Se revoca toda la familia del usuario.
			log.Warn("refresh token replay, revoking all user tokens")
			s.deps.Recorder.Record(ctx, securitysvc.EventInput{
				Type:      types.EventTokenReplay,
				UserID:    user.ID,
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
				Details:   map[string]any{"credential": "refresh_token"},
			})
			if n, rerr := s.deps.Store.RefreshTokens().RevokeAllByUser(ctx, user.ID); rerr != nil {
				log.Error("revoke all failed", logger.Err(rerr))
			} else if n > 0 {
				log.Info("user token family revoked", logger.Count(n))
			}
			return nil, ErrRefreshRevoked
		case errors.Is(err, repository.ErrTokenExpired):
			return nil, ErrRefreshExpired
		case repository.IsNotFound(err):
			return nil, ErrRefreshInvalid
		default:
			log.Error("refresh rotation failed", logger.Err(err))
			return nil, ErrStoreUnavailable
		}
	}

	access, err := s.deps.Issuer.Sign(user)
	if err != nil {
		// El nuevo refresh ya existe; revocarlo evita dejar un token
		// huérfano utilizable.
		_ = s.deps.Store.RefreshTokens().Revoke(ctx, rotated.TokenHash)
		log.Error("access token sign failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	log.Info("refresh token rotated")
	s.deps.Audit.Record(ctx, audit.Entry{
		Action:     "auth.refresh",
		ActorID:    user.ID,
		Resource:   "user",
		ResourceID: user.ID,
		IPAddress:  meta.IP,
	})

	return &dto.LoginResponse{
		Token:        access,
		RefreshToken: newRaw,
		ExpiresIn:    int64(s.deps.Issuer.AccessTTL.Seconds()),
		User:         userInfo(user),
	}, nil
}
