package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewgate/crewgate/internal/domain/repository"
	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	tokens "github.com/crewgate/crewgate/internal/security/token"
	"github.com/crewgate/crewgate/internal/store"
)

// tokenMint emite el par access/refresh y abre la sesión de dispositivo.
// Lo comparten login, magic login y refresh.
type tokenMint struct {
	store      store.Store
	issuer     *jwtx.Issuer
	refreshTTL time.Duration
}

// issue firma el JWT, persiste el hash del refresh token y, si withSession,
// crea la sesión. El refresh token crudo solo existe en la respuesta.
func (m *tokenMint) issue(ctx context.Context, user *repository.User, meta RequestMeta, withSession bool) (*dto.LoginResponse, error) {
	access, err := m.issuer.Sign(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	rawRefresh, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	_, err = m.store.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		UserID:     user.ID,
		TokenHash:  tokens.SHA256Hex(rawRefresh),
		DeviceInfo: meta.UserAgent,
		TTL:        m.refreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	if withSession {
		_, err = m.store.Sessions().Create(ctx, repository.CreateSessionInput{
			ID:                uuid.NewString(),
			UserID:            user.ID,
			IPAddress:         meta.IP,
			UserAgent:         meta.UserAgent,
			DeviceFingerprint: meta.DeviceFingerprint,
			ExpiresAt:         time.Now().UTC().Add(m.refreshTTL),
		})
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	return &dto.LoginResponse{
		Token:        access,
		RefreshToken: rawRefresh,
		ExpiresIn:    int64(m.issuer.AccessTTL.Seconds()),
		User:         userInfo(user),
	}, nil
}

func userInfo(u *repository.User) dto.UserInfo {
	info := dto.UserInfo{
		ID:    u.ID,
		Email: u.Email,
		Role:  string(u.Role),
	}
	if u.FirstName != nil {
		info.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		info.LastName = *u.LastName
	}
	return info
}
