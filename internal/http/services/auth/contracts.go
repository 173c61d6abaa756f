// Package auth contiene los services de autenticación.
package auth

import (
	"context"

	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
)

// RequestMeta lleva los datos del request que los services registran en
// sesiones, eventos y auditoría.
type RequestMeta struct {
	IP                string
	UserAgent         string
	DeviceFingerprint string
}

// LoginService maneja el login con password (admin y manager).
type LoginService interface {
	LoginPassword(ctx context.Context, in dto.LoginRequest, meta RequestMeta) (*dto.LoginResponse, error)
}

// MagicLinkService maneja el flujo passwordless (crew).
type MagicLinkService interface {
	// Request genera y envía el link. No revela si el email existe.
	Request(ctx context.Context, email string, meta RequestMeta) error

	// Consume canjea el link y emite tokens. Un link solo se canjea una vez.
	Consume(ctx context.Context, token string, meta RequestMeta) (*dto.LoginResponse, error)
}

// RefreshService rota refresh tokens.
type RefreshService interface {
	Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*dto.LoginResponse, error)
}

// LogoutService revoca tokens y termina sesiones.
type LogoutService interface {
	// Logout revoca el access token presentado y, si viene, el refresh
	// token. Con everywhere revoca todo lo del usuario. Retorna el número
	// de refresh tokens revocados.
	Logout(ctx context.Context, in LogoutInput) (int, error)
}

// LogoutInput contiene los parámetros del logout.
type LogoutInput struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Everywhere   bool
	Meta         RequestMeta
}

// Services agrupa los services del dominio auth para el wiring.
type Services struct {
	Login     LoginService
	MagicLink MagicLinkService
	Refresh   RefreshService
	Logout    LogoutService
}
