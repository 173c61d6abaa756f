// Package auth contiene los DTOs de los endpoints de autenticación.
package auth

// LoginRequest es el body de POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// MFACode es el TOTP de 6 dígitos, requerido si el usuario tiene MFA.
	MFACode string `json:"mfaCode,omitempty"`
	// MFAToken es el nombre que usa el frontend legado para el mismo campo.
	MFAToken string `json:"mfaToken,omitempty"`
}

// UserInfo es la proyección pública del usuario autenticado.
type UserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// LoginResponse es la respuesta de login, magic-login y refresh.
type LoginResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"` // segundos
	User         UserInfo `json:"user"`
}

// MagicLinkRequest es el body de POST /api/auth/request-magic-link.
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// MagicLinkResponse confirma el pedido sin revelar si el email existe.
type MagicLinkResponse struct {
	Message string `json:"message"`
}

// MagicLoginRequest es el body de POST /api/auth/magic-login.
type MagicLoginRequest struct {
	Token string `json:"token"`
}

// RefreshRequest es el body de POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest es el body de POST /api/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	// Everywhere revoca todos los tokens y sesiones del usuario.
	Everywhere bool `json:"everywhere,omitempty"`
}

// LogoutResponse confirma el logout.
type LogoutResponse struct {
	Revoked int `json:"revoked"`
}

// MeResponse es la respuesta de GET /api/auth/me.
type MeResponse struct {
	User      UserInfo `json:"user"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
}
