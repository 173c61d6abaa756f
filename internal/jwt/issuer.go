// Package jwt emite y valida los access tokens de la plataforma.
//
// Los tokens son JWT HS256 firmados con el secret del servidor (JWT_SECRET).
// El payload replica el contrato externo: {userId, email, role, firstName?,
// lastName?, iat, exp}. No hay estado persistido para access tokens más allá
// del blacklist, que chequea el TokenService por fuera de este paquete.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
)

// DefaultAccessTTL es la vida útil por defecto de un access token.
const DefaultAccessTTL = 7 * 24 * time.Hour

var (
	// ErrTokenExpired indica que el token venció.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indica firma inválida, claims malformadas o algoritmo
	// inesperado.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims son las claims verificadas de un access token.
type Claims struct {
	UserID    string
	Email     string
	Role      types.Role
	FirstName *string
	LastName  *string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer firma y verifica access tokens con un secret HMAC.
type Issuer struct {
	secret    []byte
	AccessTTL time.Duration
	now       func() time.Time
}

// NewIssuer crea un Issuer. Si accessTTL es 0 usa DefaultAccessTTL.
func NewIssuer(secret string, accessTTL time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt: secret must be at least 32 bytes")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &Issuer{secret: []byte(secret), AccessTTL: accessTTL, now: time.Now}, nil
}

// Sign emite un access token para el usuario.
func (i *Issuer) Sign(u *repository.User) (string, error) {
	now := i.now().UTC()
	claims := jwtv5.MapClaims{
		"userId": u.ID,
		"email":  u.Email,
		"role":   string(u.Role),
		"iat":    now.Unix(),
		"exp":    now.Add(i.AccessTTL).Unix(),
	}
	if u.FirstName != nil && *u.FirstName != "" {
		claims["firstName"] = *u.FirstName
	}
	if u.LastName != nil && *u.LastName != "" {
		claims["lastName"] = *u.LastName
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("jwt sign: %w", err)
	}
	return signed, nil
}

// Parse verifica firma y expiración y retorna las claims.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	tk, err := jwtv5.Parse(tokenStr,
		func(t *jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	mc, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok || !tk.Valid {
		return nil, ErrTokenInvalid
	}

	c := &Claims{}
	if c.UserID, _ = mc["userId"].(string); c.UserID == "" {
		return nil, ErrTokenInvalid
	}
	c.Email, _ = mc["email"].(string)
	if role, _ := mc["role"].(string); role != "" {
		c.Role = types.Role(role)
	}
	if !c.Role.Valid() {
		return nil, ErrTokenInvalid
	}
	if v, ok := mc["firstName"].(string); ok && v != "" {
		c.FirstName = &v
	}
	if v, ok := mc["lastName"].(string); ok && v != "" {
		c.LastName = &v
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
