package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Tamaños estándar de tokens opacos, en bytes de entropía.
const (
	// RefreshTokenBytes es la entropía de un refresh token (256 bits).
	RefreshTokenBytes = 32
	// MagicLinkBytes es la entropía de un magic link (256 bits mínimo).
	MagicLinkBytes = 32
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Hex devuelve sha256(input) en hexadecimal. Es el formato canónico
// para hashes persistidos (refresh_tokens.token_hash, token_blacklist).
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
