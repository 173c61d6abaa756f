package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser() *repository.User {
	first := "Ana"
	last := "Ferreira"
	return &repository.User{
		ID:        "u-123",
		Email:     "ana@example.com",
		Role:      types.RoleManager,
		FirstName: &first,
		LastName:  &last,
	}
}

func TestIssuer_SignParse_RoundTrip(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	tok, err := iss.Sign(testUser())
	require.NoError(t, err)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "u-123", claims.UserID)
	require.Equal(t, "ana@example.com", claims.Email)
	require.Equal(t, types.RoleManager, claims.Role)
	require.NotNil(t, claims.FirstName)
	require.Equal(t, "Ana", *claims.FirstName)
	require.NotNil(t, claims.LastName)
	require.Equal(t, "Ferreira", *claims.LastName)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestIssuer_NamesOmittedWhenEmpty(t *testing.T) {
	iss, _ := NewIssuer(testSecret, time.Hour)

	u := testUser()
	u.FirstName = nil
	u.LastName = nil
	tok, err := iss.Sign(u)
	require.NoError(t, err)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	require.Nil(t, claims.FirstName)
	require.Nil(t, claims.LastName)
}

func TestIssuer_RejectsTamperedToken(t *testing.T) {
	iss, _ := NewIssuer(testSecret, time.Hour)
	tok, err := iss.Sign(testUser())
	require.NoError(t, err)

	// Corromper un byte del payload invalida la firma.
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	payload[0] ^= 0x01
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = iss.Parse(tampered)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssuer_RejectsWrongSecret(t *testing.T) {
	a, _ := NewIssuer(testSecret, time.Hour)
	b, _ := NewIssuer("ffffffffffffffffffffffffffffffff", time.Hour)

	tok, err := a.Sign(testUser())
	require.NoError(t, err)

	_, err = b.Parse(tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssuer_Expiry(t *testing.T) {
	iss, _ := NewIssuer(testSecret, time.Hour)

	base := time.Now()
	iss.now = func() time.Time { return base }
	tok, err := iss.Sign(testUser())
	require.NoError(t, err)

	// Dentro de la ventana valida.
	iss.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, err = iss.Parse(tok)
	require.NoError(t, err)

	// Pasada la expiración, ErrTokenExpired.
	iss.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, err = iss.Parse(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestIssuer_RejectsUnknownRole(t *testing.T) {
	iss, _ := NewIssuer(testSecret, time.Hour)
	u := testUser()
	u.Role = types.Role("superuser")
	tok, err := iss.Sign(u)
	require.NoError(t, err)

	_, err = iss.Parse(tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewIssuer_RejectsShortSecret(t *testing.T) {
	_, err := NewIssuer("short", time.Hour)
	require.Error(t, err)
}

func TestIssuer_GarbageToken(t *testing.T) {
	iss, _ := NewIssuer(testSecret, time.Hour)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := iss.Parse(tok)
		require.ErrorIs(t, err, ErrTokenInvalid, "token %q", tok)
	}
}
