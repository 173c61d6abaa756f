package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewgate/crewgate/internal/store/memory"
)

func TestDelayFor_Table(t *testing.T) {
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 0},
		{2, 0},
		{3, 0},
		{4, 60 * time.Second},
		{5, 300 * time.Second},
		{6, 3600 * time.Second},
		{7, 3600 * time.Second},
		{100, 3600 * time.Second},
	}
	for _, c := range cases {
		require.Equal(t, c.want, delayFor(c.failures), "failures=%d", c.failures)
	}
}

func TestPolicy_ProgressiveLock(t *testing.T) {
	st := memory.New()
	p := New(st.Lockouts())
	ctx := context.Background()

	// Los primeros tres fallos no bloquean.
	for i := 0; i < 3; i++ {
		rec, err := p.RecordFailure(ctx, "user@example.com")
		require.NoError(t, err)
		require.Nil(t, rec.LockedUntil)
		require.NoError(t, p.Check(ctx, "user@example.com"))
	}

	// El cuarto fija 60s de lock.
	rec, err := p.RecordFailure(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec.LockedUntil)

	err = p.Check(ctx, "user@example.com")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	require.True(t, errors.Is(err, ErrAccountLocked))
	require.Greater(t, locked.RetryAfter, 50*time.Second)
	require.LessOrEqual(t, locked.RetryAfter, 60*time.Second)
}

func TestPolicy_CheckAfterExpiry(t *testing.T) {
	st := memory.New()
	p := New(st.Lockouts())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := p.RecordFailure(ctx, "late@example.com")
		require.NoError(t, err)
	}
	require.Error(t, p.Check(ctx, "late@example.com"))

	// Movemos el reloj de la policy más allá del lock.
	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.NoError(t, p.Check(ctx, "late@example.com"))
}

func TestPolicy_ResetClearsCounter(t *testing.T) {
	st := memory.New()
	p := New(st.Lockouts())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.RecordFailure(ctx, "reset@example.com")
		require.NoError(t, err)
	}
	require.Error(t, p.Check(ctx, "reset@example.com"))

	require.NoError(t, p.Reset(ctx, "reset@example.com"))
	require.NoError(t, p.Check(ctx, "reset@example.com"))

	// Tras el reset el siguiente fallo vuelve a contar desde uno.
	rec, err := p.RecordFailure(ctx, "reset@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, rec.Failures)
	require.Nil(t, rec.LockedUntil)
}

func TestPolicy_UnknownIdentityPasses(t *testing.T) {
	st := memory.New()
	p := New(st.Lockouts())
	require.NoError(t, p.Check(context.Background(), "nobody@example.com"))
}
