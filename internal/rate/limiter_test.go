package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Boundary(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "auth:1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed, "hit %d dentro del límite", i)
		require.Equal(t, int64(3-i), res.Remaining)
	}

	// El cuarto hit excede.
	res, err := l.Allow(ctx, "auth:1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, int64(0), res.Remaining)
	require.Greater(t, res.RetryAfter, time.Duration(0))

	// Otra identidad no comparte el contador.
	res, err = l.Allow(ctx, "auth:5.6.7.8")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	res, _ := l.Allow(ctx, "k")
	require.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "k")
	require.False(t, res.Allowed)

	// Justo antes del borde la ventana sigue cerrada.
	now = now.Add(time.Minute - time.Second)
	res, _ = l.Allow(ctx, "k")
	require.False(t, res.Allowed)

	// Pasado el borde, el contador arranca de cero.
	now = now.Add(2 * time.Second)
	res, _ = l.Allow(ctx, "k")
	require.True(t, res.Allowed)
	require.Equal(t, int64(1), res.CurrentHits)
}

func TestMemoryLimiter_ConcurrentExactCount(t *testing.T) {
	const limit = 50
	const goroutines = 200

	l := NewMemoryLimiter(limit, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "shared")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// check-and-increment atómico: exactamente limit pasan, ni uno más.
	require.Equal(t, limit, allowed)
}

func TestNormalizeIP(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"192.168.1.10", "192.168.1.10"},
		{"::ffff:192.168.1.10", "192.168.1.10"},
		{" ::ffff:10.0.0.1 ", "10.0.0.1"},
		{"2001:db8::1", "2001:db8::1"},
		{"not-an-ip", "not-an-ip"},
		{"", ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, NormalizeIP(c.in), "input %q", c.in)
	}
}

func TestKey_UsesNormalizedIdentity(t *testing.T) {
	// Un cliente no duplica cuota alternando representaciones de su IP.
	require.Equal(t, Key(ClassAuth, "10.1.1.1"), Key(ClassAuth, "::ffff:10.1.1.1"))
	require.NotEqual(t, Key(ClassAuth, "10.1.1.1"), Key(ClassAPI, "10.1.1.1"))
}
