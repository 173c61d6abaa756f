package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
)

func TestMagicLink_ConsumeOnce(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.MagicLinks().Create(ctx, repository.CreateMagicLinkInput{
		Email: "crew@example.com",
		Token: "tok-1",
		TTL:   15 * time.Minute,
	})
	require.NoError(t, err)

	link, err := st.MagicLinks().Consume(ctx, "tok-1", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, link.Used)
	require.NotNil(t, link.UsedAt)
	require.NotNil(t, link.UsedIP)
	require.Equal(t, "10.0.0.1", *link.UsedIP)

	// El segundo canje es un replay.
	_, err = st.MagicLinks().Consume(ctx, "tok-1", "10.0.0.2")
	require.ErrorIs(t, err, repository.ErrTokenUsed)
}

func TestMagicLink_ConcurrentConsume_ExactlyOneWins(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.MagicLinks().Create(ctx, repository.CreateMagicLinkInput{
		Email: "crew@example.com",
		Token: "tok-race",
		TTL:   15 * time.Minute,
	})
	require.NoError(t, err)

	const racers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, replays := 0, 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.MagicLinks().Consume(ctx, "tok-race", "10.0.0.1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrTokenUsed):
				replays++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, racers-1, replays)
}

func TestMagicLink_ExpiredAndMissing(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.MagicLinks().Create(ctx, repository.CreateMagicLinkInput{
		Email: "crew@example.com",
		Token: "tok-old",
		TTL:   -time.Minute,
	})
	require.NoError(t, err)

	_, err = st.MagicLinks().Consume(ctx, "tok-old", "10.0.0.1")
	require.ErrorIs(t, err, repository.ErrTokenExpired)

	_, err = st.MagicLinks().Consume(ctx, "no-such-token", "10.0.0.1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRefreshToken_RotateReplay(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		UserID:    "u-1",
		TokenHash: "hash-a",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	next := repository.CreateRefreshTokenInput{UserID: "u-1", TokenHash: "hash-b", TTL: time.Hour}
	rotated, err := st.RefreshTokens().Rotate(ctx, "hash-a", next)
	require.NoError(t, err)
	require.Equal(t, "hash-b", rotated.TokenHash)

	// Replay del hash viejo: ya está revocado.
	_, err = st.RefreshTokens().Rotate(ctx, "hash-a", repository.CreateRefreshTokenInput{
		UserID: "u-1", TokenHash: "hash-c", TTL: time.Hour,
	})
	require.ErrorIs(t, err, repository.ErrTokenRevoked)

	// El nuevo sigue vivo y rotable.
	_, err = st.RefreshTokens().Rotate(ctx, "hash-b", repository.CreateRefreshTokenInput{
		UserID: "u-1", TokenHash: "hash-d", TTL: time.Hour,
	})
	require.NoError(t, err)
}

func TestRefreshToken_ConcurrentRotate_OneWinner(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		UserID: "u-1", TokenHash: "hash-race", TTL: time.Hour,
	})
	require.NoError(t, err)

	const racers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := st.RefreshTokens().Rotate(ctx, "hash-race", repository.CreateRefreshTokenInput{
				UserID: "u-1", TokenHash: "next", TTL: time.Hour,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestRefreshToken_RevokeAllByUser(t *testing.T) {
	st := New()
	ctx := context.Background()

	for _, h := range []string{"h1", "h2", "h3"} {
		_, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
			UserID: "u-1", TokenHash: h, TTL: time.Hour,
		})
		require.NoError(t, err)
	}
	_, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		UserID: "u-2", TokenHash: "other", TTL: time.Hour,
	})
	require.NoError(t, err)

	n, err := st.RefreshTokens().RevokeAllByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Los tokens de u-1 quedan revocados, el de u-2 intacto.
	_, err = st.RefreshTokens().Rotate(ctx, "h1", repository.CreateRefreshTokenInput{
		UserID: "u-1", TokenHash: "hx", TTL: time.Hour,
	})
	require.ErrorIs(t, err, repository.ErrTokenRevoked)

	_, err = st.RefreshTokens().Rotate(ctx, "other", repository.CreateRefreshTokenInput{
		UserID: "u-2", TokenHash: "hy", TTL: time.Hour,
	})
	require.NoError(t, err)
}

func TestIncident_CreateForEvent_Idempotent(t *testing.T) {
	st := New()
	ctx := context.Background()

	first, err := st.Incidents().CreateForEvent(ctx, repository.Incident{
		ID: "inc-1", EventID: "evt-1", State: types.IncidentDetected,
	})
	require.NoError(t, err)

	// Segunda escalación del mismo evento: conflicto con el existente.
	dup, err := st.Incidents().CreateForEvent(ctx, repository.Incident{
		ID: "inc-2", EventID: "evt-1", State: types.IncidentDetected,
	})
	require.ErrorIs(t, err, repository.ErrConflict)
	require.Equal(t, first.ID, dup.ID)
}

func TestIncident_Transitions(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.Incidents().CreateForEvent(ctx, repository.Incident{
		ID: "inc-1", EventID: "evt-1", State: types.IncidentDetected,
	})
	require.NoError(t, err)

	notes := "revisando"
	inc, err := st.Incidents().Transition(ctx, "inc-1", repository.IncidentUpdate{
		State: types.IncidentAcknowledged, Notes: &notes, Actor: "op-1",
	})
	require.NoError(t, err)
	require.Equal(t, types.IncidentAcknowledged, inc.State)
	require.NotNil(t, inc.AckBy)
	require.Equal(t, "op-1", *inc.AckBy)

	// Misma transición de nuevo: no-op, no cambia ack.
	again, err := st.Incidents().Transition(ctx, "inc-1", repository.IncidentUpdate{
		State: types.IncidentAcknowledged, Actor: "op-2",
	})
	require.NoError(t, err)
	require.Equal(t, "op-1", *again.AckBy)

	// Saltar a resolved desde acknowledged no está permitido.
	_, err = st.Incidents().Transition(ctx, "inc-1", repository.IncidentUpdate{
		State: types.IncidentResolved, Actor: "op-1",
	})
	require.ErrorIs(t, err, repository.ErrInvalidTransition)

	// investigating → resolved sí.
	_, err = st.Incidents().Transition(ctx, "inc-1", repository.IncidentUpdate{
		State: types.IncidentInvestigating, Actor: "op-1",
	})
	require.NoError(t, err)
	res := "mitigado"
	inc, err = st.Incidents().Transition(ctx, "inc-1", repository.IncidentUpdate{
		State: types.IncidentResolved, Notes: &res, Actor: "op-1",
	})
	require.NoError(t, err)
	require.NotNil(t, inc.ResolvedAt)
	require.Equal(t, "mitigado", *inc.ResolutionText)

	// Un incidente terminal no vuelve atrás.
	_, err = st.Incidents().Transition(ctx, "inc-1", repository.IncidentUpdate{
		State: types.IncidentInvestigating, Actor: "op-1",
	})
	require.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestSession_TerminateInvariant(t *testing.T) {
	st := New()
	ctx := context.Background()

	sess, err := st.Sessions().Create(ctx, repository.CreateSessionInput{
		ID: "s-1", UserID: "u-1", ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, sess.Valid())
	require.True(t, sess.IsActive)

	require.NoError(t, st.Sessions().Terminate(ctx, "s-1", "logout"))
	got, err := st.Sessions().Get(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, got.Valid())
	require.False(t, got.IsActive)
	require.Equal(t, "logout", *got.TerminationReason)
	firstAt := *got.TerminatedAt

	// Terminar de nuevo es no-op: no pisa reason ni timestamp.
	require.NoError(t, st.Sessions().Terminate(ctx, "s-1", "other"))
	got, _ = st.Sessions().Get(ctx, "s-1")
	require.Equal(t, "logout", *got.TerminationReason)
	require.Equal(t, firstAt, *got.TerminatedAt)
}

func TestBlacklist_AddAndSweep(t *testing.T) {
	st := New()
	ctx := context.Background()

	err := st.Blacklist().Add(ctx, repository.BlacklistEntry{
		TokenHash: "h-1",
		Reason:    "logout",
		ExpiresAt: time.Now().Add(-time.Minute),
		RevokedAt: time.Now(),
	})
	require.NoError(t, err)

	revoked, err := st.Blacklist().IsRevoked(ctx, "h-1")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = st.Blacklist().IsRevoked(ctx, "h-unknown")
	require.NoError(t, err)
	require.False(t, revoked)

	n, err := st.Blacklist().DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	revoked, _ = st.Blacklist().IsRevoked(ctx, "h-1")
	require.False(t, revoked)
}
