package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

// flakyRepo es un AuditRepository cuyo backend se puede tumbar y levantar.
type flakyRepo struct {
	mu      sync.Mutex
	down    bool
	entries []repository.AuditEntry
}

func (r *flakyRepo) Append(_ context.Context, entry repository.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return errors.New("backend down")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *flakyRepo) setDown(down bool) {
	r.mu.Lock()
	r.down = down
	r.mu.Unlock()
}

func (r *flakyRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestRecord_WritesThrough(t *testing.T) {
	repo := &flakyRepo{}
	l := NewLogger(repo)
	defer l.Close()

	l.Record(context.Background(), Entry{
		Action:     "auth.login",
		ActorID:    "u-1",
		Resource:   "session",
		ResourceID: "sess-1",
		IPAddress:  "10.0.0.1",
	})

	require.Equal(t, 1, repo.count())
	repo.mu.Lock()
	got := repo.entries[0]
	repo.mu.Unlock()
	require.Equal(t, "auth.login", got.Action)
	require.NotNil(t, got.ActorID)
	require.Equal(t, "u-1", *got.ActorID)
	require.False(t, got.CreatedAt.IsZero())
}

func TestRecord_EmptyActorIsNil(t *testing.T) {
	repo := &flakyRepo{}
	l := NewLogger(repo)
	defer l.Close()

	l.Record(context.Background(), Entry{Action: "system.sweep", Resource: "cron"})

	require.Equal(t, 1, repo.count())
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Nil(t, repo.entries[0].ActorID)
}

func TestRecord_FailedWriteIsRetried(t *testing.T) {
	repo := &flakyRepo{down: true}
	l := NewLogger(repo)
	defer l.Close()

	// Con el backend caído, Record no retorna error ni pierde la entrada.
	l.Record(context.Background(), Entry{Action: "auth.logout", Resource: "session"})
	require.Equal(t, 0, repo.count())

	l.mu.Lock()
	pending := len(l.pending)
	l.mu.Unlock()
	require.Equal(t, 1, pending)

	// Cuando el backend vuelve, el loop drena la cola.
	repo.setDown(false)
	l.mu.Lock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	require.Eventually(t, func() bool {
		return repo.count() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRecord_IgnoresCanceledContext(t *testing.T) {
	repo := &flakyRepo{}
	l := NewLogger(repo)
	defer l.Close()

	// El cliente cortó la conexión; el registro se escribe igual.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Record(ctx, Entry{Action: "auth.login", Resource: "session"})

	require.Equal(t, 1, repo.count())
}

func TestClose_FlushesPending(t *testing.T) {
	repo := &flakyRepo{down: true}
	l := NewLogger(repo)

	l.Record(context.Background(), Entry{Action: "a", Resource: "r"})
	l.Record(context.Background(), Entry{Action: "b", Resource: "r"})

	repo.setDown(false)
	l.Close()

	require.Eventually(t, func() bool {
		return repo.count() == 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestClose_Idempotent(t *testing.T) {
	l := NewLogger(&flakyRepo{})
	l.Close()
	l.Close()
}
