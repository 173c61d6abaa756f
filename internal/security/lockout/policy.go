// Package lockout implementa el bloqueo progresivo de cuentas por fallos
// consecutivos de autenticación.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// ErrAccountLocked indica que la identidad está bloqueada. RetryAfter viene
// adjunto vía LockedError.
var ErrAccountLocked = errors.New("account locked")

// LockedError envuelve ErrAccountLocked con el tiempo restante de bloqueo.
type LockedError struct {
	Identity   string
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked: retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// delayFor retorna el delay de bloqueo según el número de fallos consecutivos.
//
//	1–3  → sin delay
//	4    → 60s
//	5    → 300s
//	≥6   → 3600s
func delayFor(failures int) time.Duration {
	switch {
	case failures <= 3:
		return 0
	case failures == 4:
		return 60 * time.Second
	case failures == 5:
		return 300 * time.Second
	default:
		return 3600 * time.Second
	}
}

// Policy aplica la tabla de delays progresivos sobre un LockoutRepository.
type Policy struct {
	repo repository.LockoutRepository
	now  func() time.Time
}

// New crea una Policy.
func New(repo repository.LockoutRepository) *Policy {
	return &Policy{repo: repo, now: time.Now}
}

// Check falla con *LockedError mientras locked_until esté en el futuro.
// Una identidad sin registro de fallos siempre pasa.
func (p *Policy) Check(ctx context.Context, identity string) error {
	rec, err := p.repo.Get(ctx, identity)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		// Fallo del store en un check de autenticación: fail closed.
		return fmt.Errorf("lockout check: %w", err)
	}
	if rec.LockedUntil == nil {
		return nil
	}
	if remaining := rec.LockedUntil.Sub(p.now()); remaining > 0 {
		return &LockedError{Identity: identity, RetryAfter: remaining}
	}
	return nil
}

// RecordFailure incrementa el contador de fallos y, si el nuevo total cruza
// un umbral de la tabla, fija locked_until. Retorna el registro resultante.
func (p *Policy) RecordFailure(ctx context.Context, identity string) (*repository.LockoutRecord, error) {
	rec, err := p.repo.IncrementFailures(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("lockout increment: %w", err)
	}
	if delay := delayFor(rec.Failures); delay > 0 {
		until := p.now().Add(delay)
		if err := p.repo.SetLock(ctx, identity, until); err != nil {
			return nil, fmt.Errorf("lockout set lock: %w", err)
		}
		rec.LockedUntil = &until
		logger.From(ctx).Warn("account locked",
			logger.Component("lockout"),
			logger.Identity(identity),
			logger.Count(rec.Failures),
			logger.Duration(delay),
		)
	}
	return rec, nil
}

// Reset limpia el contador tras una autenticación exitosa.
func (p *Policy) Reset(ctx context.Context, identity string) error {
	return p.repo.Reset(ctx, identity)
}
