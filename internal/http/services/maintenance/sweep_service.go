// Package maintenance implementa el retention sweep de datos expirados.
package maintenance

import (
	"context"
	"time"

	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/store"
)

// SweepDeps contiene las dependencias del sweep.
type SweepDeps struct {
	Store store.Store

	// SweepAfter es cuánto tiempo se retienen registros terminados o
	// expirados antes de podarlos.
	SweepAfter time.Duration
}

// Sweeper poda tokens, links y sesiones que ya salieron de retención.
type Sweeper struct {
	deps SweepDeps
}

// NewSweeper crea el sweeper.
func NewSweeper(deps SweepDeps) *Sweeper {
	return &Sweeper{deps: deps}
}

// Result cuenta lo podado por cada tabla.
type Result struct {
	RefreshTokens int `json:"refreshTokens"`
	Blacklist     int `json:"blacklist"`
	MagicLinks    int `json:"magicLinks"`
	Sessions      int `json:"sessions"`
}

// Run ejecuta un pase de sweep. Cada tabla se poda de forma independiente;
// un fallo parcial no aborta el resto, se loggea y se sigue.
func (s *Sweeper) Run(ctx context.Context) Result {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("maintenance.sweep"),
		logger.Op("Run"),
	)

	now := time.Now().UTC()
	cutoff := now.Add(-s.deps.SweepAfter)
	var res Result

	// Los tokens del blacklist se podan apenas expiran: después de exp el
	// JWT ya no valida por sí solo y la entrada no aporta nada.
	if n, err := s.deps.Store.Blacklist().DeleteExpired(ctx, now); err != nil {
		log.Error("blacklist sweep failed", logger.Err(err))
	} else {
		res.Blacklist = n
	}

	// El resto respeta la ventana de retención para auditoría forense.
	if n, err := s.deps.Store.RefreshTokens().DeleteExpired(ctx, cutoff); err != nil {
		log.Error("refresh token sweep failed", logger.Err(err))
	} else {
		res.RefreshTokens = n
	}
	if n, err := s.deps.Store.MagicLinks().DeleteExpired(ctx, cutoff); err != nil {
		log.Error("magic link sweep failed", logger.Err(err))
	} else {
		res.MagicLinks = n
	}
	if n, err := s.deps.Store.Sessions().DeleteTerminatedBefore(ctx, cutoff); err != nil {
		log.Error("session sweep failed", logger.Err(err))
	} else {
		res.Sessions = n
	}

	log.Info("sweep completed",
		logger.Int("refresh_tokens", res.RefreshTokens),
		logger.Int("blacklist", res.Blacklist),
		logger.Int("magic_links", res.MagicLinks),
		logger.Int("sessions", res.Sessions),
	)
	return res
}
