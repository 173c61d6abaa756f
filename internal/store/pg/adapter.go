// Package pg implementa el adapter PostgreSQL del store.
// Usa pgxpool directamente; cada repo mapea pgx.ErrNoRows a
// repository.ErrNotFound y unique violations a repository.ErrConflict.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/store"
)

// queryTimeout acota cada statement del camino de request. En un check que
// afecta autenticación, un timeout se traduce en fail closed aguas arriba.
const queryTimeout = 250 * time.Millisecond

// Store implementa store.Store sobre un pgxpool.
type Store struct {
	pool *pgxpool.Pool

	users       *userStore
	sessions    *sessionRepo
	tokens      *refreshTokenRepo
	blacklist   *blacklistRepo
	magicLinks  *magicLinkRepo
	events      *eventRepo
	incidents   *incidentRepo
	audit       *auditRepo
	lockouts    *lockoutRepo
	mfaFailures *mfaFailureRepo
}

// Open conecta al DSN y arma el agregado de repos.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}

	s := &Store{pool: pool}
	s.users = &userStore{pool: pool}
	s.sessions = &sessionRepo{pool: pool}
	s.tokens = &refreshTokenRepo{pool: pool}
	s.blacklist = &blacklistRepo{pool: pool}
	s.magicLinks = &magicLinkRepo{pool: pool}
	s.events = &eventRepo{pool: pool}
	s.incidents = &incidentRepo{pool: pool}
	s.audit = &auditRepo{pool: pool}
	s.lockouts = &lockoutRepo{pool: pool}
	s.mfaFailures = &mfaFailureRepo{pool: pool}
	return s, nil
}

func (s *Store) Users() repository.UserStore                   { return s.users }
func (s *Store) Sessions() repository.SessionRepository        { return s.sessions }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return s.tokens }
func (s *Store) Blacklist() repository.BlacklistRepository     { return s.blacklist }
func (s *Store) MagicLinks() repository.MagicLinkRepository    { return s.magicLinks }
func (s *Store) Events() repository.SecurityEventRepository    { return s.events }
func (s *Store) Incidents() repository.IncidentRepository      { return s.incidents }
func (s *Store) Audit() repository.AuditRepository             { return s.audit }
func (s *Store) Lockouts() repository.LockoutRepository        { return s.lockouts }
func (s *Store) MFAFailures() repository.MFAFailureRepository  { return s.mfaFailures }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Store) Close()                         { s.pool.Close() }

var _ store.Store = (*Store)(nil)

// withTimeout acota el contexto de un statement del request path.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// mapErr traduce errores pgx a los sentinels del dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return repository.ErrStoreUnavailable
	}
	return err
}

// nullIfEmpty retorna nil si el string está vacío, para columnas opcionales.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
