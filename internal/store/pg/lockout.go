package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

type lockoutRepo struct {
	pool *pgxpool.Pool
}

const lockoutColumns = `identity, failures, locked_until, updated_at`

func (r *lockoutRepo) Get(ctx context.Context, identity string) (*repository.LockoutRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+lockoutColumns+` FROM login_lockouts WHERE identity = $1`, identity)
	return scanLockout(row)
}

// IncrementFailures es un upsert atómico: el contador se incrementa en la
// base, nunca con read-modify-write en la aplicación, así dos fallos
// concurrentes cuentan ambos.
func (r *lockoutRepo) IncrementFailures(ctx context.Context, identity string) (*repository.LockoutRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO login_lockouts (identity, failures, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (identity) DO UPDATE
		SET failures = login_lockouts.failures + 1, updated_at = NOW()
		RETURNING `+lockoutColumns,
		identity,
	)
	return scanLockout(row)
}

func (r *lockoutRepo) SetLock(ctx context.Context, identity string, until time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE login_lockouts SET locked_until = $2, updated_at = NOW() WHERE identity = $1`,
		identity, until)
	return mapErr(err)
}

func (r *lockoutRepo) Reset(ctx context.Context, identity string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`DELETE FROM login_lockouts WHERE identity = $1`, identity)
	return mapErr(err)
}

func scanLockout(row rowScanner) (*repository.LockoutRecord, error) {
	var rec repository.LockoutRecord
	if err := row.Scan(&rec.Identity, &rec.Failures, &rec.LockedUntil, &rec.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

type mfaFailureRepo struct {
	pool *pgxpool.Pool
}

func (r *mfaFailureRepo) Append(ctx context.Context, f repository.MFAFailure) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mfa_failure_log (id, user_id, ip_address, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, f.UserID, f.IPAddress, f.Reason, createdAt,
	)
	return mapErr(err)
}
