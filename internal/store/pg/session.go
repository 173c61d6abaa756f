package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

type sessionRepo struct {
	pool *pgxpool.Pool
}

const sessionColumns = `id, user_id, ip_address, user_agent, device_fingerprint,
	created_at, last_activity, expires_at, is_active, terminated_at, termination_reason`

func (r *sessionRepo) Create(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_sessions
			(id, user_id, ip_address, user_agent, device_fingerprint,
			 created_at, last_activity, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, true)
		RETURNING `+sessionColumns,
		input.ID, input.UserID, input.IPAddress, input.UserAgent,
		input.DeviceFingerprint, now, input.ExpiresAt,
	)
	return scanSession(row)
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*repository.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM user_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *sessionRepo) Terminate(ctx context.Context, id, reason string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	// Los tres campos del invariante se setean en un solo UPDATE; el WHERE
	// is_active hace la terminación repetida un no-op.
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $2
		WHERE id = $1 AND is_active = true`,
		id, reason)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		// Ya terminada o inexistente: distinguimos para el caller.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM user_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return mapErr(err)
		}
		if !exists {
			return repository.ErrNotFound
		}
	}
	return nil
}

func (r *sessionRepo) TerminateAllByUser(ctx context.Context, userID, reason string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE user_sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $2
		WHERE user_id = $1 AND is_active = true`,
		userID, reason)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *sessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET last_activity = $2 WHERE id = $1 AND is_active = true`,
		id, at)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID string) ([]repository.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, mapErr(rows.Err())
}

func (r *sessionRepo) DeleteTerminatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE is_active = false AND terminated_at < $1`,
		cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row rowScanner) (*repository.Session, error) {
	var s repository.Session
	if err := row.Scan(
		&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.DeviceFingerprint,
		&s.CreatedAt, &s.LastActivity, &s.ExpiresAt,
		&s.IsActive, &s.TerminatedAt, &s.TerminationReason,
	); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}
