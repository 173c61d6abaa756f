package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

type blacklistRepo struct {
	pool *pgxpool.Pool
}

func (r *blacklistRepo) Add(ctx context.Context, entry repository.BlacklistEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO token_blacklist (token_hash, reason, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING`,
		entry.TokenHash, entry.Reason, entry.ExpiresAt, entry.RevokedAt,
	)
	return mapErr(err)
}

func (r *blacklistRepo) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token_hash = $1)`,
		tokenHash).Scan(&revoked)
	if err != nil {
		return false, mapErr(err)
	}
	return revoked, nil
}

func (r *blacklistRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM token_blacklist WHERE expires_at < $1`, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}
