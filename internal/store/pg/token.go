package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

type refreshTokenRepo struct {
	pool *pgxpool.Pool
}

const refreshColumns = `id, user_id, token_hash, device_info, issued_at, expires_at, revoked_at`

func (r *refreshTokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_info, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, input.UserID, input.TokenHash, nullIfEmpty(input.DeviceInfo), now, now.Add(input.TTL),
	)
	if err != nil {
		return "", mapErr(err)
	}
	return id, nil
}

func (r *refreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return scanRefreshToken(row)
}

// Rotate revoca el hash viejo e inserta el nuevo dentro de una transacción.
// El UPDATE condicional sobre revoked_at IS NULL es el CAS: de dos rotaciones
// concurrentes del mismo token, solo una afecta la fila.
func (r *refreshTokenRepo) Rotate(ctx context.Context, oldHash string, next repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old repository.RefreshToken
	err = tx.QueryRow(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
		RETURNING `+refreshColumns,
		oldHash,
	).Scan(&old.ID, &old.UserID, &old.TokenHash, &old.DeviceInfo,
		&old.IssuedAt, &old.ExpiresAt, &old.RevokedAt)
	if err != nil {
		if mapErr(err) == repository.ErrNotFound {
			return nil, r.classifyMiss(ctx, oldHash)
		}
		return nil, mapErr(err)
	}

	if time.Now().After(old.ExpiresAt) {
		// El UPDATE ya marcó revoked; commiteamos igual, un token vencido
		// revocado no cambia nada, y reportamos expiración.
		_ = tx.Commit(ctx)
		return nil, repository.ErrTokenExpired
	}

	newID := uuid.NewString()
	now := time.Now().UTC()
	var created repository.RefreshToken
	err = tx.QueryRow(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_info, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+refreshColumns,
		newID, next.UserID, next.TokenHash, nullIfEmpty(next.DeviceInfo), now, now.Add(next.TTL),
	).Scan(&created.ID, &created.UserID, &created.TokenHash, &created.DeviceInfo,
		&created.IssuedAt, &created.ExpiresAt, &created.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err)
	}
	return &created, nil
}

// classifyMiss distingue por qué el CAS de rotación no encontró fila:
// token revocado (señal de replay) vs inexistente.
func (r *refreshTokenRepo) classifyMiss(ctx context.Context, hash string) error {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT revoked_at IS NOT NULL FROM refresh_tokens WHERE token_hash = $1`, hash,
	).Scan(&revoked)
	if err != nil {
		return mapErr(err)
	}
	if revoked {
		return repository.ErrTokenRevoked
	}
	return repository.ErrNotFound
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash)
	return mapErr(err)
}

func (r *refreshTokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked_at < $1`,
		cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRefreshToken(row rowScanner) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.DeviceInfo,
		&t.IssuedAt, &t.ExpiresAt, &t.RevokedAt); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}
