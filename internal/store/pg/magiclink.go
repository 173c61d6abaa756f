package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

type magicLinkRepo struct {
	pool *pgxpool.Pool
}

const magicLinkColumns = `id, email, token, expires_at, created_at, used, used_at, used_ip`

func (r *magicLinkRepo) Create(ctx context.Context, input repository.CreateMagicLinkInput) (*repository.MagicLink, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO magic_links (id, email, token, expires_at, created_at, used)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING `+magicLinkColumns,
		uuid.NewString(), input.Email, input.Token, now.Add(input.TTL), now,
	)
	return scanMagicLink(row)
}

// Consume canjea el link en un único UPDATE condicional: el WHERE sobre
// used = false es el CAS que garantiza un solo ganador entre requests
// concurrentes. Solo cuando el UPDATE no afecta filas se lee el estado
// para clasificar el fallo.
func (r *magicLinkRepo) Consume(ctx context.Context, token, ip string) (*repository.MagicLink, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		UPDATE magic_links
		SET used = true, used_at = NOW(), used_ip = $2
		WHERE token = $1 AND used = false AND expires_at > NOW()
		RETURNING `+magicLinkColumns,
		token, ip,
	)
	link, err := scanMagicLink(row)
	if err == nil {
		return link, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}
	return nil, r.classifyMiss(ctx, token)
}

func (r *magicLinkRepo) classifyMiss(ctx context.Context, token string) error {
	var used bool
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT used, expires_at FROM magic_links WHERE token = $1`, token,
	).Scan(&used, &expiresAt)
	if err != nil {
		return mapErr(err)
	}
	if used {
		return repository.ErrTokenUsed
	}
	if time.Now().After(expiresAt) {
		return repository.ErrTokenExpired
	}
	// El link existe, no está usado ni vencido pero el UPDATE no lo tomó:
	// otro request lo consumió entre ambos statements.
	return repository.ErrTokenUsed
}

func (r *magicLinkRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM magic_links WHERE expires_at < $1 OR (used = true AND used_at < $1)`,
		cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanMagicLink(row rowScanner) (*repository.MagicLink, error) {
	var l repository.MagicLink
	if err := row.Scan(&l.ID, &l.Email, &l.Token, &l.ExpiresAt, &l.CreatedAt,
		&l.Used, &l.UsedAt, &l.UsedIP); err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}
