package pg

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

// userStore lee la tabla users del data plane externo. Solo lectura.
type userStore struct {
	pool *pgxpool.Pool
}

const userColumns = `id, email, role, first_name, last_name, password_hash, mfa_secret, is_active, created_at`

func (r *userStore) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1 AND is_active = true`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (r *userStore) FindByID(ctx context.Context, id string) (*repository.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*repository.User, error) {
	var u repository.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.Role, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.MFASecret, &u.IsActive, &u.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
