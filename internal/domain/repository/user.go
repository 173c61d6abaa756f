package repository

import (
	"context"
	"time"

	"github.com/crewgate/crewgate/internal/domain/types"
)

// User representa un usuario de la plataforma. La tabla users pertenece al
// data plane externo; este core solo la lee para autenticar.
type User struct {
	ID        string
	Email     string
	Role      types.Role
	FirstName *string
	LastName  *string

	// PasswordHash es nil para crew (login solo por magic link).
	PasswordHash *string

	// MFASecret es el secreto TOTP en base32, nil si MFA no está enrolado.
	MFASecret *string

	IsActive  bool
	CreatedAt time.Time
}

// UserStore es la interfaz de solo lectura sobre el user store externo.
type UserStore interface {
	// FindByEmail busca un usuario activo por email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID busca un usuario por id.
	// Retorna ErrNotFound si no existe.
	FindByID(ctx context.Context, id string) (*User, error)
}
