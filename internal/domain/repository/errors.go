package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenExpired indica que el token ya expiró.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked indica que el token fue revocado.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrTokenUsed indica que un magic link ya fue canjeado.
	ErrTokenUsed = errors.New("token already used")

	// ErrInvalidTransition indica una transición de estado no permitida.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStoreUnavailable indica un fallo transitorio del store subyacente.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
