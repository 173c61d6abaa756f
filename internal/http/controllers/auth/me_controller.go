package auth

import (
	"encoding/json"
	"net/http"

	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	"github.com/crewgate/crewgate/internal/http/middlewares"
)

// MeController expone la identidad del token presentado.
type MeController struct{}

// NewMeController crea un nuevo controller de /me.
func NewMeController() *MeController {
	return &MeController{}
}

// Me maneja GET /api/auth/me (requiere auth)
func (c *MeController) Me(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.GetClaims(r.Context())
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	info := dto.UserInfo{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  string(claims.Role),
	}
	if claims.FirstName != nil {
		info.FirstName = *claims.FirstName
	}
	if claims.LastName != nil {
		info.LastName = *claims.LastName
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.MeResponse{
		User:      info,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
}
