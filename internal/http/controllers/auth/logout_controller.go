package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	"github.com/crewgate/crewgate/internal/http/middlewares"
	svc "github.com/crewgate/crewgate/internal/http/services/auth"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// LogoutController maneja la revocación de tokens.
type LogoutController struct {
	service svc.LogoutService
}

// NewLogoutController crea un nuevo controller de logout.
func NewLogoutController(service svc.LogoutService) *LogoutController {
	return &LogoutController{service: service}
}

// Logout maneja POST /api/auth/logout (requiere auth)
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LogoutController.Logout"))

	claims := middlewares.GetClaims(ctx)
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	defer r.Body.Close()

	// El body es opcional: un logout sin refresh token solo revoca el
	// access token presentado.
	var req dto.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	revoked, err := c.service.Logout(ctx, svc.LogoutInput{
		UserID:       claims.UserID,
		AccessToken:  strings.TrimSpace(raw),
		RefreshToken: req.RefreshToken,
		Everywhere:   req.Everywhere,
		Meta:         requestMeta(r),
	})
	if err != nil {
		log.Debug("logout failed", logger.Err(err))
		if errors.Is(err, svc.ErrStoreUnavailable) {
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
			return
		}
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.LogoutResponse{Revoked: revoked})
}
