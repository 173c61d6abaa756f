package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	svc "github.com/crewgate/crewgate/internal/http/services/auth"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// RefreshController maneja la rotación de refresh tokens.
type RefreshController struct {
	service svc.RefreshService
}

// NewRefreshController crea un nuevo controller de refresh.
func NewRefreshController(service svc.RefreshService) *RefreshController {
	return &RefreshController{service: service}
}

// Refresh maneja POST /api/auth/refresh
func (c *RefreshController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RefreshController.Refresh"))

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	defer r.Body.Close()

	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.RefreshToken == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("refreshToken es obligatorio"))
		return
	}

	result, err := c.service.Refresh(ctx, req.RefreshToken, requestMeta(r))
	if err != nil {
		log.Debug("refresh failed", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrRefreshRevoked):
			httperrors.WriteError(w, httperrors.ErrTokenRevoked)
		case errors.Is(err, svc.ErrRefreshExpired):
			httperrors.WriteError(w, httperrors.ErrTokenExpired)
		case errors.Is(err, svc.ErrRefreshInvalid):
			httperrors.WriteError(w, httperrors.ErrTokenInvalid)
		case errors.Is(err, svc.ErrStoreUnavailable):
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}
