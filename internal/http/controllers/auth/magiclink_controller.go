package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	svc "github.com/crewgate/crewgate/internal/http/services/auth"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// MagicLinkController maneja el flujo de login passwordless.
type MagicLinkController struct {
	service svc.MagicLinkService
}

// NewMagicLinkController crea un nuevo controller de magic links.
func NewMagicLinkController(service svc.MagicLinkService) *MagicLinkController {
	return &MagicLinkController{service: service}
}

// Request maneja POST /api/auth/request-magic-link
func (c *MagicLinkController) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MagicLinkController.Request"))

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	defer r.Body.Close()

	var req dto.MagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("email es obligatorio"))
		return
	}

	if err := c.service.Request(ctx, req.Email, requestMeta(r)); err != nil {
		log.Debug("magic link request failed", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrMagicLinkNotAllowed):
			httperrors.WriteError(w, httperrors.ErrRoleNotAllowed)
		case errors.Is(err, svc.ErrStoreUnavailable):
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	// La respuesta es la misma exista o no el email.
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.MagicLinkResponse{
		Message: "Si el email está registrado, vas a recibir un link de acceso.",
	})
}

// Consume maneja POST /api/auth/magic-login
func (c *MagicLinkController) Consume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MagicLinkController.Consume"))

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	defer r.Body.Close()

	var req dto.MagicLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.Token == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("token es obligatorio"))
		return
	}

	result, err := c.service.Consume(ctx, req.Token, requestMeta(r))
	if err != nil {
		log.Debug("magic login failed", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrLinkUsed):
			httperrors.WriteError(w, httperrors.ErrLinkAlreadyUsed)
		case errors.Is(err, svc.ErrLinkExpired):
			httperrors.WriteError(w, httperrors.ErrLinkExpired)
		case errors.Is(err, svc.ErrLinkInvalid):
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
