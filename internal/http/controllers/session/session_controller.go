// Package session contiene los controllers de gestión de sesiones.
package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	dto "github.com/crewgate/crewgate/internal/http/dto/session"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	"github.com/crewgate/crewgate/internal/http/middlewares"
	svc "github.com/crewgate/crewgate/internal/http/services/session"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

const (
	maxSessionBodySize = 16 * 1024 // 16KB
	contentTypeJSON    = "application/json; charset=utf-8"
)

// Controller maneja los endpoints de sesiones.
type Controller struct {
	manager *svc.Manager
}

// NewController crea un nuevo controller de sesiones.
func NewController(manager *svc.Manager) *Controller {
	return &Controller{manager: manager}
}

// List maneja GET /api/sessions (requiere auth)
//
// Lista las sesiones del usuario autenticado. Un admin puede listar las de
// otro usuario con ?userId=.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	userID := actor.UserID
	if v := r.URL.Query().Get("userId"); v != "" && v != actor.UserID {
		if !actor.Admin {
			httperrors.WriteError(w, httperrors.ErrForbidden)
			return
		}
		userID = v
	}

	sessions, err := c.manager.ListByUser(ctx, userID)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessionResponse(&sessions[i]))
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"sessions": out})
}

// Get maneja GET /api/sessions/{id} (requiere auth)
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	sess, err := c.manager.Get(ctx, actorFrom(r), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(sessionResponse(sess))
}

// Terminate maneja DELETE /api/sessions/{id} (requiere auth)
func (c *Controller) Terminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("SessionController.Terminate"),
		logger.SessionID(id),
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxSessionBodySize)
	defer r.Body.Close()

	var req dto.TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	if err := c.manager.Terminate(ctx, actorFrom(r), id, req.Reason); err != nil {
		log.Debug("terminate failed", logger.Err(err))
		writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.TerminateResponse{Terminated: 1})
}

// ─── Helpers ───

func actorFrom(r *http.Request) svc.Actor {
	claims := middlewares.GetClaims(r.Context())
	actor := svc.Actor{IP: middlewares.ClientIP(r)}
	if claims != nil {
		actor.UserID = claims.UserID
		actor.Admin = claims.Role.AtLeast(types.RoleAdmin)
	}
	return actor
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrSessionNotFound), errors.Is(err, repository.ErrNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case errors.Is(err, svc.ErrStoreUnavailable):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

func sessionResponse(s *repository.Session) dto.SessionResponse {
	return dto.SessionResponse{
		ID:                s.ID,
		IPAddress:         s.IPAddress,
		UserAgent:         s.UserAgent,
		DeviceFingerprint: s.DeviceFingerprint,
		CreatedAt:         s.CreatedAt,
		LastActivity:      s.LastActivity,
		ExpiresAt:         s.ExpiresAt,
		IsActive:          s.IsActive,
		TerminatedAt:      s.TerminatedAt,
		TerminationReason: s.TerminationReason,
	}
}
