package security

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	dto "github.com/crewgate/crewgate/internal/http/dto/security"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	"github.com/crewgate/crewgate/internal/http/middlewares"
	svc "github.com/crewgate/crewgate/internal/http/services/security"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// IncidentController maneja la escalación y la máquina de estados de
// incidentes.
type IncidentController struct {
	escalator *svc.EscalatorService
}

// NewIncidentController crea un nuevo controller de incidentes.
func NewIncidentController(escalator *svc.EscalatorService) *IncidentController {
	return &IncidentController{escalator: escalator}
}

// Escalate maneja POST /api/security/events/{id}/escalate (manager+)
func (c *IncidentController) Escalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxSecurityBodySize)
	defer r.Body.Close()

	var req dto.EscalateRequest
	// Body opcional: sin body es una escalación sin force.
	_ = json.NewDecoder(r.Body).Decode(&req)

	// Variante sin {id} en la ruta: el evento viene en el body.
	eventID := chi.URLParam(r, "id")
	if eventID == "" {
		eventID = req.EventID
	}
	if eventID == "" {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("event_id is required"))
		return
	}
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("IncidentController.Escalate"),
		logger.EventID(eventID),
	)

	incident, err := c.escalator.Escalate(ctx, svc.EscalateInput{
		EventID: eventID,
		Actor:   middlewares.GetUserID(ctx),
		IP:      middlewares.ClientIP(r),
		Force:   req.Force,
	})
	if err != nil {
		log.Debug("escalation rejected", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrEventNotFound):
			httperrors.WriteError(w, httperrors.ErrNotFound)
		case errors.Is(err, svc.ErrDuplicateEscalation):
			httperrors.WriteError(w, httperrors.ErrDuplicateEscalation)
		default:
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(incidentResponse(incident))
}

// Transition maneja POST /api/security/incidents/{id}/transition (manager+)
func (c *IncidentController) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	incidentID := chi.URLParam(r, "id")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("IncidentController.Transition"),
		logger.IncidentID(incidentID),
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxSecurityBodySize)
	defer r.Body.Close()

	var req dto.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	state := types.IncidentState(req.State)
	if !state.Valid() {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("unknown incident state"))
		return
	}

	incident, err := c.escalator.Transition(ctx, svc.TransitionInput{
		IncidentID: incidentID,
		State:      state,
		Notes:      req.Notes,
		Actor:      middlewares.GetUserID(ctx),
		IP:         middlewares.ClientIP(r),
	})
	if err != nil {
		log.Debug("transition rejected", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrIncidentNotFound):
			httperrors.WriteError(w, httperrors.ErrNotFound)
		case errors.Is(err, svc.ErrInvalidTransition):
			httperrors.WriteError(w, httperrors.ErrInvalidTransition)
		case errors.Is(err, svc.ErrNotesRequired):
			httperrors.WriteError(w, httperrors.ErrNotesRequired)
		default:
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(incidentResponse(incident))
}

// Get maneja GET /api/security/incidents/{id} (manager+)
func (c *IncidentController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	incident, err := c.escalator.Get(ctx, id)
	if err != nil {
		if errors.Is(err, svc.ErrIncidentNotFound) {
			httperrors.WriteError(w, httperrors.ErrNotFound)
			return
		}
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(incidentResponse(incident))
}

// List maneja GET /api/security/incidents (manager+)
func (c *IncidentController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("limit must be a positive integer"))
			return
		}
		limit = n
	}

	incidents, err := c.escalator.List(ctx, limit)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	out := make([]dto.IncidentResponse, 0, len(incidents))
	for i := range incidents {
		out = append(out, incidentResponse(&incidents[i]))
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"incidents": out})
}

// ─── Helpers ───

func incidentResponse(in *repository.Incident) dto.IncidentResponse {
	return dto.IncidentResponse{
		ID:             in.ID,
		EventID:        in.EventID,
		State:          string(in.State),
		ManualOverride: in.ManualOverride,
		AckNotes:       in.AckNotes,
		AckBy:          in.AckBy,
		AckAt:          in.AckAt,
		ResolutionText: in.ResolutionText,
		ResolvedBy:     in.ResolvedBy,
		ResolvedAt:     in.ResolvedAt,
		CreatedAt:      in.CreatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
}
