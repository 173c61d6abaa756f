package security

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	dto "github.com/crewgate/crewgate/internal/http/dto/security"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	"github.com/crewgate/crewgate/internal/http/middlewares"
	svc "github.com/crewgate/crewgate/internal/http/services/security"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

const (
	maxSecurityBodySize = 64 * 1024 // 64KB
	contentTypeJSON     = "application/json; charset=utf-8"
)

// EventController maneja el registro y consulta de security events.
type EventController struct {
	recorder *svc.RecorderService
}

// NewEventController crea un nuevo controller de eventos.
func NewEventController(recorder *svc.RecorderService) *EventController {
	return &EventController{recorder: recorder}
}

// Report maneja POST /api/security/events (manager+)
//
// Permite reportar detecciones hechas fuera del pipeline HTTP (por ejemplo
// desde el frontend o un batch). Pasa por el mismo recorder que las
// detecciones propias, debounce incluido.
func (c *EventController) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("EventController.Report"))

	r.Body = http.MaxBytesReader(w, r.Body, maxSecurityBodySize)
	defer r.Body.Close()

	var req dto.ReportEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	evType := types.EventType(req.Type)
	if !evType.Valid() {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("unknown event type"))
		return
	}
	severity := types.Severity(req.Severity)
	if req.Severity != "" && !severity.Valid() {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("unknown severity"))
		return
	}

	ip := req.IPAddress
	if ip == "" {
		ip = middlewares.ClientIP(r)
	}
	eventID := c.recorder.Record(ctx, svc.EventInput{
		Type:      evType,
		Severity:  severity,
		UserID:    req.UserID,
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		Details:   req.Details,
		Tags:      req.Tags,
	})

	log.Info("event reported", logger.EventID(eventID))
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(dto.ReportEventResponse{
		EventID:   eventID,
		Debounced: eventID == "",
	})
}

// List maneja GET /api/security/events (manager+)
func (c *EventController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, appErr := parseEventFilter(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	events, err := c.recorder.List(ctx, filter)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	out := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		out = append(out, eventResponse(&events[i]))
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"events": out})
}

// Get maneja GET /api/security/events/{id} (manager+)
func (c *EventController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	ev, err := c.recorder.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrNotFound)
			return
		}
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(eventResponse(ev))
}

// ─── Helpers ───

func parseEventFilter(r *http.Request) (repository.SecurityEventFilter, *httperrors.AppError) {
	var filter repository.SecurityEventFilter
	q := r.URL.Query()

	if v := q.Get("type"); v != "" {
		t := types.EventType(v)
		if !t.Valid() {
			return filter, httperrors.ErrValidation.WithDetail("unknown event type")
		}
		filter.Type = &t
	}
	if v := q.Get("severity"); v != "" {
		s := types.Severity(v)
		if !s.Valid() {
			return filter, httperrors.ErrValidation.WithDetail("unknown severity")
		}
		filter.Severity = &s
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, httperrors.ErrValidation.WithDetail("since must be RFC3339")
		}
		filter.Since = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, httperrors.ErrValidation.WithDetail("limit must be a positive integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

func eventResponse(ev *repository.SecurityEvent) dto.EventResponse {
	return dto.EventResponse{
		EventID:   ev.EventID,
		Type:      string(ev.Type),
		Severity:  string(ev.Severity),
		UserID:    ev.UserID,
		IPAddress: ev.IPAddress,
		UserAgent: ev.UserAgent,
		Details:   ev.Details,
		Tags:      ev.Tags,
		CreatedAt: ev.CreatedAt,
	}
}
