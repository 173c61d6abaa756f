package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/crewgate/crewgate/internal/audit"
	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	"github.com/crewgate/crewgate/internal/ids"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// Errores de escalación
var (
	ErrEventNotFound       = fmt.Errorf("event not found")
	ErrDuplicateEscalation = fmt.Errorf("event already escalated")
	ErrIncidentNotFound    = fmt.Errorf("incident not found")
	ErrInvalidTransition   = fmt.Errorf("invalid incident transition")
	ErrNotesRequired       = fmt.Errorf("transition requires notes")
)

// EscalatorDeps contiene las dependencias del escalator.
type EscalatorDeps struct {
	Events    repository.SecurityEventRepository
	Incidents repository.IncidentRepository
	Audit     *audit.Logger
}

// EscalatorService convierte security events en incidentes y maneja su
// máquina de estados.
type EscalatorService struct {
	deps EscalatorDeps
}

// NewEscalatorService crea el servicio de escalación.
func NewEscalatorService(deps EscalatorDeps) *EscalatorService {
	return &EscalatorService{deps: deps}
}

// EscalateInput contiene los parámetros de una escalación manual.
type EscalateInput struct {
	EventID string
	Actor   string
	IP      string
	// Force convierte el duplicado en idempotencia: en vez de
	// ErrDuplicateEscalation se retorna el incidente existente.
	Force bool
}

// Escalate crea el incidente para un evento. Escalar un evento de severidad
// baja o media está permitido pero queda marcado como override manual en el
// incidente. La unicidad sobre event_id garantiza que dos escalaciones
// concurrentes produzcan un solo incidente: la perdedora recibe
// ErrDuplicateEscalation (o el incidente existente, con Force).
func (s *EscalatorService) Escalate(ctx context.Context, in EscalateInput) (*repository.Incident, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.escalator"),
		logger.Op("Escalate"),
		logger.EventID(in.EventID),
	)

	ev, err := s.deps.Events.Get(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	inc := repository.Incident{
		ID:             ids.NewIncidentID(),
		EventID: ev.EventID,
		State:   types.IncidentDetected,
		// Severidad baja/media escala igual, pero marcada como override.
		ManualOverride: !ev.Severity.Escalatable(),
	}

	created, err := s.deps.Incidents.CreateForEvent(ctx, inc)
	if errors.Is(err, repository.ErrConflict) {
		if in.Force {
			// Con force el duplicado es idempotencia: retornamos el
			// incidente que ya existe.
			log.Debug("escalation already exists, returning existing",
				logger.IncidentID(created.ID))
			return created, nil
		}
		return created, ErrDuplicateEscalation
	}
	if err != nil {
		return nil, err
	}

	metrics.IncidentsOpen.Inc()
	log.Info("incident created",
		logger.IncidentID(created.ID),
		logger.Severity(string(ev.Severity)),
	)

	if s.deps.Audit != nil {
		s.deps.Audit.Record(ctx, audit.Entry{
			Action:     "incident.escalate",
			ActorID:    in.Actor,
			Resource:   "incident",
			ResourceID: created.ID,
			IPAddress:  in.IP,
			After: map[string]any{
				"event_id":        created.EventID,
				"state":           string(created.State),
				"manual_override": created.ManualOverride,
			},
		})
	}
	return created, nil
}

// AutoEscalate es la variante best-effort que usa el recorder: cualquier
// error (incluido el duplicado) se loguea y se descarta.
func (s *EscalatorService) AutoEscalate(ctx context.Context, eventID string) {
	_, err := s.Escalate(ctx, EscalateInput{EventID: eventID, Actor: "system"})
	if err != nil && !errors.Is(err, ErrDuplicateEscalation) {
		logger.From(ctx).Warn("auto escalation failed",
			logger.Component("security.escalator"),
			logger.EventID(eventID),
			logger.Err(err),
		)
	}
}

// TransitionInput contiene los parámetros de una transición de estado.
type TransitionInput struct {
	IncidentID string
	State      types.IncidentState
	Notes      string
	Actor      string
	IP         string
}

// Transition aplica una transición validada por la máquina de estados.
func (s *EscalatorService) Transition(ctx context.Context, in TransitionInput) (*repository.Incident, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.escalator"),
		logger.Op("Transition"),
		logger.IncidentID(in.IncidentID),
	)

	// Acknowledge exige notas del operador y resolved exige el texto de
	// resolución. Para los demás estados las notas son opcionales.
	if in.Notes == "" && (in.State == types.IncidentAcknowledged || in.State == types.IncidentResolved) {
		log.Debug("transition rejected, notes required",
			logger.String("to", string(in.State)),
		)
		return nil, ErrNotesRequired
	}

	before, err := s.deps.Incidents.Get(ctx, in.IncidentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}

	upd := repository.IncidentUpdate{
		State: in.State,
		Notes: notesPtr(in.Notes),
		Actor: in.Actor,
	}
	updated, err := s.deps.Incidents.Transition(ctx, in.IncidentID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			log.Debug("transition rejected",
				logger.String("from", string(before.State)),
				logger.String("to", string(in.State)),
			)
			return nil, ErrInvalidTransition
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}

	if before.State != updated.State && updated.State.Terminal() {
		metrics.IncidentsOpen.Dec()
	}

	log.Info("incident transitioned",
		logger.String("from", string(before.State)),
		logger.String("to", string(updated.State)),
	)

	if s.deps.Audit != nil && before.State != updated.State {
		s.deps.Audit.Record(ctx, audit.Entry{
			Action:     "incident.transition",
			ActorID:    in.Actor,
			Resource:   "incident",
			ResourceID: updated.ID,
			IPAddress:  in.IP,
			Before:     map[string]any{"state": string(before.State)},
			After:      map[string]any{"state": string(updated.State)},
		})
	}
	return updated, nil
}

// Get retorna un incidente por id.
func (s *EscalatorService) Get(ctx context.Context, id string) (*repository.Incident, error) {
	inc, err := s.deps.Incidents.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrIncidentNotFound
	}
	return inc, err
}

// List retorna incidentes, más recientes primero.
func (s *EscalatorService) List(ctx context.Context, limit int) ([]repository.Incident, error) {
	return s.deps.Incidents.List(ctx, limit)
}

func notesPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
