// Package security contiene los servicios de security events e incidentes.
package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/crewgate/crewgate/internal/cache"
	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	"github.com/crewgate/crewgate/internal/ids"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

// debounceTTL es la ventana durante la cual detecciones idénticas del mismo
// origen colapsan en un solo evento persistido.
const debounceTTL = 10 * time.Second

// EventInput contiene los datos de una detección a registrar.
type EventInput struct {
	Type      types.EventType
	Severity  types.Severity // vacío => DefaultSeverity del tipo
	UserID    string
	IPAddress string
	UserAgent string
	Details   map[string]any
	Tags      []string
}

// RecorderDeps contiene las dependencias del recorder.
type RecorderDeps struct {
	Events    repository.SecurityEventRepository
	Cache     cache.Client // nil = sin debounce
	Escalator *EscalatorService
}

// RecorderService persiste security events y dispara la escalación
// automática de los de severidad alta.
//
// Registrar un evento nunca falla hacia el caller: la detección ya ocurrió
// y la decisión primaria (bloquear el request, rechazar el login) no depende
// de que el registro persista.
type RecorderService struct {
	deps RecorderDeps
}

// NewRecorderService crea el recorder de security events.
func NewRecorderService(deps RecorderDeps) *RecorderService {
	return &RecorderService{deps: deps}
}

// Record registra un evento. Retorna el event id asignado, o cadena vacía
// si la detección fue debounced.
func (s *RecorderService) Record(ctx context.Context, in EventInput) string {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.recorder"),
		logger.Op("Record"),
	)

	if in.Severity == "" {
		in.Severity = in.Type.DefaultSeverity()
	}

	// Paso 1: debounce. Detecciones idénticas del mismo origen dentro de
	// la ventana colapsan; un scanner que dispara cientos de firmas por
	// segundo produce un evento, no cientos.
	if s.deps.Cache != nil {
		ok, err := s.deps.Cache.SetNX(ctx, s.debounceKey(in), "1", debounceTTL)
		if err != nil {
			// Cache caído: registramos igual. Mejor un evento duplicado
			// que una detección perdida.
			log.Warn("event debounce unavailable", logger.Err(err))
		} else if !ok {
			log.Debug("event debounced",
				logger.String("type", string(in.Type)),
				logger.ClientIP(in.IPAddress),
			)
			return ""
		}
	}

	ev := repository.SecurityEvent{
		EventID:   ids.NewEventID(),
		Type:      in.Type,
		Severity:  in.Severity,
		UserID:    nilIfEmpty(in.UserID),
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Details:   in.Details,
		Tags:      in.Tags,
		CreatedAt: time.Now().UTC(),
	}

	// Paso 2: persistir. Un fallo se alerta pero no se propaga.
	if err := s.deps.Events.Insert(ctx, ev); err != nil {
		logger.Alert().Error("security event write failed",
			logger.EventID(ev.EventID),
			logger.String("type", string(ev.Type)),
			logger.Err(err),
		)
		return ""
	}

	metrics.SecurityEvents.WithLabelValues(string(ev.Type), string(ev.Severity)).Inc()
	log.Info("security event recorded",
		logger.EventID(ev.EventID),
		logger.String("type", string(ev.Type)),
		logger.Severity(string(ev.Severity)),
		logger.ClientIP(ev.IPAddress),
	)

	// Paso 3: escalación automática para high/critical.
	if s.deps.Escalator != nil && ev.Severity.Escalatable() {
		s.deps.Escalator.AutoEscalate(ctx, ev.EventID)
	}

	return ev.EventID
}

// Get retorna un evento por id.
func (s *RecorderService) Get(ctx context.Context, eventID string) (*repository.SecurityEvent, error) {
	return s.deps.Events.Get(ctx, eventID)
}

// List retorna eventos filtrados.
func (s *RecorderService) List(ctx context.Context, filter repository.SecurityEventFilter) ([]repository.SecurityEvent, error) {
	return s.deps.Events.List(ctx, filter)
}

// debounceKey identifica una detección por (tipo, ip, usuario): el mismo
// atacante repitiendo la misma firma cae en la misma key.
func (s *RecorderService) debounceKey(in EventInput) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", in.Type, in.IPAddress, in.UserID)))
	return "evdb:" + hex.EncodeToString(h[:16])
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
