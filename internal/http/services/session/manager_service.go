// Package session implementa la gestión de sesiones de dispositivo.
package session

import (
	"context"
	"errors"

	"github.com/crewgate/crewgate/internal/audit"
	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/store"
)

var (
	// ErrSessionNotFound indica que la sesión no existe o no pertenece al actor.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable indica un fallo del store subyacente.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Actor identifica quién ejecuta la operación y desde dónde.
type Actor struct {
	UserID string
	Admin  bool
	IP     string
}

// ManagerDeps contiene las dependencias del manager de sesiones.
type ManagerDeps struct {
	Store store.Store
	Audit *audit.Logger
}

// Manager expone operaciones de consulta y terminación de sesiones.
type Manager struct {
	deps ManagerDeps
}

// NewManager crea el manager de sesiones.
func NewManager(deps ManagerDeps) *Manager {
	return &Manager{deps: deps}
}

// ListByUser retorna las sesiones del usuario, más recientes primero.
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]repository.Session, error) {
	sessions, err := m.deps.Store.Sessions().ListByUser(ctx, userID)
	if err != nil {
		logger.From(ctx).With(
			logger.Layer("service"),
			logger.Component("session"),
			logger.Op("ListByUser"),
		).Error("session list failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}
	return sessions, nil
}

// Get obtiene una sesión verificando pertenencia. Un actor no admin solo ve
// sus propias sesiones; la sesión ajena se reporta como inexistente para no
// filtrar su existencia.
func (m *Manager) Get(ctx context.Context, actor Actor, id string) (*repository.Session, error) {
	sess, err := m.deps.Store.Sessions().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrStoreUnavailable
	}
	if !actor.Admin && sess.UserID != actor.UserID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Terminate termina una sesión. Terminar una sesión ya terminada es un no-op
// que igual responde éxito.
func (m *Manager) Terminate(ctx context.Context, actor Actor, id, reason string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Terminate"),
		logger.SessionID(id),
	)

	sess, err := m.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "manual"
	}
	if err := m.deps.Store.Sessions().Terminate(ctx, id, reason); err != nil {
		log.Error("session terminate failed", logger.Err(err))
		return ErrStoreUnavailable
	}

	log.Info("session terminated", logger.String("reason", reason))
	m.deps.Audit.Record(ctx, audit.Entry{
		Action:     "session.terminate",
		ActorID:    actor.UserID,
		Resource:   "session",
		ResourceID: id,
		IPAddress:  actor.IP,
		Before:     map[string]any{"is_active": sess.IsActive},
		After:      map[string]any{"is_active": false, "reason": reason},
	})
	return nil
}

// TerminateAllByUser termina todas las sesiones activas del usuario y retorna
// cuántas terminó.
func (m *Manager) TerminateAllByUser(ctx context.Context, actor Actor, userID, reason string) (int, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("TerminateAllByUser"),
		logger.UserID(userID),
	)
	if reason == "" {
		reason = "manual"
	}
	n, err := m.deps.Store.Sessions().TerminateAllByUser(ctx, userID, reason)
	if err != nil {
		log.Error("terminate all failed", logger.Err(err))
		return 0, ErrStoreUnavailable
	}

	log.Info("sessions terminated", logger.Count(n))
	m.deps.Audit.Record(ctx, audit.Entry{
		Action:     "session.terminate_all",
		ActorID:    actor.UserID,
		Resource:   "user",
		ResourceID: userID,
		IPAddress:  actor.IP,
		After:      map[string]any{"terminated": n, "reason": reason},
	})
	return n, nil
}
