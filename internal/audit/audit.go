// Package audit escribe el audit log de acciones sensibles.
//
// El audit log es best-effort respecto de la decisión primaria: si la
// escritura falla, la operación que la originó ya fue decidida y no se
// revierte. Los fallos pasan a un buffer de reintento y se reportan por el
// canal de alertas del logger, nunca como error al caller.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

const (
	retryBuffer   = 256
	retryInterval = 5 * time.Second
	writeTimeout  = 2 * time.Second
)

// Entry es la forma pública de un registro de auditoría.
type Entry struct {
	Action     string
	ActorID    string
	Resource   string
	ResourceID string
	IPAddress  string
	Before     map[string]any
	After      map[string]any
}

// Logger escribe entradas de auditoría con reintento asíncrono.
type Logger struct {
	repo repository.AuditRepository

	mu      sync.Mutex
	pending []repository.AuditEntry
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewLogger construye el audit logger y arranca el loop de reintento.
func NewLogger(repo repository.AuditRepository) *Logger {
	l := &Logger{
		repo: repo,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.retryLoop()
	return l
}

// Record escribe una entrada. Nunca retorna error: un fallo de escritura
// encola la entrada para reintento y alerta por el canal secundario.
func (l *Logger) Record(ctx context.Context, e Entry) {
	entry := repository.AuditEntry{
		Action:     e.Action,
		ActorID:    nilIfEmpty(e.ActorID),
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IPAddress:  e.IPAddress,
		Before:     e.Before,
		After:      e.After,
		CreatedAt:  time.Now().UTC(),
	}

	// La escritura se desacopla de la cancelación del request: que el
	// cliente corte la conexión no debe perder el registro.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := l.repo.Append(wctx, entry); err != nil {
		l.enqueue(entry)
		logger.Alert().Error("audit write failed, queued for retry",
			logger.String("action", e.Action),
			logger.String("resource", e.Resource),
			logger.Err(err),
		)
	}
}

func (l *Logger) enqueue(entry repository.AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if len(l.pending) >= retryBuffer {
		// Se pierde la entrada más vieja; el alert deja rastro del hueco.
		l.pending = l.pending[1:]
		logger.Alert().Error("audit retry buffer full, dropping oldest entry")
	}
	l.pending = append(l.pending, entry)
	metrics.AuditRetryDepth.Set(float64(len(l.pending)))
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Logger) retryLoop() {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			l.flush()
			return
		case <-l.wake:
		case <-ticker.C:
		}
		l.flush()
	}
}

func (l *Logger) flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	metrics.AuditRetryDepth.Set(0)
	l.mu.Unlock()

	for i, entry := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := l.repo.Append(ctx, entry)
		cancel()
		if err != nil {
			// El backend sigue caído: devolvemos lo que falta a la cola.
			l.mu.Lock()
			if !l.closed {
				l.pending = append(batch[i:], l.pending...)
				metrics.AuditRetryDepth.Set(float64(len(l.pending)))
			}
			l.mu.Unlock()
			return
		}
	}
	if len(batch) > 0 {
		logger.Alert().Info("audit retry drained",
			logger.Int("entries", len(batch)))
	}
}

// Close detiene el loop de reintento tras un último flush.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	close(l.done)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}