// Package health implementa los chequeos de liveness y readiness.
package health

import (
	"context"
	"time"

	"github.com/crewgate/crewgate/internal/cache"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/store"
)

const checkTimeout = 2 * time.Second

// Deps contiene las dependencias a chequear.
type Deps struct {
	Store store.Store
	Cache cache.Client
}

// Service ejecuta los health checks.
type Service struct {
	deps Deps
}

// NewService crea el health service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// Report es el resultado de un chequeo completo.
type Report struct {
	Healthy bool
	Checks  map[string]string
}

// Check verifica las dependencias. Un fallo de cache degrada (el rate limit
// y el debounce ya operan fail open) pero no marca unhealthy; un fallo de
// store sí, porque sin store no hay decisión de autenticación posible.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	rep := Report{Healthy: true, Checks: map[string]string{}}

	if err := s.deps.Store.Ping(ctx); err != nil {
		logger.From(ctx).With(
			logger.Layer("service"),
			logger.Component("health"),
		).Error("store ping failed", logger.Err(err))
		rep.Healthy = false
		rep.Checks["store"] = "down"
	} else {
		rep.Checks["store"] = "ok"
	}

	if err := s.deps.Cache.Ping(ctx); err != nil {
		logger.From(ctx).With(
			logger.Layer("service"),
			logger.Component("health"),
		).Warn("cache ping failed", logger.Err(err))
		rep.Checks["cache"] = "down"
	} else {
		rep.Checks["cache"] = "ok"
	}

	return rep
}
