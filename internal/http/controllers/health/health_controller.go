// Package health contiene los controllers de health checks.
package health

import (
	"encoding/json"
	"net/http"

	dto "github.com/crewgate/crewgate/internal/http/dto/health"
	svc "github.com/crewgate/crewgate/internal/http/services/health"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Controller expone liveness y readiness.
type Controller struct {
	service *svc.Service
}

// NewController crea un nuevo controller de health.
func NewController(service *svc.Service) *Controller {
	return &Controller{service: service}
}

// Healthz maneja GET /healthz (liveness: el proceso responde)
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.HealthResponse{Status: "ok"})
}

// Readyz maneja GET /readyz (readiness: las dependencias responden)
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := c.service.Check(r.Context())

	status := "ok"
	code := http.StatusOK
	if !rep.Healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(dto.HealthResponse{Status: status, Checks: rep.Checks})
}
