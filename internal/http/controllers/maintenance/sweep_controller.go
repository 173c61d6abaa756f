// Package maintenance contiene el controller del retention sweep.
package maintenance

import (
	"encoding/json"
	"net/http"

	svc "github.com/crewgate/crewgate/internal/http/services/maintenance"
	"github.com/crewgate/crewgate/internal/observability/logger"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Controller expone el sweep para el cron job externo.
type Controller struct {
	sweeper *svc.Sweeper
}

// NewController crea un nuevo controller de maintenance.
func NewController(sweeper *svc.Sweeper) *Controller {
	return &Controller{sweeper: sweeper}
}

// Sweep maneja POST /api/cron/sweep (protegido con X-Cron-Secret)
func (c *Controller) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MaintenanceController.Sweep"))

	result := c.sweeper.Run(ctx)
	log.Info("sweep triggered")

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}
