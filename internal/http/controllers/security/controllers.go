// Package security contiene los controllers de eventos e incidentes.
package security

import (
	svc "github.com/crewgate/crewgate/internal/http/services/security"
)

// Controllers agrupa los controllers del dominio security.
type Controllers struct {
	Events    *EventController
	Incidents *IncidentController
}

// NewControllers crea el agregador de controllers security.
func NewControllers(recorder *svc.RecorderService, escalator *svc.EscalatorService) *Controllers {
	return &Controllers{
		Events:    NewEventController(recorder),
		Incidents: NewIncidentController(escalator),
	}
}
