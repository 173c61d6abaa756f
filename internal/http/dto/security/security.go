// Package security contiene los DTOs de eventos e incidentes.
package security

import "time"

// EventResponse es la proyección pública de un security event.
type EventResponse struct {
	EventID   string         `json:"eventId"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	UserID    *string        `json:"userId,omitempty"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ReportEventRequest es el body de POST /api/security/events.
type ReportEventRequest struct {
	Type      string         `json:"type"`
	Severity  string         `json:"severity,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	IPAddress string         `json:"ipAddress,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
}

// ReportEventResponse retorna el id asignado (vacío si fue debounced).
type ReportEventResponse struct {
	EventID   string `json:"eventId,omitempty"`
	Debounced bool   `json:"debounced,omitempty"`
}

// EscalateRequest es el body de POST /api/security/events/{id}/escalate.
// EventID solo se usa en la variante POST /api/security/escalate, donde el
// evento no viene en la ruta.
type EscalateRequest struct {
	EventID string `json:"event_id,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

// TransitionRequest es el body de POST /api/security/incidents/{id}/transition.
type TransitionRequest struct {
	State string `json:"state"`
	Notes string `json:"notes,omitempty"`
}

// IncidentResponse es la proyección pública de un incidente.
type IncidentResponse struct {
	ID             string     `json:"id"`
	EventID        string     `json:"eventId"`
	State          string     `json:"state"`
	ManualOverride bool       `json:"manualOverride,omitempty"`
	AckNotes       *string    `json:"ackNotes,omitempty"`
	AckBy          *string    `json:"ackBy,omitempty"`
	AckAt          *time.Time `json:"ackAt,omitempty"`
	ResolutionText *string    `json:"resolutionText,omitempty"`
	ResolvedBy     *string    `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
