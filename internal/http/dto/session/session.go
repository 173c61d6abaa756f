// Package session contiene los DTOs de gestión de sesiones.
package session

import "time"

// SessionResponse es la proyección pública de una sesión.
type SessionResponse struct {
	ID                string     `json:"id"`
	IPAddress         string     `json:"ipAddress"`
	UserAgent         string     `json:"userAgent,omitempty"`
	DeviceFingerprint string     `json:"deviceFingerprint,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	LastActivity      time.Time  `json:"lastActivity"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	IsActive          bool       `json:"isActive"`
	TerminatedAt      *time.Time `json:"terminatedAt,omitempty"`
	TerminationReason *string    `json:"terminationReason,omitempty"`
}

// TerminateRequest es el body de DELETE /api/sessions/{id}.
type TerminateRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TerminateResponse confirma la terminación.
type TerminateResponse struct {
	Terminated int `json:"terminated"`
}
