package types

// IncidentState es el estado de un incidente dentro de su máquina de estados.
//
//	detected → acknowledged → investigating → resolved
//	rejected / false_positive alcanzables desde detected o acknowledged.
//
// resolved, rejected y false_positive son terminales.
type IncidentState string

const (
	IncidentDetected      IncidentState = "detected"
	IncidentAcknowledged  IncidentState = "acknowledged"
	IncidentInvestigating IncidentState = "investigating"
	IncidentResolved      IncidentState = "resolved"
	IncidentRejected      IncidentState = "rejected"
	IncidentFalsePositive IncidentState = "false_positive"
)

// Valid indica si el estado es uno de los conocidos.
func (s IncidentState) Valid() bool {
	switch s {
	case IncidentDetected, IncidentAcknowledged, IncidentInvestigating,
		IncidentResolved, IncidentRejected, IncidentFalsePositive:
		return true
	}
	return false
}

// Terminal indica si el estado no admite más transiciones.
func (s IncidentState) Terminal() bool {
	switch s {
	case IncidentResolved, IncidentRejected, IncidentFalsePositive:
		return true
	}
	return false
}

// CanTransitionTo valida una transición de la máquina de estados.
// Una transición al mismo estado es válida (idempotencia a nivel de política;
// el service decide si es no-op).
func (s IncidentState) CanTransitionTo(next IncidentState) bool {
	if s == next {
		return true
	}
	switch s {
	case IncidentDetected:
		return next == IncidentAcknowledged || next == IncidentRejected || next == IncidentFalsePositive
	case IncidentAcknowledged:
		return next == IncidentInvestigating || next == IncidentRejected || next == IncidentFalsePositive
	case IncidentInvestigating:
		return next == IncidentResolved
	}
	return false
}
