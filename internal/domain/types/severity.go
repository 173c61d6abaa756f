package types

// Severity clasifica la gravedad de un security event.
// Es un enum cerrado: los switch sobre Severity deben cubrir todos los casos.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid indica si la severidad es una de las conocidas.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Escalatable indica si un evento de esta severidad es elegible para
// escalación por política. low/medium requieren override manual.
func (s Severity) Escalatable() bool {
	return s == SeverityHigh || s == SeverityCritical
}
