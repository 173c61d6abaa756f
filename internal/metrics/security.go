package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus de la superficie de seguridad. Viven en un paquete
// propio para que services y middlewares las compartan sin ciclos de import.

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Intentos de login por resultado",
	}, []string{"result"}) // success | invalid_credentials | locked | mfa_failed

	SecurityEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "security_events_total",
		Help: "Security events registrados por tipo",
	}, []string{"type", "severity"})

	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Requests rechazados por rate limiting",
	}, []string{"class"})

	TokenValidationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auth_token_validation_latency_ms",
		Help:    "Latencia de validación de JWT incluyendo denylist",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	IncidentsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "security_incidents_open",
		Help: "Incidentes en estado no terminal",
	})

	AuditRetryDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_retry_queue_depth",
		Help: "Entradas de auditoría esperando reintento",
	})
)

// Register registra todas las métricas de seguridad en el registry dado
// (o en el default si es nil). Tolera registros repetidos.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		LoginAttempts,
		SecurityEvents,
		RateLimitRejections,
		TokenValidationLatency,
		IncidentsOpen,
		AuditRetryDepth,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
