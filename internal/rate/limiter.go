// Package rate implementa rate limiting fixed-window por (identidad, clase
// de endpoint).
//
// Las keys llevan un prefijo por familia de endpoint ("auth:", "api:") para
// que el abuso de una superficie no agote la cuota de otra. Backends: Redis
// (multi-proceso) y memoria (single-process); en ambos el incremento del
// contador es atómico: dos requests simultáneos nunca observan ambos
// count = limit-1 y pasan los dos.
package rate

import (
	"context"
	"net"
	"strings"
	"time"
)

// Clases de endpoint para el prefijo de la key.
const (
	ClassAuth = "auth"
	ClassAPI  = "api"
)

// Result contiene el resultado de una consulta al rate limiter.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter define la interfaz mínima para un rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Key arma la key de rate limiting para una clase e identidad.
func Key(class, identity string) string {
	return class + ":" + NormalizeIP(identity)
}

// NormalizeIP colapsa direcciones IPv4-mapped-IPv6 (::ffff:a.b.c.d) a su
// forma dotted-quad. Sin esto un mismo cliente podría alternar ambas
// representaciones y duplicar su cuota.
func NormalizeIP(s string) string {
	s = strings.TrimSpace(s)
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return ip.String()
	}
	return s
}
