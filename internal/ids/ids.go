// Package ids genera identificadores para eventos e incidentes.
// ULID: ordenables lexicográficamente por tiempo de creación, lo que hace
// que listar eventos por id sea listarlos por llegada.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New retorna un ULID nuevo.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewEventID retorna un event id con prefijo legible.
func NewEventID() string {
	return "evt_" + New()
}

// NewIncidentID retorna un incident id con prefijo legible.
func NewIncidentID() string {
	return "inc_" + New()
}
