package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memcache "github.com/crewgate/crewgate/internal/cache/memory"
	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	"github.com/crewgate/crewgate/internal/store/memory"
)

func newEscalator(st *memory.Store) *EscalatorService {
	return NewEscalatorService(EscalatorDeps{
		Events:    st.Events(),
		Incidents: st.Incidents(),
	})
}

func seedEvent(t *testing.T, st *memory.Store, id string, sev types.Severity) {
	t.Helper()
	err := st.Events().Insert(context.Background(), repository.SecurityEvent{
		EventID:   id,
		Type:      types.EventSQLInjectionAttempt,
		Severity:  sev,
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
}

func TestEscalate_HighSeverity(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)
	seedEvent(t, st, "evt-1", types.SeverityHigh)

	inc, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-1"})
	require.NoError(t, err)
	require.Equal(t, types.IncidentDetected, inc.State)
	require.Equal(t, "evt-1", inc.EventID)
	require.False(t, inc.ManualOverride)
}

func TestEscalate_LowSeverityFlaggedAsOverride(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)
	seedEvent(t, st, "evt-low", types.SeverityLow)
	seedEvent(t, st, "evt-med", types.SeverityMedium)

	// Escalar severidad baja o media está permitido, pero el incidente
	// queda marcado como override manual.
	inc, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-low", Actor: "op-1"})
	require.NoError(t, err)
	require.True(t, inc.ManualOverride)
	require.Equal(t, types.IncidentDetected, inc.State)

	inc, err = esc.Escalate(context.Background(), EscalateInput{EventID: "evt-med", Actor: "op-1"})
	require.NoError(t, err)
	require.True(t, inc.ManualOverride)
}

func TestEscalate_DuplicateRejected(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)
	seedEvent(t, st, "evt-1", types.SeverityCritical)

	first, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-1"})
	require.NoError(t, err)

	// La segunda escalación del mismo evento entrega el existente con error.
	dup, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-2"})
	require.ErrorIs(t, err, ErrDuplicateEscalation)
	require.Equal(t, first.ID, dup.ID)

	// Con force es idempotente: mismo incidente, sin error.
	forced, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-2", Force: true})
	require.NoError(t, err)
	require.Equal(t, first.ID, forced.ID)
}

func TestEscalate_UnknownEvent(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)

	_, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-missing", Actor: "op-1"})
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestTransition_LifecycleAndTerminal(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)
	seedEvent(t, st, "evt-1", types.SeverityHigh)

	inc, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-1"})
	require.NoError(t, err)

	for _, state := range []types.IncidentState{
		types.IncidentAcknowledged,
		types.IncidentInvestigating,
		types.IncidentResolved,
	} {
		inc, err = esc.Transition(context.Background(), TransitionInput{
			IncidentID: inc.ID, State: state, Actor: "op-1", Notes: "ok",
		})
		require.NoError(t, err, "state %s", state)
		require.Equal(t, state, inc.State)
	}

	// resolved es terminal.
	_, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentAcknowledged, Actor: "op-1", Notes: "reabrir",
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_RejectFromDetected(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)
	seedEvent(t, st, "evt-1", types.SeverityHigh)

	inc, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-1"})
	require.NoError(t, err)

	inc, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentFalsePositive, Actor: "op-1", Notes: "scanner interno",
	})
	require.NoError(t, err)
	require.Equal(t, types.IncidentFalsePositive, inc.State)
	require.NotNil(t, inc.ResolvedAt)
}

func TestTransition_NotesRequired(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)
	seedEvent(t, st, "evt-1", types.SeverityHigh)

	inc, err := esc.Escalate(context.Background(), EscalateInput{EventID: "evt-1", Actor: "op-1"})
	require.NoError(t, err)

	// Acknowledge sin notas se rechaza.
	_, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentAcknowledged, Actor: "op-1",
	})
	require.ErrorIs(t, err, ErrNotesRequired)

	inc, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentAcknowledged, Actor: "op-1", Notes: "revisando",
	})
	require.NoError(t, err)

	inc, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentInvestigating, Actor: "op-1",
	})
	require.NoError(t, err)

	// Resolver exige el texto de resolución.
	_, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentResolved, Actor: "op-1",
	})
	require.ErrorIs(t, err, ErrNotesRequired)
	require.Equal(t, types.IncidentInvestigating, inc.State)

	inc, err = esc.Transition(context.Background(), TransitionInput{
		IncidentID: inc.ID, State: types.IncidentResolved, Actor: "op-1", Notes: "regla WAF aplicada",
	})
	require.NoError(t, err)
	require.Equal(t, types.IncidentResolved, inc.State)
}

func TestTransition_UnknownIncident(t *testing.T) {
	st := memory.New()
	esc := newEscalator(st)

	_, err := esc.Transition(context.Background(), TransitionInput{
		IncidentID: "inc-missing", State: types.IncidentAcknowledged, Actor: "op-1",
	})
	require.ErrorIs(t, err, ErrIncidentNotFound)
}

func TestRecord_PersistsAndAutoEscalates(t *testing.T) {
	st := memory.New()
	rec := NewRecorderService(RecorderDeps{
		Events:    st.Events(),
		Escalator: newEscalator(st),
	})

	eventID := rec.Record(context.Background(), EventInput{
		Type:      types.EventSQLInjectionAttempt,
		IPAddress: "10.0.0.1",
		Tags:      []string{"sql_injection"},
	})
	require.NotEmpty(t, eventID)

	ev, err := rec.Get(context.Background(), eventID)
	require.NoError(t, err)
	// sql_injection_attempt defaultea a high.
	require.Equal(t, types.SeverityHigh, ev.Severity)

	// high → auto-escalado.
	inc, err := st.Incidents().GetByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.Equal(t, types.IncidentDetected, inc.State)
}

func TestRecord_LowSeverityDoesNotEscalate(t *testing.T) {
	st := memory.New()
	rec := NewRecorderService(RecorderDeps{
		Events:    st.Events(),
		Escalator: newEscalator(st),
	})

	eventID := rec.Record(context.Background(), EventInput{
		Type:      types.EventLoginFailure,
		IPAddress: "10.0.0.1",
	})
	require.NotEmpty(t, eventID)

	_, err := st.Incidents().GetByEventID(context.Background(), eventID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecord_Debounce(t *testing.T) {
	st := memory.New()
	rec := NewRecorderService(RecorderDeps{
		Events: st.Events(),
		Cache:  memcache.New(time.Minute),
	})

	in := EventInput{
		Type:      types.EventXSSAttempt,
		IPAddress: "10.0.0.9",
		UserID:    "u-1",
	}
	first := rec.Record(context.Background(), in)
	require.NotEmpty(t, first)

	// La misma detección dentro de la ventana colapsa.
	second := rec.Record(context.Background(), in)
	require.Empty(t, second)

	// Otra IP no comparte la ventana.
	in.IPAddress = "10.0.0.10"
	third := rec.Record(context.Background(), in)
	require.NotEmpty(t, third)

	events, err := rec.List(context.Background(), repository.SecurityEventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
}
