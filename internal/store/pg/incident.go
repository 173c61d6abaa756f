package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
)

type incidentRepo struct {
	pool *pgxpool.Pool
}

const incidentColumns = `id, event_id, state, manual_override, ack_notes, ack_by, ack_at,
	resolution_text, resolved_by, resolved_at, created_at, updated_at`

// CreateForEvent inserta con ON CONFLICT DO NOTHING sobre event_id. Si el
// INSERT no retorna fila, ya existe un incidente para ese evento: se lee y
// se retorna junto con ErrConflict para que el caller decida si es idempotencia
// o duplicado rechazable.
func (r *incidentRepo) CreateForEvent(ctx context.Context, inc repository.Incident) (*repository.Incident, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO incidents (id, event_id, state, manual_override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING `+incidentColumns,
		inc.ID, inc.EventID, string(inc.State), inc.ManualOverride, now,
	)
	created, err := scanIncident(row)
	if err == nil {
		return created, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}
	existing, err := r.GetByEventID(ctx, inc.EventID)
	if err != nil {
		return nil, err
	}
	return existing, repository.ErrConflict
}

func (r *incidentRepo) Get(ctx context.Context, id string) (*repository.Incident, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	return scanIncident(row)
}

func (r *incidentRepo) GetByEventID(ctx context.Context, eventID string) (*repository.Incident, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE event_id = $1`, eventID)
	return scanIncident(row)
}

// Transition lee el estado bajo FOR UPDATE y aplica la transición dentro de
// la misma transacción, de modo que dos transiciones concurrentes se
// serializan contra la fila.
func (r *incidentRepo) Transition(ctx context.Context, id string, upd repository.IncidentUpdate) (*repository.Incident, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1 FOR UPDATE`, id)
	current, err := scanIncident(row)
	if err != nil {
		return nil, err
	}

	if current.State == upd.State {
		_ = tx.Commit(ctx)
		return current, nil
	}
	if !current.State.CanTransitionTo(upd.State) {
		return nil, repository.ErrInvalidTransition
	}

	query := `UPDATE incidents SET state = $2, updated_at = NOW()`
	args := []any{id, string(upd.State)}
	switch upd.State {
	case types.IncidentAcknowledged:
		args = append(args, upd.Notes, upd.Actor)
		query += `, ack_notes = $3, ack_by = $4, ack_at = NOW()`
	case types.IncidentResolved, types.IncidentRejected, types.IncidentFalsePositive:
		args = append(args, upd.Notes, upd.Actor)
		query += `, resolution_text = $3, resolved_by = $4, resolved_at = NOW()`
	}
	query += ` WHERE id = $1 RETURNING ` + incidentColumns

	updated, err := scanIncident(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err)
	}
	return updated, nil
}

func (r *incidentRepo) List(ctx context.Context, limit int) ([]repository.Incident, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+incidentColumns+` FROM incidents ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, mapErr(rows.Err())
}

func scanIncident(row rowScanner) (*repository.Incident, error) {
	var inc repository.Incident
	var state string
	if err := row.Scan(&inc.ID, &inc.EventID, &state, &inc.ManualOverride,
		&inc.AckNotes, &inc.AckBy, &inc.AckAt,
		&inc.ResolutionText, &inc.ResolvedBy, &inc.ResolvedAt,
		&inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	inc.State = types.IncidentState(state)
	return &inc, nil
}
