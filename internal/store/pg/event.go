package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
)

type eventRepo struct {
	pool *pgxpool.Pool
}

const eventColumns = `event_id, event_type, severity, user_id, ip_address, user_agent, details, tags, created_at`

func (r *eventRepo) Insert(ctx context.Context, ev repository.SecurityEvent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("pg: marshal event details: %w", err)
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO security_events (event_id, event_type, severity, user_id, ip_address, user_agent, details, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.EventID, string(ev.Type), string(ev.Severity), ev.UserID,
		ev.IPAddress, ev.UserAgent, details, ev.Tags, createdAt,
	)
	return mapErr(err)
}

func (r *eventRepo) Get(ctx context.Context, eventID string) (*repository.SecurityEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM security_events WHERE event_id = $1`, eventID)
	return scanEvent(row)
}

func (r *eventRepo) List(ctx context.Context, filter repository.SecurityEventFilter) ([]repository.SecurityEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + eventColumns + ` FROM security_events WHERE 1=1`
	args := []any{}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.Severity != nil {
		args = append(args, string(*filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.SecurityEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, mapErr(rows.Err())
}

func scanEvent(row rowScanner) (*repository.SecurityEvent, error) {
	var ev repository.SecurityEvent
	var typ, sev string
	var details []byte
	if err := row.Scan(&ev.EventID, &typ, &sev, &ev.UserID, &ev.IPAddress,
		&ev.UserAgent, &details, &ev.Tags, &ev.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	ev.Type = types.EventType(typ)
	ev.Severity = types.Severity(sev)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &ev.Details); err != nil {
			return nil, fmt.Errorf("pg: unmarshal event details: %w", err)
		}
	}
	return &ev, nil
}
