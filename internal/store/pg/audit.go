package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

type auditRepo struct {
	pool *pgxpool.Pool
}

func (r *auditRepo) Append(ctx context.Context, entry repository.AuditEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	before, err := json.Marshal(entry.Before)
	if err != nil {
		return fmt.Errorf("pg: marshal audit before: %w", err)
	}
	after, err := json.Marshal(entry.After)
	if err != nil {
		return fmt.Errorf("pg: marshal audit after: %w", err)
	}
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, actor_id, resource, resource_id, ip_address, before, after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, entry.Action, entry.ActorID, entry.Resource, entry.ResourceID,
		entry.IPAddress, before, after, createdAt,
	)
	return mapErr(err)
}
