package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id             UUID PRIMARY KEY,
//	    type           TEXT NOT NULL,
//	    actor_user_id  TEXT,
//	    actor_role     TEXT,
//	    ip_address     TEXT,
//	    target_user_id TEXT,
//	    reference      TEXT,
//	    message        TEXT,
//	    metadata       JSONB,
//	    created_at     TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events
			(id, type, actor_user_id, actor_role, ip_address, target_user_id, reference, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::jsonb, $10)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.TargetUserID, e.Reference, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
