// Package audit appends to and reads the audit trail. Entries are written by
// the worker from committed events; request handlers never write here.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one entry. detail is stored as JSONB; nil writes NULL.
func (r *Recorder) Record(ctx context.Context, actor, action, entity, entityID string, detail any) error {
	var detailJSON sql.NullString
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detailJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, entity, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, actor, action, entity, entityID, detailJSON)

	return err
}

// List returns entries newest first, optionally filtered by entity and
// entity id.
func (r *Recorder) List(ctx context.Context, entity, entityID string, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, actor, action, entity, entity_id, COALESCE(detail::text, ''), created_at
		FROM audit_log
	`
	var args []any
	switch {
	case entity != "" && entityID != "":
		query += ` WHERE entity = $1 AND entity_id = $2 ORDER BY id DESC LIMIT $3`
		args = []any{entity, entityID, limit}
	case entity != "":
		query += ` WHERE entity = $1 ORDER BY id DESC LIMIT $2`
		args = []any{entity, limit}
	default:
		query += ` ORDER BY id DESC LIMIT $1`
		args = []any{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
