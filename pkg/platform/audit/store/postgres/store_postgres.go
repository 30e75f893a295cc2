// Package postgres persists audit events in PostgreSQL. The audit path is
// asynchronous and never joins a request transaction, so it runs on its own
// pgx pool rather than the shared database/sql handle.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dataspace/pkg/platform/audit"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ audit.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (
			id, kind, occurred_at, actor_id, record_id, template_id,
			request_id, client_ip, user_agent, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.Kind),
		event.OccurredAt,
		event.ActorID,
		event.RecordID,
		event.TemplateID,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
		detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByRecord(ctx context.Context, recordID string) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, occurred_at, actor_id, record_id, template_id,
		       request_id, client_ip, user_agent, detail
		FROM audit_events
		WHERE record_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			kind   string
			detail []byte
		)
		err := rows.Scan(&e.ID, &kind, &e.OccurredAt, &e.ActorID, &e.RecordID,
			&e.TemplateID, &e.RequestID, &e.ClientIP, &e.UserAgent, &detail)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Kind = audit.Kind(kind)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
