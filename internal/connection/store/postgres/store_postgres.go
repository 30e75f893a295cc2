// Package postgres persists connections in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dataspace/internal/connection/models"
	"dataspace/internal/connection/store"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
	txcontext "dataspace/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(ctx context.Context, c *models.Connection) error {
	_, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO connections (
			id, connection_id, state, their_label, their_did,
			invitation_key, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id) DO UPDATE SET
			state = EXCLUDED.state,
			their_label = EXCLUDED.their_label,
			their_did = EXCLUDED.their_did,
			invitation_key = EXCLUDED.invitation_key,
			updated_at = EXCLUDED.updated_at
	`,
		c.ID,
		c.ConnectionID,
		string(c.State),
		c.TheirLabel,
		c.TheirDID,
		c.InvitationKey,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

func (s *Store) FindByConnectionID(ctx context.Context, connectionID string) (*models.Connection, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, connection_id, state, their_label, their_did,
		       invitation_key, created_at, updated_at
		FROM connections
		WHERE connection_id = $1
	`, connectionID)

	var (
		c     models.Connection
		state string
	)
	err := row.Scan(&c.ID, &c.ConnectionID, &state, &c.TheirLabel, &c.TheirDID,
		&c.InvitationKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find connection: %w", err)
	}
	c.State = models.State(state)
	return &c, nil
}

func (s *Store) List(ctx context.Context, q pagination.Query) ([]*models.Connection, int, error) {
	querier := txcontext.Resolve(ctx, s.db)

	var total int
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count connections: %w", err)
	}

	rows, err := querier.QueryContext(ctx, `
		SELECT id, connection_id, state, their_label, their_did,
		       invitation_key, created_at, updated_at
		FROM connections
		ORDER BY created_at DESC, connection_id DESC
		LIMIT $1 OFFSET $2
	`, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var (
			c     models.Connection
			state string
		)
		err := rows.Scan(&c.ID, &c.ConnectionID, &state, &c.TheirLabel, &c.TheirDID,
			&c.InvitationKey, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan connection: %w", err)
		}
		c.State = models.State(state)
		connections = append(connections, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate connections: %w", err)
	}
	return connections, total, nil
}

func (s *Store) Delete(ctx context.Context, connectionID string) error {
	res, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx,
		`DELETE FROM connections WHERE connection_id = $1`, connectionID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
