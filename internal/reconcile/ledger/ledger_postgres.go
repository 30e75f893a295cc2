package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	txcontext "dataspace/pkg/platform/tx"
)

// Postgres keeps the ledger in the event_ledger table. It joins the ambient
// transaction via the context, so the ledger advance commits or rolls back
// together with the record mutation.
type Postgres struct {
	db *sql.DB
}

var _ Ledger = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Last(ctx context.Context, key string) (int, error) {
	var ordinal int
	err := txcontext.Resolve(ctx, p.db).QueryRowContext(ctx,
		`SELECT ordinal FROM event_ledger WHERE correlation_key = $1`, key,
	).Scan(&ordinal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger select: %w", err)
	}
	return ordinal, nil
}

func (p *Postgres) Advance(ctx context.Context, key string, ordinal int) error {
	_, err := txcontext.Resolve(ctx, p.db).ExecContext(ctx, `
		INSERT INTO event_ledger (correlation_key, ordinal, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (correlation_key) DO UPDATE SET
			ordinal = EXCLUDED.ordinal,
			updated_at = NOW()
		WHERE event_ledger.ordinal < EXCLUDED.ordinal
	`, key, ordinal)
	if err != nil {
		return fmt.Errorf("ledger advance: %w", err)
	}
	return nil
}
