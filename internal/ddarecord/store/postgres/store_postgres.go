// Package postgres persists agreement records in PostgreSQL. The one-active-
// record invariant is backed by a partial unique index over
// (connection_id, template_id) filtered on active states.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	ddamodels "dataspace/internal/dda/models"
	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/store"
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

const recordColumns = `
	id, connection_id, template_id, template_version, state, role,
	thread_id, presentation_exchange_id, data_agreement, presentation,
	created_at, updated_at
`

var activeStates = []string{
	string(models.StatePending),
	string(models.StateRequested),
	string(models.StatePresented),
	string(models.StateVerified),
}

func (s *Store) Create(ctx context.Context, r *models.Record) error {
	agreement, presentation, err := marshalPayloads(r)
	if err != nil {
		return err
	}
	_, err = txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO dda_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		r.ID,
		r.ConnectionID,
		r.TemplateID,
		r.TemplateVersion,
		string(r.State),
		r.Role,
		r.ThreadID,
		r.PresentationExchangeID,
		agreement,
		presentation,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM dda_records WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (s *Store) Update(ctx context.Context, r *models.Record) error {
	agreement, presentation, err := marshalPayloads(r)
	if err != nil {
		return err
	}
	res, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE dda_records SET
			state = $1,
			role = $2,
			thread_id = $3,
			presentation_exchange_id = $4,
			data_agreement = $5,
			presentation = $6,
			updated_at = $7
		WHERE id = $8
	`,
		string(r.State),
		r.Role,
		r.ThreadID,
		r.PresentationExchangeID,
		agreement,
		presentation,
		r.UpdatedAt,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindByThreadID(ctx context.Context, threadID string) (*models.Record, error) {
	if threadID == "" {
		return nil, sentinel.ErrNotFound
	}
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM dda_records WHERE thread_id = $1
	`, threadID)
	return scanRecord(row)
}

func (s *Store) FindByPresentationExchangeID(ctx context.Context, presentationExchangeID string) (*models.Record, error) {
	if presentationExchangeID == "" {
		return nil, sentinel.ErrNotFound
	}
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM dda_records WHERE presentation_exchange_id = $1
	`, presentationExchangeID)
	return scanRecord(row)
}

func (s *Store) FindActive(ctx context.Context, connectionID, templateID string) (*models.Record, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM dda_records
		WHERE connection_id = $1 AND template_id = $2 AND state = ANY($3)
	`, connectionID, templateID, pq.Array(activeStates))
	return scanRecord(row)
}

func (s *Store) FindOldestPendingByConnection(ctx context.Context, connectionID string) (*models.Record, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM dda_records
		WHERE connection_id = $1 AND state = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, connectionID, string(models.StatePending))
	return scanRecord(row)
}

func (s *Store) List(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Record, int, error) {
	where := `TRUE`
	args := []any{}
	if f.ConnectionID != "" {
		args = append(args, f.ConnectionID)
		where += fmt.Sprintf(" AND connection_id = $%d", len(args))
	}
	if f.TemplateID != "" {
		args = append(args, f.TemplateID)
		where += fmt.Sprintf(" AND template_id = $%d", len(args))
	}
	if f.State != "" {
		args = append(args, string(f.State))
		where += fmt.Sprintf(" AND state = $%d", len(args))
	}

	querier := txcontext.Resolve(ctx, s.db)

	var total int
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dda_records WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := querier.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM dda_records
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate records: %w", err)
	}
	return records, total, nil
}

func (s *Store) CountActiveByTemplate(ctx context.Context, templateID string) (int, error) {
	var count int
	err := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dda_records
		WHERE template_id = $1 AND state = ANY($2)
	`, templateID, pq.Array(activeStates)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active records: %w", err)
	}
	return count, nil
}

func (s *Store) AppendRevision(ctx context.Context, rev *models.Revision) error {
	_, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO dda_record_revisions (
			id, record_id, previous_state, new_state, event, snapshot, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rev.ID,
		rev.RecordID,
		string(rev.PreviousState),
		string(rev.NewState),
		rev.Event,
		[]byte(rev.Snapshot),
		rev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record revision: %w", err)
	}
	return nil
}

func (s *Store) ListRevisions(ctx context.Context, recordID uuid.UUID) ([]*models.Revision, error) {
	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, `
		SELECT id, record_id, previous_state, new_state, event, snapshot, created_at
		FROM dda_record_revisions
		WHERE record_id = $1
		ORDER BY created_at ASC, id ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query record revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*models.Revision
	for rows.Next() {
		var (
			rev      models.Revision
			previous string
			next     string
			snapshot []byte
		)
		err := rows.Scan(&rev.ID, &rev.RecordID, &previous, &next, &rev.Event, &snapshot, &rev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan record revision: %w", err)
		}
		rev.PreviousState = models.State(previous)
		rev.NewState = models.State(next)
		rev.Snapshot = snapshot
		revisions = append(revisions, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record revisions: %w", err)
	}
	return revisions, nil
}

func marshalPayloads(r *models.Record) ([]byte, []byte, error) {
	var agreement []byte
	if r.DataAgreement != nil {
		b, err := json.Marshal(r.DataAgreement)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal data agreement: %w", err)
		}
		agreement = b
	}
	return agreement, []byte(r.Presentation), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		r            models.Record
		state        string
		agreement    []byte
		presentation []byte
	)
	err := row.Scan(
		&r.ID,
		&r.ConnectionID,
		&r.TemplateID,
		&r.TemplateVersion,
		&state,
		&r.Role,
		&r.ThreadID,
		&r.PresentationExchangeID,
		&agreement,
		&presentation,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	r.State = models.State(state)
	if len(agreement) > 0 {
		var body ddamodels.Body
		if err := json.Unmarshal(agreement, &body); err != nil {
			return nil, fmt.Errorf("unmarshal data agreement: %w", err)
		}
		r.DataAgreement = &body
	}
	r.Presentation = presentation
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
