// Package postgres persists template versions in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dataspace/internal/dda/models"
	"dataspace/internal/dda/store"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
	txcontext "dataspace/pkg/platform/tx"
)

// Store implements store.Store on PostgreSQL. Version monotonicity is
// enforced inside a transaction: retiring the previous latest row and
// inserting the new one either both happen or neither does.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const templateColumns = `
	id, template_id, version, status, organisation_id,
	body, revision_id, is_latest_version, tags, created_at, updated_at
`

func (s *Store) Append(ctx context.Context, t *models.Template) error {
	run := func(ctx context.Context, tx *sql.Tx) error {
		if t.Version > 1 {
			res, err := tx.ExecContext(ctx, `
				UPDATE dda_templates
				SET is_latest_version = FALSE
				WHERE template_id = $1 AND is_latest_version AND version = $2
			`, t.TemplateID, t.Version-1)
			if err != nil {
				return fmt.Errorf("retire previous version: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("retire previous version: %w", err)
			}
			if affected == 0 {
				return sentinel.ErrConflict
			}
		}

		bodyBytes, err := json.Marshal(t.Body)
		if err != nil {
			return fmt.Errorf("marshal template body: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dda_templates (`+templateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $10)
		`,
			t.ID,
			t.TemplateID,
			t.Version,
			string(t.Status),
			t.OrganisationID,
			bodyBytes,
			t.RevisionID,
			pq.Array(t.Tags),
			t.CreatedAt,
			t.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert template version: %w", err)
		}
		return nil
	}

	if tx, ok := txcontext.From(ctx); ok {
		return run(ctx, tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template append: %w", err)
	}
	if err := run(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template append: %w", err)
	}
	return nil
}

func (s *Store) GetLatest(ctx context.Context, templateID string) (*models.Template, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM dda_templates
		WHERE template_id = $1 AND is_latest_version
	`, templateID)
	return scanTemplate(row)
}

func (s *Store) GetVersion(ctx context.Context, templateID string, version int) (*models.Template, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM dda_templates
		WHERE template_id = $1 AND version = $2
	`, templateID, version)
	return scanTemplate(row)
}

func (s *Store) ListVersions(ctx context.Context, templateID string) ([]*models.Template, error) {
	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM dda_templates
		WHERE template_id = $1
		ORDER BY version DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("query template versions: %w", err)
	}
	defer rows.Close()

	templates, err := scanTemplates(rows)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return templates, nil
}

func (s *Store) ListLatest(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Template, int, error) {
	where := `is_latest_version`
	args := []any{}
	if f.OrganisationID != uuid.Nil {
		args = append(args, f.OrganisationID)
		where += fmt.Sprintf(" AND organisation_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	} else {
		args = append(args, string(models.StatusArchived))
		where += fmt.Sprintf(" AND status <> $%d", len(args))
	}

	querier := txcontext.Resolve(ctx, s.db)

	var total int
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dda_templates WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count latest templates: %w", err)
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := querier.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM dda_templates
		WHERE `+where+`
		ORDER BY created_at DESC, template_id DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query latest templates: %w", err)
	}
	defer rows.Close()

	templates, err := scanTemplates(rows)
	if err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

func (s *Store) UpdateStatus(ctx context.Context, templateID string, status models.Status, now time.Time) error {
	res, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE dda_templates
		SET status = $1, updated_at = $2
		WHERE template_id = $3 AND is_latest_version
	`, string(status), now, templateID)
	if err != nil {
		return fmt.Errorf("update template status: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) UpdateTags(ctx context.Context, templateID string, tags []string, now time.Time) error {
	res, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE dda_templates
		SET tags = $1, updated_at = $2
		WHERE template_id = $3 AND is_latest_version
	`, pq.Array(tags), now, templateID)
	if err != nil {
		return fmt.Errorf("update template tags: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var (
		t         models.Template
		status    string
		bodyBytes []byte
		tags      pq.StringArray
	)
	err := row.Scan(
		&t.ID,
		&t.TemplateID,
		&t.Version,
		&status,
		&t.OrganisationID,
		&bodyBytes,
		&t.RevisionID,
		&t.IsLatestVersion,
		&tags,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	t.Status = models.Status(status)
	t.Tags = []string(tags)
	if err := json.Unmarshal(bodyBytes, &t.Body); err != nil {
		return nil, fmt.Errorf("unmarshal template body: %w", err)
	}
	return &t, nil
}

func scanTemplates(rows *sql.Rows) ([]*models.Template, error) {
	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
