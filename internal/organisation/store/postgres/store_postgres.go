// Package postgres persists organisations in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dataspace/internal/organisation/models"
	"dataspace/internal/organisation/store"
	"dataspace/pkg/platform/sentinel"
	txcontext "dataspace/pkg/platform/tx"
)

const organisationColumns = `
	id, name, description, sector, location, policy_url,
	logo_url, cover_image_url, open_api_url, access_point_endpoint,
	verification_pex_id, verification_state, verified,
	created_at, updated_at`

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *models.Organisation) error {
	_, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO organisations (`+organisationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		o.ID,
		o.Name,
		o.Description,
		o.Sector,
		o.Location,
		o.PolicyURL,
		o.LogoURL,
		o.CoverImageURL,
		o.OpenAPIURL,
		o.AccessPointEndpoint,
		o.Verification.PresentationExchangeID,
		o.Verification.State,
		o.Verification.Verified,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organisation: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Organisation, error) {
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+organisationColumns+`
		FROM organisations
		WHERE id = $1
	`, id)
	return scanOrganisation(row)
}

func (s *Store) Update(ctx context.Context, o *models.Organisation) error {
	res, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE organisations SET
			name = $2, description = $3, sector = $4, location = $5,
			policy_url = $6, logo_url = $7, cover_image_url = $8,
			open_api_url = $9, access_point_endpoint = $10,
			verification_pex_id = $11, verification_state = $12,
			verified = $13, updated_at = $14
		WHERE id = $1
	`,
		o.ID,
		o.Name,
		o.Description,
		o.Sector,
		o.Location,
		o.PolicyURL,
		o.LogoURL,
		o.CoverImageURL,
		o.OpenAPIURL,
		o.AccessPointEndpoint,
		o.Verification.PresentationExchangeID,
		o.Verification.State,
		o.Verification.Verified,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update organisation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update organisation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindByVerificationExchange(ctx context.Context, presentationExchangeID string) (*models.Organisation, error) {
	if presentationExchangeID == "" {
		return nil, sentinel.ErrNotFound
	}
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+organisationColumns+`
		FROM organisations
		WHERE verification_pex_id = $1
	`, presentationExchangeID)
	return scanOrganisation(row)
}

func scanOrganisation(row *sql.Row) (*models.Organisation, error) {
	var o models.Organisation
	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Description,
		&o.Sector,
		&o.Location,
		&o.PolicyURL,
		&o.LogoURL,
		&o.CoverImageURL,
		&o.OpenAPIURL,
		&o.AccessPointEndpoint,
		&o.Verification.PresentationExchangeID,
		&o.Verification.State,
		&o.Verification.Verified,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan organisation: %w", err)
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
