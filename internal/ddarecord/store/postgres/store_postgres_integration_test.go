//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	ddamodels "dataspace/internal/dda/models"
	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/store"
	"dataspace/internal/ddarecord/store/postgres"
	"dataspace/internal/reconcile/ledger"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
	txcontext "dataspace/pkg/platform/tx"
	"dataspace/pkg/testutil/containers"
)

type PostgresRecordSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
}

func TestPostgresRecordSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRecordSuite))
}

func (s *PostgresRecordSuite) SetupSuite() {
	s.postgres = containers.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresRecordSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx,
		"dda_record_revisions", "dda_records", "event_ledger"))
}

func (s *PostgresRecordSuite) newRecord(connectionID string) *models.Record {
	tmpl, err := ddamodels.NewTemplate(uuid.New(), ddamodels.Body{
		Purpose:     "research",
		LawfulBasis: "consent",
		DataController: ddamodels.DataController{
			Name: "Acme Research",
		},
		DataSharingRestrictions: ddamodels.DataSharingRestrictions{
			PolicyURL:           "https://acme.example/policy",
			Jurisdiction:        "EU",
			DataRetentionPeriod: 365,
		},
	}, nil, time.Now().UTC())
	s.Require().NoError(err)
	return models.NewRecord(connectionID, tmpl, time.Now().UTC())
}

func (s *PostgresRecordSuite) TestOneActivePerConnectionAndTemplate() {
	r1 := s.newRecord("conn-1")
	s.Require().NoError(s.store.Create(s.ctx, r1))

	// Same connection and lineage while the first is still active.
	dup := s.newRecord("conn-1")
	dup.TemplateID = r1.TemplateID
	s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)

	// A terminal record frees the slot.
	s.Require().NoError(r1.Reject(time.Now().UTC()))
	s.Require().NoError(s.store.Update(s.ctx, r1))
	s.Require().NoError(s.store.Create(s.ctx, dup))
}

func (s *PostgresRecordSuite) TestCorrelationLookups() {
	r := s.newRecord("conn-1")
	s.Require().NoError(s.store.Create(s.ctx, r))
	s.Require().NoError(r.ApplyRequestSent("t1", "pex-1", "verifier", time.Now().UTC()))
	s.Require().NoError(s.store.Update(s.ctx, r))

	byThread, err := s.store.FindByThreadID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(r.ID, byThread.ID)

	byPex, err := s.store.FindByPresentationExchangeID(s.ctx, "pex-1")
	s.Require().NoError(err)
	s.Equal(r.ID, byPex.ID)

	_, err = s.store.FindByThreadID(s.ctx, "t-unknown")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRecordSuite) TestListPagination() {
	for i := 0; i < 25; i++ {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(uuid.NewString())))
	}

	records, total, err := s.store.List(s.ctx, store.Filter{}, pagination.New(20, 10))
	s.Require().NoError(err)
	s.Equal(25, total)
	s.Len(records, 5)
}

// TestTransitionAtomicity drives the record update, revision append and
// ledger advance through one transaction and rolls it back, verifying none of
// the three writes survives alone.
func (s *PostgresRecordSuite) TestTransitionAtomicity() {
	r := s.newRecord("conn-1")
	s.Require().NoError(s.store.Create(s.ctx, r))
	led := ledger.NewPostgres(s.postgres.DB)

	tx, err := s.postgres.DB.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(s.ctx, tx)

	previous := r.State
	s.Require().NoError(r.ApplyRequestSent("t1", "pex-1", "verifier", time.Now().UTC()))
	s.Require().NoError(s.store.Update(txCtx, r))
	rev, err := models.NewRevision(r, previous, "presentation_request_sent", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendRevision(txCtx, rev))
	s.Require().NoError(led.Advance(txCtx, "pp:t1", 1))

	s.Require().NoError(tx.Rollback())

	got, err := s.store.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePending, got.State)

	revisions, err := s.store.ListRevisions(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Empty(revisions)

	last, err := led.Last(s.ctx, "pp:t1")
	s.Require().NoError(err)
	s.Zero(last)
}
