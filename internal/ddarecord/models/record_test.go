package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	ddamodels "dataspace/internal/dda/models"
)

func testTemplate(t *testing.T) *ddamodels.Template {
	t.Helper()
	body := ddamodels.Body{
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
	}
	tmpl, err := ddamodels.NewTemplate(uuid.New(), body, nil, time.Now())
	require.NoError(t, err)
	return tmpl
}

func TestRecordHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tmpl := testTemplate(t)
	r := NewRecord("conn-1", tmpl, now)
	require.Equal(t, StatePending, r.State)
	require.Equal(t, tmpl.TemplateID, r.TemplateID)
	require.Equal(t, tmpl.Version, r.TemplateVersion)

	require.NoError(t, r.ApplyRequestSent("thread-1", "pex-1", "verifier", now.Add(time.Minute)))
	require.Equal(t, StateRequested, r.State)
	require.Equal(t, "thread-1", r.ThreadID)

	payload := json.RawMessage(`{"presentation":"raw"}`)
	require.NoError(t, r.ApplyPresentationReceived(payload, now.Add(2*time.Minute)))
	require.Equal(t, StatePresented, r.State)
	require.JSONEq(t, string(payload), string(r.Presentation))

	require.NoError(t, r.ApplyVerified(tmpl.Body, now.Add(3*time.Minute)))
	require.Equal(t, StateVerified, r.State)
	require.NotNil(t, r.DataAgreement)
	require.Equal(t, tmpl.Body.Purpose, r.DataAgreement.Purpose)
}

func TestSnapshotIsACopy(t *testing.T) {
	now := time.Now()
	tmpl := testTemplate(t)
	r := NewRecord("conn-1", tmpl, now)
	require.NoError(t, r.ApplyRequestSent("t", "p", "verifier", now))
	require.NoError(t, r.ApplyPresentationReceived(nil, now))
	require.NoError(t, r.ApplyVerified(tmpl.Body, now))

	tmpl.Body.Purpose = "mutated later"
	require.Equal(t, "research", r.DataAgreement.Purpose)
}

func TestOutOfOrderTransitionsRejected(t *testing.T) {
	now := time.Now()
	r := NewRecord("conn-1", testTemplate(t), now)

	// verified before presentation_received
	require.Error(t, r.ApplyVerified(ddamodels.Body{}, now))
	require.Equal(t, StatePending, r.State)

	// presentation before request
	require.Error(t, r.ApplyPresentationReceived(nil, now))
	require.Equal(t, StatePending, r.State)

	// abandon only applies mid-exchange
	require.Error(t, r.ApplyAbandoned(now))
}

func TestTerminalStatesAreClosed(t *testing.T) {
	now := time.Now()
	r := NewRecord("conn-1", testTemplate(t), now)
	require.NoError(t, r.Reject(now))
	require.True(t, r.State.Terminal())
	require.False(t, r.State.Active())

	require.Error(t, r.ApplyRequestSent("t", "p", "verifier", now))
	require.Error(t, r.Supersede(now))
	require.Equal(t, StateRejected, r.State)
}

func TestTransitionTableIsClosed(t *testing.T) {
	all := []State{StatePending, StateRequested, StatePresented, StateVerified,
		StateRejected, StateAbandoned, StateSuperseded}
	for _, from := range all {
		for _, to := range all {
			if from.Terminal() {
				require.False(t, from.CanTransitionTo(to),
					"terminal state %s must not transition to %s", from, to)
			}
			if from.CanTransitionTo(to) {
				require.True(t, to.Valid())
				require.NotEqual(t, from, to)
			}
		}
	}
}

func TestNewRevisionSnapshotsRecord(t *testing.T) {
	now := time.Now()
	r := NewRecord("conn-1", testTemplate(t), now)
	previous := r.State
	require.NoError(t, r.ApplyRequestSent("thread-1", "pex-1", "verifier", now))

	rev, err := NewRevision(r, previous, "request_sent", now)
	require.NoError(t, err)
	require.Equal(t, r.ID, rev.RecordID)
	require.Equal(t, StatePending, rev.PreviousState)
	require.Equal(t, StateRequested, rev.NewState)

	var snap Record
	require.NoError(t, json.Unmarshal(rev.Snapshot, &snap))
	require.Equal(t, StateRequested, snap.State)
	require.Equal(t, "thread-1", snap.ThreadID)
}
