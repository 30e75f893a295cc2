package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dataspace/pkg/domain-errors"
)

func validBody() Body {
	return Body{
		Language:    "en",
		Purpose:     "Issue membership cards",
		LawfulBasis: "consent",
		DataController: DataController{
			Name: "Acme",
			URL:  "https://acme.example",
		},
		DataSharingRestrictions: DataSharingRestrictions{
			PolicyURL:           "https://acme.example/policy",
			Jurisdiction:        "SE",
			DataRetentionPeriod: 365,
			StorageLocation:     "EU",
		},
		PersonalData: []PersonalDatum{
			{AttributeName: "name"},
			{AttributeName: "email"},
		},
	}
}

func TestBodyValidate(t *testing.T) {
	t.Run("valid body passes", func(t *testing.T) {
		require.NoError(t, validBody().Validate())
	})

	t.Run("missing purpose rejected", func(t *testing.T) {
		b := validBody()
		b.Purpose = ""
		err := b.Validate()
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("missing retention period rejected", func(t *testing.T) {
		b := validBody()
		b.DataSharingRestrictions.DataRetentionPeriod = 0
		err := b.Validate()
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})
}

func TestBodyRevisionID(t *testing.T) {
	t.Run("stable across identical bodies", func(t *testing.T) {
		a, err := validBody().RevisionID()
		require.NoError(t, err)
		b, err := validBody().RevisionID()
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("changes when content changes", func(t *testing.T) {
		a, err := validBody().RevisionID()
		require.NoError(t, err)

		changed := validBody()
		changed.Purpose = "Something else"
		b, err := changed.RevisionID()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestNewTemplate(t *testing.T) {
	now := time.Now()
	tpl, err := NewTemplate(uuid.New(), validBody(), []string{"membership"}, now)
	require.NoError(t, err)

	assert.Equal(t, 1, tpl.Version)
	assert.Equal(t, StatusDraft, tpl.Status)
	assert.True(t, tpl.IsLatestVersion)
	assert.NotEmpty(t, tpl.TemplateID)
	assert.NotEmpty(t, tpl.RevisionID)
}

func TestNewVersion(t *testing.T) {
	now := time.Now()
	v1, err := NewTemplate(uuid.New(), validBody(), nil, now)
	require.NoError(t, err)

	t.Run("increments version within lineage", func(t *testing.T) {
		body := validBody()
		body.Purpose = "Updated purpose"
		v2, err := v1.NewVersion(body, now.Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, v1.TemplateID, v2.TemplateID)
		assert.Equal(t, 2, v2.Version)
		assert.NotEqual(t, v1.RevisionID, v2.RevisionID)
	})

	t.Run("rejects superseding a non-latest version", func(t *testing.T) {
		stale := *v1
		stale.IsLatestVersion = false
		_, err := stale.NewVersion(validBody(), now)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))
	})
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusDraft, StatusPublished, true},
		{StatusDraft, StatusArchived, true},
		{StatusPublished, StatusDraft, true},
		{StatusPublished, StatusArchived, true},
		{StatusArchived, StatusDraft, false},
		{StatusArchived, StatusPublished, false},
		{StatusDraft, StatusDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
