package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
)

func TestParseKind(t *testing.T) {
	for input, want := range map[string]Kind{
		"listing":   KindListing,
		"listings":  KindListing,
		"Requests":  KindRequest,
		" request ": KindRequest,
	} {
		got, err := ParseKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("reviews")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewItem(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	owner := id.UserID(uuid.New())

	t.Run("defaults quantity and trims fields", func(t *testing.T) {
		item, err := NewItem(id.NewItemID(), KindListing, owner, Fields{Title: "  Ladder  "}, now)
		require.NoError(t, err)
		assert.Equal(t, "Ladder", item.Title)
		assert.Equal(t, 1, item.Quantity)
		assert.False(t, item.Hidden)
		assert.Equal(t, now, item.CreatedAt)
	})

	t.Run("rejects missing title", func(t *testing.T) {
		_, err := NewItem(id.NewItemID(), KindRequest, owner, Fields{}, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects nil owner", func(t *testing.T) {
		_, err := NewItem(id.NewItemID(), KindRequest, id.UserID{}, Fields{Title: "Drill"}, now)
		require.Error(t, err)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := NewItem(id.NewItemID(), KindListing, owner, Fields{Title: "Drill", Quantity: -2}, now)
		require.Error(t, err)
	})
}

func TestApplyPatch(t *testing.T) {
	now := time.Now()
	item, err := NewItem(id.NewItemID(), KindListing, id.UserID(uuid.New()), Fields{Title: "Chairs", Quantity: 4}, now)
	require.NoError(t, err)

	qty := 6
	title := "Folding chairs"
	require.NoError(t, item.Apply(Patch{Title: &title, Quantity: &qty}, now.Add(time.Minute)))
	assert.Equal(t, "Folding chairs", item.Title)
	assert.Equal(t, 6, item.Quantity)

	zero := 0
	err = item.Apply(Patch{Quantity: &zero}, now)
	require.Error(t, err)
	assert.Equal(t, 6, item.Quantity, "failed patch must not mutate")
}

func TestHideIsMonotonic(t *testing.T) {
	item := &Item{}
	assert.True(t, item.Hide(time.Now()))
	assert.False(t, item.Hide(time.Now()))
	assert.True(t, item.Hidden)
}

func TestCanReserve(t *testing.T) {
	item := &Item{Quantity: 3}
	assert.NoError(t, item.CanReserve(3))
	assert.True(t, dErrors.HasCode(item.CanReserve(4), dErrors.CodeConflict))
	assert.True(t, dErrors.HasCode(item.CanReserve(0), dErrors.CodeValidation))
}
