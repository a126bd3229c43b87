package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "neighborly/pkg/domain"
)

func newOffer(t *testing.T) *Offer {
	t.Helper()
	o, err := NewOffer(id.NewOfferID(), id.NewItemID(), id.UserID(uuid.New()), " I have one ", time.Now())
	require.NoError(t, err)
	return o
}

func TestNewOffer(t *testing.T) {
	o := newOffer(t)
	assert.Equal(t, StatusActive, o.Status)
	assert.Equal(t, "I have one", o.Message)

	_, err := NewOffer(id.NewOfferID(), id.NewItemID(), id.UserID(uuid.New()), strings.Repeat("x", 1001), time.Now())
	assert.Error(t, err)

	_, err = NewOffer(id.NewOfferID(), id.ItemID{}, id.UserID(uuid.New()), "", time.Now())
	assert.Error(t, err)
}

func TestAcceptHappensOnce(t *testing.T) {
	o := newOffer(t)
	now := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)

	changed, ok := o.Accept(now)
	assert.True(t, changed)
	assert.True(t, ok)
	require.NotNil(t, o.AcceptedAt)

	changed, ok = o.Accept(now.Add(time.Hour))
	assert.False(t, changed)
	assert.True(t, ok)
	assert.Equal(t, now, *o.AcceptedAt, "second accept keeps the first timestamp")

	changed, ok = o.Remove(now)
	assert.False(t, changed)
	assert.False(t, ok, "accepted offers cannot be removed")
}

func TestRemovedOffersCannotBeAccepted(t *testing.T) {
	o := newOffer(t)
	changed, ok := o.Remove(time.Now())
	assert.True(t, changed)
	assert.True(t, ok)

	_, ok = o.Accept(time.Now())
	assert.False(t, ok)
	assert.Equal(t, StatusRemoved, o.Status)
}
