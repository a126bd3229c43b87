package service

import (
	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
)

// CreateItemCommand carries everything createWithExpiration needs. Expiration is the
// user-supplied date and optional time, interpreted in UTC.
type CreateItemCommand struct {
	Kind       itemmodels.Kind
	Owner      id.UserID
	Fields     itemmodels.Fields
	Expiration expmodels.Target
	Tags       []string
}

// CreateItemResult is returned only when both the item and its expiration record exist.
// Tags holds the labels actually associated; it is empty when tagging was skipped.
type CreateItemResult struct {
	Item       *itemmodels.Item  `json:"item"`
	Expiration *expmodels.Record `json:"expiration"`
	Tags       []string          `json:"tags"`
}

// ItemView is an item joined with its satellite records for display.
type ItemView struct {
	Item         *itemmodels.Item  `json:"item"`
	Expiration   *expmodels.Record `json:"expiration,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	ActiveOffers *int              `json:"active_offers,omitempty"`
}
