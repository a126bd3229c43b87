package handler

import (
	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
)

// CreateItemRequest is the body of POST /listings and POST /requests. ExpiresOn is a
// YYYY-MM-DD date and ExpiresAt an optional HH:MM time, both UTC.
type CreateItemRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Quantity    int      `json:"quantity"`
	ExpiresOn   string   `json:"expires_on"`
	ExpiresAt   string   `json:"expires_at"`
	Tags        []string `json:"tags"`
}

func (r CreateItemRequest) fields() itemmodels.Fields {
	return itemmodels.Fields{Title: r.Title, Description: r.Description, Quantity: r.Quantity}
}

func (r CreateItemRequest) target() expmodels.Target {
	return expmodels.Target{Date: r.ExpiresOn, Time: r.ExpiresAt}
}

// SetExpirationRequest is the body of PUT /{kind}/{id}/expiration.
type SetExpirationRequest struct {
	ExpiresOn string `json:"expires_on"`
	ExpiresAt string `json:"expires_at"`
}

type MakeOfferRequest struct {
	Message string `json:"message"`
}

type ClaimRequest struct {
	Quantity int `json:"quantity"`
}
