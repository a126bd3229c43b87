// Package handler exposes the marketplace service over HTTP. It only parses input and
// maps errors; every rule lives in the service.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	claimmodels "neighborly/internal/claim/models"
	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	"neighborly/internal/marketplace/service"
	offermodels "neighborly/internal/offer/models"
	"neighborly/internal/platform/middleware"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/httputil"
	"neighborly/pkg/requestcontext"
)

// Service is the slice of the marketplace service the HTTP layer drives.
type Service interface {
	CreateWithExpiration(ctx context.Context, cmd service.CreateItemCommand) (*service.CreateItemResult, error)
	GetItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, viewer id.UserID) (*service.ItemView, error)
	ListByAuthor(ctx context.Context, kind itemmodels.Kind, author, viewer id.UserID) ([]*service.ItemView, error)
	EditItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID, patch itemmodels.Patch) (*itemmodels.Item, error)
	DeleteItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID) error
	HideItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID) error
	SetExpiration(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID, target expmodels.Target) (*expmodels.Record, error)
	MakeOffer(ctx context.Context, requestID id.ItemID, user id.UserID, message string) (*offermodels.Offer, error)
	ListOffers(ctx context.Context, requestID id.ItemID, user id.UserID) ([]*offermodels.Offer, error)
	AcceptOffer(ctx context.Context, offerID id.OfferID, user id.UserID) (*offermodels.Offer, error)
	WithdrawOffer(ctx context.Context, offerID id.OfferID, user id.UserID) (*offermodels.Offer, error)
	ClaimListing(ctx context.Context, listingID id.ItemID, user id.UserID, qty int) (*claimmodels.Claim, error)
	ListClaims(ctx context.Context, listingID id.ItemID, user id.UserID) ([]*claimmodels.Claim, error)
}

// Handler serves the authenticated marketplace API.
type Handler struct {
	service   Service
	validator middleware.TokenValidator
	logger    *slog.Logger
}

func New(svc Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, validator: validator, logger: logger}
}

// Register mounts the marketplace routes on r behind bearer authentication.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		for _, kind := range itemmodels.Kinds {
			r.Route("/"+kind.Plural(), func(r chi.Router) {
				r.Post("/", h.handleCreate(kind))
				r.Get("/", h.handleList(kind))
				r.Get("/{id}", h.handleGet(kind))
				r.Patch("/{id}", h.handleEdit(kind))
				r.Delete("/{id}", h.handleDelete(kind))
				r.Post("/{id}/hide", h.handleHide(kind))
				r.Put("/{id}/expiration", h.handleSetExpiration(kind))

				switch kind {
				case itemmodels.KindRequest:
					r.Post("/{id}/offers", h.handleMakeOffer)
					r.Get("/{id}/offers", h.handleListOffers)
				case itemmodels.KindListing:
					r.Post("/{id}/claims", h.handleClaim)
					r.Get("/{id}/claims", h.handleListClaims)
				}
			})
		}

		r.Post("/offers/{id}/accept", h.handleAcceptOffer)
		r.Post("/offers/{id}/withdraw", h.handleWithdrawOffer)
	})
}

func (h *Handler) handleCreate(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req CreateItemRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.fail(ctx, w, "create "+kind.String(), err)
			return
		}
		result, err := h.service.CreateWithExpiration(ctx, service.CreateItemCommand{
			Kind:       kind,
			Owner:      requestcontext.UserID(ctx),
			Fields:     req.fields(),
			Expiration: req.target(),
			Tags:       req.Tags,
		})
		if err != nil {
			h.fail(ctx, w, "create "+kind.String(), err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, result)
	}
}

// handleList supports ?author=me (the default) or ?author=<user id>.
func (h *Handler) handleList(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		author := requestcontext.UserID(ctx)
		if q := r.URL.Query().Get("author"); q != "" && q != "me" {
			parsed, err := id.ParseUserID(q)
			if err != nil {
				h.fail(ctx, w, "list "+kind.Plural(), err)
				return
			}
			author = parsed
		}
		views, err := h.service.ListByAuthor(ctx, kind, author, requestcontext.UserID(ctx))
		if err != nil {
			h.fail(ctx, w, "list "+kind.Plural(), err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{kind.Plural(): views})
	}
}

func (h *Handler) handleGet(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := id.ParseItemID(chi.URLParam(r, "id"))
		if err != nil {
			h.fail(ctx, w, "get "+kind.String(), err)
			return
		}
		view, err := h.service.GetItem(ctx, kind, itemID, requestcontext.UserID(ctx))
		if err != nil {
			h.fail(ctx, w, "get "+kind.String(), err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleEdit(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := id.ParseItemID(chi.URLParam(r, "id"))
		if err != nil {
			h.fail(ctx, w, "edit "+kind.String(), err)
			return
		}
		// Unknown fields, including "hidden", are rejected by the decoder.
		var patch itemmodels.Patch
		if err := httputil.DecodeJSON(r, &patch); err != nil {
			h.fail(ctx, w, "edit "+kind.String(), err)
			return
		}
		item, err := h.service.EditItem(ctx, kind, itemID, requestcontext.UserID(ctx), patch)
		if err != nil {
			h.fail(ctx, w, "edit "+kind.String(), err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, item)
	}
}

func (h *Handler) handleDelete(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := id.ParseItemID(chi.URLParam(r, "id"))
		if err != nil {
			h.fail(ctx, w, "delete "+kind.String(), err)
			return
		}
		if err := h.service.DeleteItem(ctx, kind, itemID, requestcontext.UserID(ctx)); err != nil {
			h.fail(ctx, w, "delete "+kind.String(), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleHide(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := id.ParseItemID(chi.URLParam(r, "id"))
		if err != nil {
			h.fail(ctx, w, "hide "+kind.String(), err)
			return
		}
		if err := h.service.HideItem(ctx, kind, itemID, requestcontext.UserID(ctx)); err != nil {
			h.fail(ctx, w, "hide "+kind.String(), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleSetExpiration(kind itemmodels.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := id.ParseItemID(chi.URLParam(r, "id"))
		if err != nil {
			h.fail(ctx, w, "set expiration", err)
			return
		}
		var req SetExpirationRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.fail(ctx, w, "set expiration", err)
			return
		}
		record, err := h.service.SetExpiration(ctx, kind, itemID, requestcontext.UserID(ctx),
			expmodels.Target{Date: req.ExpiresOn, Time: req.ExpiresAt})
		if err != nil {
			h.fail(ctx, w, "set expiration", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, record)
	}
}

func (h *Handler) handleMakeOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "make offer", err)
		return
	}
	var req MakeOfferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(ctx, w, "make offer", err)
		return
	}
	offer, err := h.service.MakeOffer(ctx, requestID, requestcontext.UserID(ctx), req.Message)
	if err != nil {
		h.fail(ctx, w, "make offer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, offer)
}

func (h *Handler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "list offers", err)
		return
	}
	offers, err := h.service.ListOffers(ctx, requestID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "list offers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (h *Handler) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.offerTransition(w, r, "accept offer", h.service.AcceptOffer)
}

func (h *Handler) handleWithdrawOffer(w http.ResponseWriter, r *http.Request) {
	h.offerTransition(w, r, "withdraw offer", h.service.WithdrawOffer)
}

func (h *Handler) offerTransition(w http.ResponseWriter, r *http.Request, op string,
	apply func(context.Context, id.OfferID, id.UserID) (*offermodels.Offer, error)) {
	ctx := r.Context()
	offerID, err := id.ParseOfferID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, op, err)
		return
	}
	offer, err := apply(ctx, offerID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, offer)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := id.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "claim listing", err)
		return
	}
	req := ClaimRequest{Quantity: 1}
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(ctx, w, "claim listing", err)
		return
	}
	claim, err := h.service.ClaimListing(ctx, listingID, requestcontext.UserID(ctx), req.Quantity)
	if err != nil {
		h.fail(ctx, w, "claim listing", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

func (h *Handler) handleListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := id.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "list claims", err)
		return
	}
	claims, err := h.service.ListClaims(ctx, listingID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "list claims", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

// fail logs at a level matching the error class and writes the error envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{"op", op, "code", string(code), "error", err, "request_id", requestcontext.RequestID(ctx)}
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
