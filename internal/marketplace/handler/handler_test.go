package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	claimmodels "neighborly/internal/claim/models"
	claimstore "neighborly/internal/claim/store"
	expstore "neighborly/internal/expiration/store"
	itemmodels "neighborly/internal/item/models"
	itemstore "neighborly/internal/item/store"
	jwttoken "neighborly/internal/jwt_token"
	"neighborly/internal/marketplace/service"
	offermodels "neighborly/internal/offer/models"
	offerstore "neighborly/internal/offer/store"
	tagstore "neighborly/internal/tag/store"
	id "neighborly/pkg/domain"
	"neighborly/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router    http.Handler
	jwt       *jwttoken.JWTService
	author    id.UserID
	neighbour id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := service.New(service.Stores{
		Listings:           itemstore.NewInMemory(itemmodels.KindListing),
		Requests:           itemstore.NewInMemory(itemmodels.KindRequest),
		ListingExpirations: expstore.NewInMemory(itemmodels.KindListing),
		RequestExpirations: expstore.NewInMemory(itemmodels.KindRequest),
		Offers:             offerstore.NewInMemory(),
		Claims:             claimstore.NewInMemory(),
		Tags:               tagstore.NewInMemory(),
	}, service.WithLogger(logger))
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("test-signing-key", "neighborly")
	r := chi.NewRouter()
	New(svc, jwttoken.NewJWTServiceAdapter(s.jwt), logger).Register(r)
	s.router = r

	s.author = id.UserID(uuid.New())
	s.neighbour = id.UserID(uuid.New())
}

func (s *HandlerSuite) do(user id.UserID, method, path string, body any) *httptest.ResponseRecorder {
	token, err := s.jwt.GenerateAccessToken(user, time.Hour)
	s.Require().NoError(err)
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	return testutil.DoRequest(s.router, testutil.WithBearer(req, token))
}

func (s *HandlerSuite) createItem(kind itemmodels.Kind) *service.CreateItemResult {
	rr := s.do(s.author, http.MethodPost, "/"+kind.Plural(), CreateItemRequest{
		Title:     "Ladder",
		Quantity:  2,
		ExpiresOn: "2099-01-01",
		ExpiresAt: "09:30",
		Tags:      []string{"Tools", "tools", "garden"},
	})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[service.CreateItemResult](s.T(), rr)
}

func (s *HandlerSuite) TestAuthentication() {
	s.Run("missing bearer token is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/listings"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("token signed with another key is rejected", func() {
		other := jwttoken.NewJWTService("other-key", "neighborly")
		token, err := other.GenerateAccessToken(s.author, time.Hour)
		s.Require().NoError(err)
		req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/listings"), token)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *HandlerSuite) TestCreate() {
	s.Run("creates item with expiration and deduplicated tags", func() {
		created := s.createItem(itemmodels.KindListing)
		s.Equal(s.author, created.Item.OwnerID)
		s.Equal(time.Date(2099, 1, 1, 9, 30, 0, 0, time.UTC), created.Expiration.ExpiresAt.UTC())
		s.ElementsMatch([]string{"tools", "garden"}, created.Tags)
	})

	s.Run("missing expiration date is a validation error", func() {
		rr := s.do(s.author, http.MethodPost, "/requests", CreateItemRequest{Title: "Drill"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown body fields are rejected", func() {
		rr := s.do(s.author, http.MethodPost, "/requests", map[string]any{
			"title": "Drill", "expires_on": "2099-01-01", "hidden": true,
		})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestReadAndEdit() {
	created := s.createItem(itemmodels.KindListing)
	path := "/listings/" + created.Item.ID.String()

	s.Run("get returns the item with its expiration", func() {
		rr := s.do(s.neighbour, http.MethodGet, path, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		view := testutil.UnmarshalResponse[service.ItemView](s.T(), rr)
		s.Equal(created.Item.ID, view.Item.ID)
		s.Require().NotNil(view.Expiration)
	})

	s.Run("malformed id is a bad request", func() {
		rr := s.do(s.author, http.MethodGet, "/listings/not-a-uuid", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("only the author may edit", func() {
		rr := s.do(s.neighbour, http.MethodPatch, path, map[string]any{"title": "Mine now"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("patch cannot carry hidden", func() {
		rr := s.do(s.author, http.MethodPatch, path, map[string]any{"hidden": false})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("author edits title", func() {
		rr := s.do(s.author, http.MethodPatch, path, map[string]any{"title": "Long ladder"})
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("Long ladder", testutil.UnmarshalResponse[itemmodels.Item](s.T(), rr).Title)
	})

	s.Run("author moves the expiration", func() {
		rr := s.do(s.author, http.MethodPut, path+"/expiration", SetExpirationRequest{ExpiresOn: "2099-02-01"})
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("hidden items disappear for other users", func() {
		rr := s.do(s.author, http.MethodPost, path+"/hide", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		rr = s.do(s.neighbour, http.MethodGet, path, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

		rr = s.do(s.neighbour, http.MethodGet, "/listings?author="+s.author.String(), nil)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		listed := testutil.UnmarshalResponse[map[string][]service.ItemView](s.T(), rr)
		s.Empty((*listed)["listings"])

		rr = s.do(s.author, http.MethodGet, "/listings?author=me", nil)
		listed = testutil.UnmarshalResponse[map[string][]service.ItemView](s.T(), rr)
		s.Len((*listed)["listings"], 1)
	})
}

func (s *HandlerSuite) TestOfferAcceptance() {
	t := s.T()
	created := s.createItem(itemmodels.KindRequest)
	requestPath := "/requests/" + created.Item.ID.String()

	testutil.Given(t, "a request with two offers", func(t *testing.T) {
		first := s.do(s.neighbour, http.MethodPost, requestPath+"/offers", MakeOfferRequest{Message: "I have one"})
		testutil.AssertStatus(t, first, http.StatusCreated)
		second := s.do(s.neighbour, http.MethodPost, requestPath+"/offers", nil)
		testutil.AssertStatus(t, second, http.StatusCreated)
		accepted := testutil.UnmarshalResponse[offermodels.Offer](t, first)
		sibling := testutil.UnmarshalResponse[offermodels.Offer](t, second)

		testutil.When(t, "someone other than the author accepts", func(t *testing.T) {
			rr := s.do(s.neighbour, http.MethodPost, "/offers/"+accepted.ID.String()+"/accept", nil)
			testutil.Then(t, "it is forbidden", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
			})
		})

		testutil.When(t, "the author accepts", func(t *testing.T) {
			rr := s.do(s.author, http.MethodPost, "/offers/"+accepted.ID.String()+"/accept", nil)
			testutil.Then(t, "the offer is accepted and the request hidden", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.Equal(t, offermodels.StatusAccepted, testutil.UnmarshalResponse[offermodels.Offer](t, rr).Status)

				view := s.do(s.author, http.MethodGet, requestPath, nil)
				assert.True(t, testutil.UnmarshalResponse[service.ItemView](t, view).Item.Hidden)
			})
			testutil.Then(t, "the sibling offer stays active", func(t *testing.T) {
				rr := s.do(s.author, http.MethodGet, requestPath+"/offers", nil)
				listed := testutil.UnmarshalResponse[map[string][]offermodels.Offer](t, rr)
				for _, o := range (*listed)["offers"] {
					if o.ID == sibling.ID {
						assert.Equal(t, offermodels.StatusActive, o.Status)
					}
				}
			})
		})
	})
}

func (s *HandlerSuite) TestDelete() {
	created := s.createItem(itemmodels.KindRequest)
	path := "/requests/" + created.Item.ID.String()
	rr := s.do(s.neighbour, http.MethodPost, path+"/offers", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	s.Run("non-author cannot delete", func() {
		rr := s.do(s.neighbour, http.MethodDelete, path, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("author deletes, then the item is gone", func() {
		rr := s.do(s.author, http.MethodDelete, path, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		rr = s.do(s.author, http.MethodDelete, path, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestClaims() {
	created := s.createItem(itemmodels.KindListing)
	path := "/listings/" + created.Item.ID.String() + "/claims"

	s.Run("claim defaults to one unit", func() {
		rr := s.do(s.neighbour, http.MethodPost, path, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		s.Equal(1, testutil.UnmarshalResponse[claimmodels.Claim](s.T(), rr).Quantity)
	})

	s.Run("claiming more than remains conflicts", func() {
		rr := s.do(s.neighbour, http.MethodPost, path, ClaimRequest{Quantity: 5})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("author lists claims", func() {
		rr := s.do(s.author, http.MethodGet, path, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		listed := testutil.UnmarshalResponse[map[string][]claimmodels.Claim](s.T(), rr)
		s.Len((*listed)["claims"], 1)
	})
}
