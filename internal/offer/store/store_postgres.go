package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"neighborly/internal/offer/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// PostgresStore persists offers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const offerColumns = `id, request_id, offeror_id, message, status, created_at, updated_at, accepted_at`

func (s *PostgresStore) Create(ctx context.Context, requestID id.ItemID, offeror id.UserID, message string) (*models.Offer, error) {
	offer, err := models.NewOffer(id.NewOfferID(), requestID, offeror, message, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
	`,
		uuid.UUID(offer.ID),
		uuid.UUID(offer.RequestID),
		uuid.UUID(offer.OfferorID),
		offer.Message,
		string(offer.Status),
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return offer, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, offerID id.OfferID) (*models.Offer, error) {
	offer, err := scanOffer(s.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, uuid.UUID(offerID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", offerID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find offer: %w", err)
	}
	return offer, nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.ItemID) ([]*models.Offer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE request_id = $1 ORDER BY created_at`, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]*models.Offer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return offers, nil
}

// Accept moves an active offer to accepted. The status guard in the UPDATE makes the
// transition happen at most once even under concurrent accepts.
func (s *PostgresStore) Accept(ctx context.Context, offerID id.OfferID) (*models.Offer, error) {
	return s.transition(ctx, offerID, models.StatusActive, models.StatusAccepted, `accepted_at = $4,`)
}

func (s *PostgresStore) Withdraw(ctx context.Context, offerID id.OfferID) (*models.Offer, error) {
	return s.transition(ctx, offerID, models.StatusActive, models.StatusRemoved, "")
}

func (s *PostgresStore) transition(ctx context.Context, offerID id.OfferID, from, to models.Status, extra string) (*models.Offer, error) {
	now := requestcontext.Now(ctx)
	query := `
		UPDATE offers SET status = $3, ` + extra + ` updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + offerColumns
	offer, err := scanOffer(s.db.QueryRowContext(ctx, query, uuid.UUID(offerID), string(from), string(to), now))
	if err == nil {
		return offer, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s offer: %w", to, err)
	}

	current, err := s.FindByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}
	return nil, fmt.Errorf("move %s offer to %s: %w", current.Status, to, sentinel.ErrInvalidState)
}

// DeleteAllForRequest removes every offer referencing requestID.
func (s *PostgresStore) DeleteAllForRequest(ctx context.Context, requestID id.ItemID) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offers WHERE request_id = $1`, uuid.UUID(requestID))
	if err != nil {
		return 0, fmt.Errorf("delete offers for request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// CountActiveByRequests returns the number of active offers per request in one round trip.
func (s *PostgresStore) CountActiveByRequests(ctx context.Context, requestIDs []id.ItemID) (map[id.ItemID]int, error) {
	counts := make(map[id.ItemID]int, len(requestIDs))
	if len(requestIDs) == 0 {
		return counts, nil
	}
	ids := make([]string, 0, len(requestIDs))
	for _, requestID := range requestIDs {
		ids = append(ids, requestID.String())
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, count(*) FROM offers
		WHERE request_id = ANY($1::uuid[]) AND status = $2
		GROUP BY request_id
	`, pq.Array(ids), string(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("count active offers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			requestID uuid.UUID
			n         int
		)
		if err := rows.Scan(&requestID, &n); err != nil {
			return nil, fmt.Errorf("scan offer count: %w", err)
		}
		counts[id.ItemID(requestID)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	var (
		offerID, requestID, offeror uuid.UUID
		status                      string
		acceptedAt                  sql.NullTime
		offer                       models.Offer
	)
	err := row.Scan(&offerID, &requestID, &offeror, &offer.Message, &status, &offer.CreatedAt, &offer.UpdatedAt, &acceptedAt)
	if err != nil {
		return nil, err
	}
	offer.ID = id.OfferID(offerID)
	offer.RequestID = id.ItemID(requestID)
	offer.OfferorID = id.UserID(offeror)
	offer.Status = models.Status(status)
	if acceptedAt.Valid {
		offer.AcceptedAt = &acceptedAt.Time
	}
	return &offer, nil
}
