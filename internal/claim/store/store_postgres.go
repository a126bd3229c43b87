package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"neighborly/internal/claim/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, listingID id.ItemID, claimant id.UserID, qty int) (*models.Claim, error) {
	claim, err := models.NewClaim(id.NewClaimID(), listingID, claimant, qty, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO claims (id, listing_id, claimant_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(claim.ID), uuid.UUID(claim.ListingID), uuid.UUID(claim.ClaimantID), claim.Quantity, claim.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	return claim, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, listing_id, claimant_id, quantity, created_at FROM claims WHERE id = $1
	`, uuid.UUID(claimID))
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return claim, nil
}

func (s *PostgresStore) ListByListing(ctx context.Context, listingID id.ItemID) ([]*models.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, claimant_id, quantity, created_at FROM claims
		WHERE listing_id = $1 ORDER BY created_at
	`, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*models.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		claimID, listingID, claimant uuid.UUID
		claim                        models.Claim
	)
	if err := row.Scan(&claimID, &listingID, &claimant, &claim.Quantity, &claim.CreatedAt); err != nil {
		return nil, err
	}
	claim.ID = id.ClaimID(claimID)
	claim.ListingID = id.ItemID(listingID)
	claim.ClaimantID = id.UserID(claimant)
	return &claim, nil
}
