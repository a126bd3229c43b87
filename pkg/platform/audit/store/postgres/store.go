package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "neighborly/pkg/domain"
	audit "neighborly/pkg/platform/audit"
)

// Store implements audit.Store over the audit_events table. It is the durable sink
// when Postgres is configured and no Kafka brokers are.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. Category is always derived from the action so the
// category map stays the source of truth.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var userID *uuid.UUID
	if !event.UserID.IsNil() {
		u := uuid.UUID(event.UserID)
		userID = &u
	}

	query := `
		INSERT INTO audit_events (id, category, action, user_id, kind, subject, reason, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(audit.AuditEvent(event.Action).Category()),
		event.Action,
		userID,
		event.Kind,
		event.Subject,
		event.Reason,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns a user's events oldest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT category, action, user_id, kind, subject, reason, request_id, created_at
		FROM audit_events
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list audit events by user: %w", err)
	}
	return s.scanEvents(rows)
}

// ListBySubject returns every event recorded against one item or offer.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `
		SELECT category, action, user_id, kind, subject, reason, request_id, created_at
		FROM audit_events
		WHERE subject = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events by subject: %w", err)
	}
	return s.scanEvents(rows)
}

// ListRecent returns the most recent events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, action, user_id, kind, subject, reason, request_id, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit events: %w", err)
	}
	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			userID   uuid.NullUUID
		)
		if err := rows.Scan(&category, &event.Action, &userID, &event.Kind, &event.Subject,
			&event.Reason, &event.RequestID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if userID.Valid {
			event.UserID = id.UserID(userID.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
