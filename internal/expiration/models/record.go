package models

import (
	"strings"
	"time"

	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Record pairs an item with the instant after which the sweep must hide it.
// There is at most one record per (Kind, ItemID).
type Record struct {
	ID        id.RecordID     `json:"id"`
	Kind      itemmodels.Kind `json:"kind"`
	ItemID    id.ItemID       `json:"item_id"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsExpired reports whether the record's target is at or before now.
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Target is the user-facing form of an expiration instant: a calendar date and an
// optional wall-clock time, both interpreted in UTC.
type Target struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Instant parses the target. A missing time means midnight.
func (t Target) Instant() (time.Time, error) {
	date := strings.TrimSpace(t.Date)
	if date == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "expiration date is required")
	}
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeValidation, "expiration date must be YYYY-MM-DD")
	}
	clock := strings.TrimSpace(t.Time)
	if clock == "" {
		return day, nil
	}
	tod, err := time.ParseInLocation(TimeLayout, clock, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeValidation, "expiration time must be HH:MM")
	}
	return day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute), nil
}

// TargetOf formats an instant back into its date and time parts.
func TargetOf(at time.Time) Target {
	at = at.UTC()
	return Target{Date: at.Format(DateLayout), Time: at.Format(TimeLayout)}
}
