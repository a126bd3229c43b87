package sentinel

import "errors"

// Sentinel errors for store-level facts. Concept stores return these (optionally
// wrapped) so the marketplace service can translate them into domain errors.
//
// These represent factual states about records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrNotAllowed: the acting user is not the record's author
// - ErrInvalidState: record is in the wrong lifecycle state for the operation
// - ErrConflict: a concurrent writer got there first
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrNotAllowed   = errors.New("not allowed")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
)
