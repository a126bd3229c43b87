//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "neighborly/pkg/domain"
	audit "neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/audit/store/postgres"
	"neighborly/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresAuditSuite) TestAppendAndList() {
	ctx := context.Background()
	user := id.UserID(uuid.New())
	subject := uuid.NewString()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base,
		Action:    string(audit.EventItemCreated),
		UserID:    user,
		Kind:      "listing",
		Subject:   subject,
		RequestID: "req-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base.Add(time.Minute),
		Action:    string(audit.EventItemExpired),
		Kind:      "listing",
		Subject:   subject,
		Reason:    "expiration reached",
	}))

	s.Run("by user skips system events", func() {
		events, err := s.store.ListByUser(ctx, user)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.CategoryActivity, events[0].Category)
		s.Equal("req-1", events[0].RequestID)
	})

	s.Run("by subject keeps order and derives category", func() {
		events, err := s.store.ListBySubject(ctx, subject)
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(string(audit.EventItemCreated), events[0].Action)
		s.Equal(audit.CategoryLifecycle, events[1].Category)
		s.True(events[1].UserID.IsNil())
	})

	s.Run("recent is newest first", func() {
		events, err := s.store.ListRecent(ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventItemExpired), events[0].Action)
	})
}
