// Package sweep hides expired items and reclaims stale expiration records on a fixed
// interval. Each tick walks every item kind in turn; a failure on one record is logged
// and counted without stopping the rest of the batch.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	"neighborly/internal/platform/metrics"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// DefaultInterval is how often the sweep runs unless configured otherwise.
const DefaultInterval = 5 * time.Minute

// Items is the capability the sweep needs from an item store. Listings and Requests
// both satisfy it.
type Items interface {
	FindByID(ctx context.Context, itemID id.ItemID) (*itemmodels.Item, error)
	SetHidden(ctx context.Context, itemID id.ItemID) error
}

// Records is the slice of the expiration store the sweep drives.
type Records interface {
	ListExpired(ctx context.Context, now time.Time) ([]*expmodels.Record, error)
	Delete(ctx context.Context, recordID id.RecordID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Target binds one item kind to its stores.
type Target struct {
	Kind    itemmodels.Kind
	Items   Items
	Records Records
}

// Outcome classifies what happened to one expired record.
type Outcome string

const (
	OutcomeHidden        Outcome = "hidden"
	OutcomeAlreadyHidden Outcome = "already_hidden"
	OutcomeStale         Outcome = "stale"
	OutcomeFailed        Outcome = "failed"
)

// KindResult counts outcomes for one kind within a tick.
type KindResult struct {
	Kind     itemmodels.Kind       `json:"kind"`
	Outcomes map[Outcome]int       `json:"outcomes"`
	Error    string                `json:"error,omitempty"`
	Failures map[id.RecordID]error `json:"-"`
}

// Result summarizes a tick. Skipped is set when another sweeper held the lock.
type Result struct {
	Now     time.Time     `json:"now"`
	Skipped bool          `json:"skipped"`
	Kinds   []*KindResult `json:"kinds"`
}

// Total sums an outcome across kinds.
func (r *Result) Total(o Outcome) int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Outcomes[o]
	}
	return n
}

// Scheduler runs the sweep.
type Scheduler struct {
	targets        []Target
	interval       time.Duration
	locker         Locker
	clock          func() time.Time
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	flight         singleflight.Group
}

type Option func(*Scheduler)

// WithInterval sets the tick interval. It is read once; changing it requires a restart.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithLocker makes ticks contend for a lock shared with other processes.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Scheduler) {
		s.auditPublisher = publisher
	}
}

// New builds a scheduler over one target per item kind.
func New(targets []Target, opts ...Option) (*Scheduler, error) {
	if len(targets) == 0 {
		return nil, errors.New("sweep needs at least one target")
	}
	seen := make(map[itemmodels.Kind]bool, len(targets))
	for _, t := range targets {
		if !t.Kind.IsValid() || t.Items == nil || t.Records == nil {
			return nil, fmt.Errorf("incomplete sweep target for kind %q", t.Kind)
		}
		if seen[t.Kind] {
			return nil, fmt.Errorf("duplicate sweep target for kind %q", t.Kind)
		}
		seen[t.Kind] = true
	}

	s := &Scheduler{
		targets:  targets,
		interval: DefaultInterval,
		locker:   NoopLocker{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("neighborly/sweep")
	}
	return s, nil
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks every interval until ctx is cancelled. A tick that is already running
// finishes its batch before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "expiration sweep started", "interval", s.interval.String())
	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "expiration sweep tick failed", "error", err)
			}
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiration sweep stopped")
			return nil
		}
	}
}

// RunOnce performs one tick at the scheduler's current time.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	return s.RunAt(ctx, s.clock())
}

// RunAt performs one tick as of now. Overlapping calls in this process share the
// in-flight tick: a caller that joins it gets that tick's Result, swept at the first
// caller's instant, and its own now is ignored. Any record that came due in between is
// picked up by the next tick. The batch ignores cancellation of ctx once started.
func (s *Scheduler) RunAt(ctx context.Context, now time.Time) (*Result, error) {
	v, err, shared := s.flight.Do("sweep", func() (any, error) {
		return s.tick(context.WithoutCancel(ctx), now.UTC())
	})
	if shared {
		s.metrics.IncrementSweepSkipped("overlap")
	}
	result, _ := v.(*Result)
	return result, err
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "sweep.tick", trace.WithAttributes(attribute.String("sweep.now", now.Format(time.RFC3339))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	result := &Result{Now: now}
	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return result, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		s.metrics.IncrementSweepSkipped("locked")
		s.logger.InfoContext(ctx, "expiration sweep skipped, another sweeper holds the lock")
		result.Skipped = true
		return result, nil
	}
	defer release()
	defer s.metrics.ObserveSweep(time.Now())

	ctx = requestcontext.WithTime(ctx, now)
	var errs []error
	for _, target := range s.targets {
		kr := s.sweepKind(ctx, target, now)
		result.Kinds = append(result.Kinds, kr)
		if kr.Error != "" {
			errs = append(errs, fmt.Errorf("%s: %s", target.Kind, kr.Error))
		}
	}

	s.logger.InfoContext(ctx, "expiration sweep finished",
		"hidden", result.Total(OutcomeHidden),
		"already_hidden", result.Total(OutcomeAlreadyHidden),
		"stale", result.Total(OutcomeStale),
		"failed", result.Total(OutcomeFailed),
	)
	return result, errors.Join(errs...)
}

func (s *Scheduler) sweepKind(ctx context.Context, target Target, now time.Time) *KindResult {
	kr := &KindResult{
		Kind:     target.Kind,
		Outcomes: make(map[Outcome]int),
		Failures: make(map[id.RecordID]error),
	}
	records, err := target.Records.ListExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list expired records", "kind", target.Kind.String(), "error", err)
		kr.Error = err.Error()
		return kr
	}

	for _, record := range records {
		outcome, err := s.process(ctx, target, record)
		if err != nil {
			kr.Failures[record.ID] = err
			s.logger.WarnContext(ctx, "failed to sweep expiration record",
				"kind", target.Kind.String(),
				"record_id", record.ID.String(),
				"item_id", record.ItemID.String(),
				"error", err,
			)
		}
		kr.Outcomes[outcome]++
	}
	for outcome, n := range kr.Outcomes {
		s.metrics.AddSweepRecords(target.Kind.String(), string(outcome), n)
	}
	return kr
}

// process settles one expired record. A panic in a store is contained to the record.
func (s *Scheduler) process(ctx context.Context, target Target, record *expmodels.Record) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeFailed, fmt.Errorf("panic: %v", r)
		}
	}()

	item, err := target.Items.FindByID(ctx, record.ItemID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		outcome = OutcomeStale
	case err != nil:
		return OutcomeFailed, err
	case item.Hidden:
		outcome = OutcomeAlreadyHidden
	default:
		if err := target.Items.SetHidden(ctx, item.ID); err != nil {
			return OutcomeFailed, err
		}
		outcome = OutcomeHidden
		s.logAudit(ctx, audit.EventItemExpired, target.Kind, item.ID.String(), "expired_at", record.ExpiresAt)
	}

	// The record may already be gone if another sweeper or a deletion got there first.
	if err := target.Records.Delete(ctx, record.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return OutcomeFailed, err
	}
	if outcome != OutcomeHidden {
		s.logAudit(ctx, audit.EventRecordReclaimed, target.Kind, record.ItemID.String(), "outcome", string(outcome))
	}
	return outcome, nil
}

func (s *Scheduler) logAudit(ctx context.Context, event audit.AuditEvent, kind itemmodels.Kind, subject string, attributes ...any) {
	args := append(attributes, "event", string(event), "log_type", "audit", "kind", kind.String(), "subject", subject)
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		Action:    string(event),
		Kind:      kind.String(),
		Subject:   subject,
		Reason:    "expired",
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event", "event", string(event), "error", err)
	}
}
