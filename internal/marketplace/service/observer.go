package service

import (
	"context"

	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/saga"
)

const (
	outcomeSucceeded          = "succeeded"
	outcomeCompensated        = "compensated"
	outcomeCompensationFailed = "compensation_failed"
	outcomeFailed             = "failed"
)

// runObserver is built per saga run so lifecycle callbacks can reach the request
// context and the record being worked on.
type runObserver struct {
	ctx     context.Context
	svc     *Service
	kind    itemmodels.Kind
	user    id.UserID
	subject func() string
	cascade bool
}

var _ saga.Observer = (*runObserver)(nil)

func (o *runObserver) StepSkipped(name, step string, err error) {
	o.svc.metrics.StepSkipped(name, step, err)
	if !o.cascade {
		return
	}
	o.svc.metrics.IncrementCascadeCleanupFailure(o.kind.String(), step)
	o.svc.logAudit(o.ctx, auditEntry{
		event:   audit.EventCascadeCleanupFailed,
		user:    o.user,
		kind:    o.kind,
		subject: o.subject(),
		reason:  step + ": " + err.Error(),
	}, "saga", name)
}

func (o *runObserver) Compensated(name, step string) {
	o.svc.metrics.Compensated(name, step)
	o.svc.logAudit(o.ctx, auditEntry{
		event:   audit.EventSagaCompensated,
		user:    o.user,
		kind:    o.kind,
		subject: o.subject(),
		reason:  step,
	}, "saga", name)
}

func (o *runObserver) CompensationFailed(name, step string, err error) {
	o.svc.metrics.CompensationFailed(name, step, err)
	o.svc.logAudit(o.ctx, auditEntry{
		event:   audit.EventCompensationFailed,
		user:    o.user,
		kind:    o.kind,
		subject: o.subject(),
		reason:  step + ": " + err.Error(),
	}, "saga", name)
}

func (s *Service) newSaga(ctx context.Context, name string, obs *runObserver) *saga.Saga {
	obs.ctx = ctx
	obs.svc = s
	if obs.subject == nil {
		obs.subject = func() string { return "" }
	}
	return saga.New(name, saga.WithLogger(s.logger), saga.WithObserver(obs))
}

func (s *Service) recordSagaOutcome(name string, err error) {
	outcome := outcomeSucceeded
	if err != nil {
		outcome = outcomeFailed
		if se, ok := saga.AsError(err); ok {
			outcome = outcomeCompensated
			if !se.Compensated() {
				outcome = outcomeCompensationFailed
			}
		}
	}
	s.metrics.IncrementSagaRun(name, outcome)
}

func sagaStep(name string, action, compensate func(ctx context.Context) error) saga.Step {
	return saga.Step{Name: name, Action: action, Compensate: compensate}
}

func bestEffortStep(name string, action func(ctx context.Context) error) saga.Step {
	return saga.Step{Name: name, Action: action, BestEffort: true}
}
