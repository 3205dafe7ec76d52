package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
)

// Reviewer is the human side of the proposal queue. Decisions are
// serialized so one action is never applied twice.
type Reviewer struct {
	mu      sync.Mutex
	queue   *proposal.Queue
	mutator *Mutator
	events  *eventlog.Log
	logger  *zap.SugaredLogger
}

func NewReviewer(queue *proposal.Queue, mutator *Mutator, events *eventlog.Log, log *zap.SugaredLogger) *Reviewer {
	if events == nil {
		events = eventlog.NewLog(nil, log)
	}
	return &Reviewer{
		queue:   queue,
		mutator: mutator,
		events:  events,
		logger:  logger.OrNop(log).Named("reviewer"),
	}
}

// Apply performs the action's mutation and marks it applied. It returns
// the action and whether anything changed; an action that is no longer
// proposed is returned unchanged. If the mutation fails the action stays
// proposed.
func (r *Reviewer) Apply(ctx context.Context, id, userID string) (proposal.Action, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.queue.Get(id)
	if !ok {
		return proposal.Action{}, false, errors.NewNotFoundError("proposal %s", id)
	}
	if a.Status != proposal.StatusProposed {
		return a, false, nil
	}

	if err := r.mutator.Apply(ctx, UserActor(userID), a.CandidateID, a.JobID, a.Payload, a.Title); err != nil {
		return a, false, errors.WithDetailf(err, "proposal: %s", id)
	}

	updated, changed, err := r.queue.MarkStatus(ctx, id, proposal.StatusApplied)
	if err != nil || !changed {
		return updated, changed, err
	}
	r.record(ctx, updated, eventlog.TypeActionApplied, userID)
	return updated, true, nil
}

// Dismiss marks the action dismissed without mutating anything.
func (r *Reviewer) Dismiss(ctx context.Context, id, userID string) (proposal.Action, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.queue.Get(id); !ok {
		return proposal.Action{}, false, errors.NewNotFoundError("proposal %s", id)
	}
	updated, changed, err := r.queue.MarkStatus(ctx, id, proposal.StatusDismissed)
	if err != nil || !changed {
		return updated, changed, err
	}
	r.record(ctx, updated, eventlog.TypeActionDismissed, userID)
	return updated, true, nil
}

func (r *Reviewer) record(ctx context.Context, a proposal.Action, typ eventlog.Type, userID string) {
	r.events.LogEvent(ctx, eventlog.Event{
		CandidateID: a.CandidateID,
		JobID:       a.JobID,
		Type:        typ,
		ActorType:   eventlog.ActorUser,
		ActorID:     userID,
		Summary:     a.Title,
		Metadata: map[string]any{
			"proposal_id": a.ID,
			"agent":       string(a.Agent),
			"kind":        string(a.Payload.Kind()),
		},
	})
	r.logger.Infow("Proposal reviewed",
		logger.FieldProposalID, a.ID,
		logger.FieldStatus, a.Status,
		logger.FieldActorID, userID)
}
