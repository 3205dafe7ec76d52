package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/pipeline"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/retry"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// change is one mutation a decision asks for.
type change struct {
	Payload proposal.Payload
	Title   string
}

// decision is what an agent computed for one pair. No changes means the
// pair stays as it is.
type decision struct {
	Changes  []change
	Summary  string
	Evidence []proposal.Evidence
	Metadata map[string]any
}

// pair is the unit of work: one candidate against one posting.
type pair struct {
	Candidate talent.Candidate
	Posting   talent.Posting
	Stage     talent.Stage
}

// process runs one pair through the loop under step. It returns an error
// only when ctx is done; every other failure is escalated to a human and
// reported as outcomeEscalated.
func (b *base) process(ctx context.Context, p pair, step string, compute func(ctx context.Context) (decision, error)) (outcome, error) {
	log := b.logger.With(
		logger.FieldCandidateID, p.Candidate.ID,
		logger.FieldPostingID, p.Posting.ID,
		logger.FieldStep, step)

	if !b.deps.Marks.BeginStep(ctx, marks.Begin{CandidateID: p.Candidate.ID, JobID: p.Posting.ID, Step: step}) {
		log.Debugw("Step already claimed, skipping")
		return outcomeSkipped, nil
	}

	policy := b.deps.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Infow("Retrying step",
			logger.FieldAttempt, attempt,
			logger.FieldDelay, delay,
			logger.FieldError, err)
	}
	d, err := retry.Do(ctx, policy, compute)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		b.escalate(ctx, p, step, err)
		return outcomeEscalated, nil
	}

	mode := b.Policy().Mode
	result := outcomeUnchanged
	if len(d.Changes) > 0 {
		if mode == talent.ModeAutoWrite {
			result = outcomeApplied
			err = b.applyChanges(ctx, p, d)
		} else {
			result = outcomeProposed
			err = b.proposeChanges(ctx, p, d)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			b.escalate(ctx, p, step, err)
			return outcomeEscalated, nil
		}
	} else {
		b.deps.Events.LogEvent(ctx, eventlog.Event{
			CandidateID: p.Candidate.ID,
			JobID:       p.Posting.ID,
			Type:        eventlog.TypeAgentDecision,
			ActorType:   eventlog.ActorAgent,
			ActorID:     string(b.agent),
			Summary:     d.Summary,
			Metadata:    d.Metadata,
		})
	}

	meta := map[string]any{"outcome": string(result), "mode": string(mode)}
	for k, v := range d.Metadata {
		meta[k] = v
	}
	b.deps.Marks.CompleteStep(ctx, marks.Complete{CandidateID: p.Candidate.ID, JobID: p.Posting.ID, Step: step, Metadata: meta})

	log.Infow("Step finished", logger.FieldStatus, result, logger.FieldMode, mode)
	return result, nil
}

func (b *base) applyChanges(ctx context.Context, p pair, d decision) error {
	actor := pipeline.AgentActor(b.agent)
	for _, c := range d.Changes {
		summary := d.Summary
		if summary == "" {
			summary = c.Title
		}
		if err := b.deps.Mutator.Apply(ctx, actor, p.Candidate.ID, p.Posting.ID, c.Payload, summary); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) proposeChanges(ctx context.Context, p pair, d decision) error {
	for _, c := range d.Changes {
		a, err := b.deps.Queue.Add(ctx, proposal.Action{
			Agent:       b.agent,
			Title:       c.Title,
			Description: d.Summary,
			CandidateID: p.Candidate.ID,
			JobID:       p.Posting.ID,
			Payload:     c.Payload,
			Evidence:    d.Evidence,
		})
		if err != nil {
			return err
		}
		b.deps.Events.LogEvent(ctx, eventlog.Event{
			CandidateID: p.Candidate.ID,
			JobID:       p.Posting.ID,
			Type:        eventlog.TypeActionProposed,
			ActorType:   eventlog.ActorAgent,
			ActorID:     string(b.agent),
			Summary:     c.Title,
			Metadata:    map[string]any{"proposal_id": a.ID, "kind": string(c.Payload.Kind())},
		})
	}
	return nil
}

// escalate hands a pair to a human. The mark stays started, so the step is
// retried automatically once it goes stale.
func (b *base) escalate(ctx context.Context, p pair, step string, err error) {
	sev := bus.SeverityError
	if retry.IsExhausted(err) {
		sev = bus.SeverityWarning
	}

	b.logger.Warnw("Step requires human confirmation",
		logger.FieldCandidateID, p.Candidate.ID,
		logger.FieldPostingID, p.Posting.ID,
		logger.FieldStep, step,
		logger.FieldRetryable, sev == bus.SeverityWarning,
		logger.FieldError, err)

	b.deps.Events.LogEvent(ctx, eventlog.Event{
		CandidateID: p.Candidate.ID,
		JobID:       p.Posting.ID,
		Type:        eventlog.TypeHumanConfirmationRequired,
		ActorType:   eventlog.ActorAgent,
		ActorID:     string(b.agent),
		Summary:     fmt.Sprintf("%s requires human confirmation", step),
		Metadata:    map[string]any{"step": step, "error": err.Error(), "details": errors.GetAllDetails(err)},
	})

	b.deps.Bus.Notify(sev, fmt.Sprintf("%s agent", b.agent),
		fmt.Sprintf("%s for %s requires human confirmation: %v", step, p.Candidate.Name, err),
		map[string]any{"candidate_id": p.Candidate.ID, "job_id": p.Posting.ID, "step": step})
}
