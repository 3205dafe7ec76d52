// Package pipeline performs the mutations described by proposal payloads,
// either directly on behalf of an auto-writing agent or when a human
// applies a queued proposal.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// Actor is who a mutation is attributed to in the event log.
type Actor struct {
	Type eventlog.ActorType
	ID   string
}

// AgentActor attributes a mutation to an agent.
func AgentActor(agent talent.AgentType) Actor {
	return Actor{Type: eventlog.ActorAgent, ID: string(agent)}
}

// UserActor attributes a mutation to a human reviewer.
func UserActor(userID string) Actor {
	return Actor{Type: eventlog.ActorUser, ID: userID}
}

// StageMove is the Data of a bus.KindStageMoved event.
type StageMove struct {
	CandidateID string       `json:"candidate_id"`
	JobID       string       `json:"job_id"`
	From        talent.Stage `json:"from,omitempty"`
	To          talent.Stage `json:"to"`
	Actor       string       `json:"actor"`
}

// Mutator writes payloads to the talent store and records them.
type Mutator struct {
	store  talent.Store
	events *eventlog.Log
	bus    *bus.Bus
	logger *zap.SugaredLogger
}

// NewMutator creates a mutator. events and b may be nil.
func NewMutator(store talent.Store, events *eventlog.Log, b *bus.Bus, log *zap.SugaredLogger) *Mutator {
	if events == nil {
		events = eventlog.NewLog(nil, log)
	}
	return &Mutator{
		store:  store,
		events: events,
		bus:    b,
		logger: logger.OrNop(log).Named("pipeline"),
	}
}

// Apply performs payload for the (candidateID, jobID) pair.
func (m *Mutator) Apply(ctx context.Context, actor Actor, candidateID, jobID string, payload proposal.Payload, summary string) error {
	if err := proposal.Validate(payload); err != nil {
		return err
	}

	switch p := payload.(type) {
	case proposal.MoveToStage:
		return m.moveToStage(ctx, actor, candidateID, jobID, p, summary)
	case proposal.UpdateVerifiedSkills:
		return m.updateVerifiedSkills(ctx, actor, candidateID, jobID, p, summary)
	case proposal.ActivateDraft:
		return m.activateDraft(ctx, actor, candidateID, jobID, p, summary)
	default:
		return errors.AssertionFailedf("unhandled payload type %T", payload)
	}
}

func (m *Mutator) moveToStage(ctx context.Context, actor Actor, candidateID, jobID string, p proposal.MoveToStage, summary string) error {
	if candidateID == "" || jobID == "" {
		return errors.NewInvalidRequestError("move_to_stage needs a candidate and a job")
	}
	prev, err := m.store.SetStage(ctx, candidateID, jobID, p.To)
	if err != nil {
		return errors.Wrapf(err, "failed to move %s to %s", candidateID, p.To)
	}
	if prev == p.To {
		m.logger.Debugw("Stage unchanged",
			logger.FieldCandidateID, candidateID,
			logger.FieldJobID, jobID,
			logger.FieldStage, p.To)
		return nil
	}

	if summary == "" {
		summary = fmt.Sprintf("Moved to %s", p.To)
	}
	m.events.LogEvent(ctx, eventlog.Event{
		CandidateID: candidateID,
		JobID:       jobID,
		Type:        eventlog.TypeStageMoved,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		FromStage:   prev,
		ToStage:     p.To,
		Summary:     summary,
	})
	m.bus.Publish(bus.Event{
		Kind: bus.KindStageMoved,
		Data: StageMove{CandidateID: candidateID, JobID: jobID, From: prev, To: p.To, Actor: actor.ID},
	})
	m.logger.Infow("Stage moved",
		logger.FieldCandidateID, candidateID,
		logger.FieldJobID, jobID,
		"from", prev,
		"to", p.To,
		logger.FieldActorID, actor.ID)
	return nil
}

func (m *Mutator) updateVerifiedSkills(ctx context.Context, actor Actor, candidateID, jobID string, p proposal.UpdateVerifiedSkills, summary string) error {
	if candidateID == "" {
		return errors.NewInvalidRequestError("update_verified_skills needs a candidate")
	}
	if err := m.store.SetVerifiedSkills(ctx, candidateID, p.Skills); err != nil {
		return errors.Wrapf(err, "failed to update verified skills of %s", candidateID)
	}

	if summary == "" {
		summary = "Verified skills: " + strings.Join(p.Skills, ", ")
	}
	m.events.LogEvent(ctx, eventlog.Event{
		CandidateID: candidateID,
		JobID:       jobID,
		Type:        eventlog.TypeSkillsVerified,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		Summary:     summary,
		Metadata:    map[string]any{"skills": p.Skills},
	})
	return nil
}

func (m *Mutator) activateDraft(ctx context.Context, actor Actor, candidateID, jobID string, p proposal.ActivateDraft, summary string) error {
	d, err := m.store.ActivateDraft(ctx, p.DraftID)
	if err != nil {
		return errors.Wrapf(err, "failed to activate draft %s", p.DraftID)
	}
	if candidateID != "" && d.CandidateID != candidateID {
		m.logger.Warnw("Activated draft belongs to another candidate",
			"draft_id", d.ID,
			logger.FieldCandidateID, candidateID,
			"draft_candidate", d.CandidateID)
	}
	jobID = d.JobID

	if summary == "" {
		summary = "Interview kit activated"
	}
	m.events.LogEvent(ctx, eventlog.Event{
		CandidateID: d.CandidateID,
		JobID:       jobID,
		Type:        eventlog.TypeDraftActivated,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		Summary:     summary,
		Metadata:    map[string]any{"draft_id": d.ID},
	})
	return nil
}
