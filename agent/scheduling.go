package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

var SchedulingStep = marks.StepKey("scheduling", "stage", string(talent.StageScheduling), "v1")

// Slot is an agreed interview time.
type Slot struct {
	Start    time.Time
	Duration time.Duration
}

// SlotNegotiator agrees an interview slot with a candidate.
type SlotNegotiator interface {
	Negotiate(ctx context.Context, c talent.Candidate, p talent.Posting) (Slot, error)
}

// SimulatedNegotiator stands in for a calendar integration: it waits Delay
// and offers the next weekday at 10:00 local time, at least a day out.
type SimulatedNegotiator struct {
	Delay time.Duration
	Now   func() time.Time
}

func (n SimulatedNegotiator) Negotiate(ctx context.Context, c talent.Candidate, p talent.Posting) (Slot, error) {
	if n.Delay > 0 {
		timer := time.NewTimer(n.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Slot{}, ctx.Err()
		case <-timer.C:
		}
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	day := now().AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, day.Location())
	return Slot{Start: start, Duration: 45 * time.Minute}, nil
}

// Scheduling books interviews for candidates in screening.
type Scheduling struct {
	base
	negotiator SlotNegotiator
}

func NewScheduling(deps Deps, p Policy, negotiator SlotNegotiator) *Scheduling {
	if negotiator == nil {
		negotiator = SimulatedNegotiator{}
	}
	a := &Scheduling{negotiator: negotiator}
	a.init(talent.AgentScheduling, deps, p)
	return a
}

func (a *Scheduling) Run(ctx context.Context) (schedule.Output, error) {
	snap, err := a.deps.Talent.Snapshot(ctx)
	if err != nil {
		return schedule.Output{}, errors.Wrap(err, "scheduling: failed to snapshot pipeline")
	}

	t := tally{}
	for _, posting := range snap.OpenPostings() {
		for _, placement := range snap.InStage(posting.ID, talent.StageScreening) {
			cand, ok := snap.Candidate(placement.CandidateID)
			if !ok {
				continue
			}
			p := pair{Candidate: cand, Posting: posting, Stage: placement.Stage}
			o, err := a.process(ctx, p, SchedulingStep, func(ctx context.Context) (decision, error) {
				slot, err := a.negotiator.Negotiate(ctx, p.Candidate, p.Posting)
				if err != nil {
					return decision{}, err
				}
				when := slot.Start.Format("Mon 2 Jan 15:04")
				return decision{
					Changes: []change{{
						Payload: proposal.MoveToStage{From: p.Stage, To: talent.StageScheduling},
						Title:   fmt.Sprintf("Schedule %s for %s on %s", p.Candidate.Name, p.Posting.Title, when),
					}},
					Summary:  "Interview slot agreed for " + when,
					Evidence: []proposal.Evidence{{Label: "slot", Value: when}},
					Metadata: map[string]any{"slot": slot.Start.Format(time.RFC3339), "duration_min": int(slot.Duration.Minutes())},
				}, nil
			})
			if err != nil {
				return schedule.Output{}, err
			}
			t.add(o)
		}
	}
	return a.finish(t), nil
}
