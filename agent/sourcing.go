package agent

import (
	"context"
	"fmt"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// SourcingStep is bumped when the sourcing decision changes meaning.
var SourcingStep = marks.StepKey("sourcing", "stage", string(talent.StageSourced), "v1")

// Sourcing places unplaced candidates that score at or above the threshold
// into the sourced stage of an open posting.
type Sourcing struct {
	base
}

func NewSourcing(deps Deps, p Policy) *Sourcing {
	a := &Sourcing{}
	a.init(talent.AgentSourcing, deps, p)
	return a
}

func (a *Sourcing) Run(ctx context.Context) (schedule.Output, error) {
	snap, err := a.deps.Talent.Snapshot(ctx)
	if err != nil {
		return schedule.Output{}, errors.Wrap(err, "sourcing: failed to snapshot pipeline")
	}

	t := tally{}
	for _, posting := range snap.OpenPostings() {
		for _, cand := range snap.Candidates {
			if _, placed := snap.StageOf(cand.ID, posting.ID); placed {
				continue
			}
			p := pair{Candidate: cand, Posting: posting}
			o, err := a.process(ctx, p, SourcingStep, func(ctx context.Context) (decision, error) {
				return a.decide(ctx, p)
			})
			if err != nil {
				return schedule.Output{}, err
			}
			t.add(o)
		}
	}
	return a.finish(t), nil
}

func (a *Sourcing) decide(ctx context.Context, p pair) (decision, error) {
	assessment, err := a.deps.Scorer.Score(ctx, p.Candidate, p.Posting)
	if err != nil {
		return decision{}, err
	}

	threshold := a.Policy().Threshold
	d := decision{
		Summary:  fmt.Sprintf("Fit %.2f for %s: %s", assessment.Score, p.Posting.Title, assessment.Rationale),
		Evidence: assessmentEvidence(assessment),
		Metadata: map[string]any{"score": assessment.Score, "threshold": threshold},
	}
	if assessment.Score >= threshold {
		d.Changes = []change{{
			Payload: proposal.MoveToStage{To: talent.StageSourced},
			Title:   fmt.Sprintf("Source %s for %s", p.Candidate.Name, p.Posting.Title),
		}}
	}
	return d, nil
}
