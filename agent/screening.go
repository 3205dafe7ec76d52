package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/internal/util"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

var (
	ScreeningStageStep  = marks.StepKey("screening", "stage", "v1")
	ScreeningSkillsStep = marks.StepKey("screening", "skills", "v1")
)

// Screening scores sourced and new candidates. At or above the threshold
// they advance to screening, at or above the lower threshold they go to the
// long list, otherwise they are rejected. Matched skills are recorded as
// verified in a separate step.
type Screening struct {
	base
}

func NewScreening(deps Deps, p Policy) *Screening {
	a := &Screening{}
	a.init(talent.AgentScreening, deps, p)
	return a
}

func (a *Screening) Run(ctx context.Context) (schedule.Output, error) {
	snap, err := a.deps.Talent.Snapshot(ctx)
	if err != nil {
		return schedule.Output{}, errors.Wrap(err, "screening: failed to snapshot pipeline")
	}

	t := tally{}
	for _, posting := range snap.OpenPostings() {
		for _, placement := range snap.InStage(posting.ID, talent.StageSourced, talent.StageNew) {
			cand, ok := snap.Candidate(placement.CandidateID)
			if !ok {
				continue
			}
			p := pair{Candidate: cand, Posting: posting, Stage: placement.Stage}
			assess := a.memoScore(p)

			o, err := a.process(ctx, p, ScreeningSkillsStep, func(ctx context.Context) (decision, error) {
				assessment, err := assess(ctx)
				if err != nil {
					return decision{}, err
				}
				return skillsDecision(p, assessment), nil
			})
			if err != nil {
				return schedule.Output{}, err
			}
			t.add(o)

			o, err = a.process(ctx, p, ScreeningStageStep, func(ctx context.Context) (decision, error) {
				assessment, err := assess(ctx)
				if err != nil {
					return decision{}, err
				}
				return a.stageDecision(p, assessment), nil
			})
			if err != nil {
				return schedule.Output{}, err
			}
			t.add(o)
		}
	}
	return a.finish(t), nil
}

// memoScore scores the pair at most once successfully per run.
func (a *Screening) memoScore(p pair) func(ctx context.Context) (inference.Assessment, error) {
	var mu sync.Mutex
	var cached *inference.Assessment
	return func(ctx context.Context) (inference.Assessment, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != nil {
			return *cached, nil
		}
		assessment, err := a.deps.Scorer.Score(ctx, p.Candidate, p.Posting)
		if err != nil {
			return inference.Assessment{}, err
		}
		cached = &assessment
		return assessment, nil
	}
}

func (a *Screening) stageDecision(p pair, assessment inference.Assessment) decision {
	policy := a.Policy()

	target := talent.StageRejected
	switch {
	case assessment.Score >= policy.Threshold:
		target = talent.StageScreening
	case assessment.Score >= policy.LowerThreshold:
		target = talent.StageLongList
	}

	return decision{
		Changes: []change{{
			Payload: proposal.MoveToStage{From: p.Stage, To: target},
			Title:   fmt.Sprintf("Move %s to %s for %s", p.Candidate.Name, target, p.Posting.Title),
		}},
		Summary:  fmt.Sprintf("Screened at %.2f: %s", assessment.Score, assessment.Rationale),
		Evidence: assessmentEvidence(assessment),
		Metadata: map[string]any{
			"score":           assessment.Score,
			"threshold":       policy.Threshold,
			"lower_threshold": policy.LowerThreshold,
			"target":          string(target),
		},
	}
}

// skillsDecision proposes adding matched skills to the verified set.
func skillsDecision(p pair, assessment inference.Assessment) decision {
	verified := make([]string, 0, len(p.Candidate.VerifiedSkills)+len(assessment.MatchedSkills))
	seen := make(map[string]bool)
	for _, s := range p.Candidate.VerifiedSkills {
		if key := util.NormalizeToken(s); !seen[key] {
			seen[key] = true
			verified = append(verified, s)
		}
	}
	var added []string
	for _, s := range assessment.MatchedSkills {
		if key := util.NormalizeToken(s); key != "" && !seen[key] {
			seen[key] = true
			verified = append(verified, s)
			added = append(added, s)
		}
	}

	d := decision{
		Summary:  fmt.Sprintf("%d new verified skills", len(added)),
		Metadata: map[string]any{"added": len(added)},
	}
	if len(added) > 0 {
		d.Changes = []change{{
			Payload: proposal.UpdateVerifiedSkills{Skills: verified},
			Title:   fmt.Sprintf("Verify %d skills for %s", len(added), p.Candidate.Name),
		}}
		d.Evidence = []proposal.Evidence{{Label: "matched for " + p.Posting.Title, Value: strings.Join(added, ", ")}}
	}
	return d
}
