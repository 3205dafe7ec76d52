package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/internal/util"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

var InterviewStep = marks.StepKey("interview", "kit", "v1")

// Interview prepares an interview kit for scheduled candidates. The kit is
// saved as an inactive draft; activating it and moving the candidate to
// interview are the changes the agent writes or proposes.
type Interview struct {
	base
}

func NewInterview(deps Deps, p Policy) *Interview {
	a := &Interview{}
	a.init(talent.AgentInterview, deps, p)
	return a
}

// KitDraftID is the draft id for a pair's interview kit. It is stable, so a
// reclaimed step overwrites its earlier draft instead of adding another.
func KitDraftID(candidateID, jobID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sonar:"+InterviewStep+":"+candidateID+":"+jobID)).String()
}

func (a *Interview) Run(ctx context.Context) (schedule.Output, error) {
	snap, err := a.deps.Talent.Snapshot(ctx)
	if err != nil {
		return schedule.Output{}, errors.Wrap(err, "interview: failed to snapshot pipeline")
	}

	t := tally{}
	for _, posting := range snap.OpenPostings() {
		for _, placement := range snap.InStage(posting.ID, talent.StageScheduling) {
			cand, ok := snap.Candidate(placement.CandidateID)
			if !ok {
				continue
			}
			p := pair{Candidate: cand, Posting: posting, Stage: placement.Stage}
			o, err := a.process(ctx, p, InterviewStep, func(ctx context.Context) (decision, error) {
				return a.prepareKit(ctx, p)
			})
			if err != nil {
				return schedule.Output{}, err
			}
			t.add(o)
		}
	}
	return a.finish(t), nil
}

func (a *Interview) prepareKit(ctx context.Context, p pair) (decision, error) {
	kit, err := a.deps.Scorer.Summarize(ctx, p.Candidate, p.Posting)
	if err != nil {
		return decision{}, err
	}

	draft := talent.Draft{
		ID:          KitDraftID(p.Candidate.ID, p.Posting.ID),
		CandidateID: p.Candidate.ID,
		JobID:       p.Posting.ID,
		Content:     kit,
	}
	if err := a.deps.Talent.SaveDraft(ctx, draft); err != nil {
		return decision{}, errors.Wrap(err, "failed to save interview kit")
	}

	return decision{
		Changes: []change{
			{
				Payload: proposal.ActivateDraft{DraftID: draft.ID},
				Title:   fmt.Sprintf("Use interview kit for %s", p.Candidate.Name),
			},
			{
				Payload: proposal.MoveToStage{From: p.Stage, To: talent.StageInterview},
				Title:   fmt.Sprintf("Move %s to interview for %s", p.Candidate.Name, p.Posting.Title),
			},
		},
		Summary:  "Interview kit prepared",
		Evidence: []proposal.Evidence{{Label: "kit", Value: util.Truncate(kit, 280)}},
		Metadata: map[string]any{"draft_id": draft.ID},
	}, nil
}
