package agent

import (
	"context"
	"fmt"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// Funnel counts placements per stage for one posting.
type Funnel struct {
	JobID  string               `json:"job_id"`
	Title  string               `json:"title"`
	Stages map[talent.Stage]int `json:"stages"`
	Total  int                  `json:"total"`
}

// Analytics reports per-posting funnel counts. It never writes.
type Analytics struct {
	base
}

func NewAnalytics(deps Deps, p Policy) *Analytics {
	a := &Analytics{}
	a.init(talent.AgentAnalytics, deps, p)
	return a
}

func (a *Analytics) Run(ctx context.Context) (schedule.Output, error) {
	snap, err := a.deps.Talent.Snapshot(ctx)
	if err != nil {
		return schedule.Output{}, errors.Wrap(err, "analytics: failed to snapshot pipeline")
	}

	funnels := Funnels(snap)
	placed := 0
	payload := make(map[string]any, len(funnels))
	for _, f := range funnels {
		payload[f.JobID] = f
		placed += f.Total
	}

	msg := fmt.Sprintf("%d open postings, %d placements", len(funnels), placed)
	a.deps.Bus.Notify(bus.SeverityInfo, "Pipeline funnel", msg, map[string]any{"funnels": funnels})
	a.logger.Infow("Funnel computed", "postings", len(funnels), "placements", placed)
	return schedule.Output{Message: msg, Payload: payload}, nil
}

// Funnels computes funnel counts for every open posting, in posting order.
func Funnels(snap talent.Snapshot) []Funnel {
	open := snap.OpenPostings()
	funnels := make([]Funnel, 0, len(open))
	for _, p := range open {
		f := Funnel{JobID: p.ID, Title: p.Title, Stages: make(map[talent.Stage]int)}
		for _, pl := range snap.InStage(p.ID, talent.Stages...) {
			f.Stages[pl.Stage]++
			f.Total++
		}
		funnels = append(funnels, f)
	}
	return funnels
}
