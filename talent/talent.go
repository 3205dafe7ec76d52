// Package talent holds the pipeline's domain records: candidates, postings,
// the current stage of each (candidate, posting) pair and interview drafts.
package talent

import (
	"slices"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

// Stage is a named position in a candidate's progress through a posting.
type Stage string

const (
	StageSourced    Stage = "sourced"
	StageNew        Stage = "new"
	StageLongList   Stage = "long_list"
	StageScreening  Stage = "screening"
	StageScheduling Stage = "scheduling"
	StageInterview  Stage = "interview"
	StageOffer      Stage = "offer"
	StageHired      Stage = "hired"
	StageRejected   Stage = "rejected"
)

// Stages in pipeline order.
var Stages = []Stage{
	StageSourced, StageNew, StageLongList, StageScreening, StageScheduling,
	StageInterview, StageOffer, StageHired, StageRejected,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return slices.Contains(Stages, s)
}

// Rank is the stage's position in pipeline order, or -1.
func (s Stage) Rank() int {
	return slices.Index(Stages, s)
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", errors.NewInvalidRequestError("unknown stage %q", s)
	}
	return st, nil
}

// AgentType names one of the orchestration agents.
type AgentType string

const (
	AgentSourcing   AgentType = "sourcing"
	AgentScreening  AgentType = "screening"
	AgentScheduling AgentType = "scheduling"
	AgentInterview  AgentType = "interview"
	AgentAnalytics  AgentType = "analytics"
)

// Mode is an agent's write policy.
type Mode string

const (
	ModeAutoWrite Mode = "auto_write"
	ModeRecommend Mode = "recommend"
)

type Candidate struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Headline        string    `json:"headline,omitempty"`
	Location        string    `json:"location,omitempty"`
	YearsExperience int       `json:"years_experience"`
	Skills          []string  `json:"skills"`
	VerifiedSkills  []string  `json:"verified_skills,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Posting struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Location       string    `json:"location,omitempty"`
	RequiredSkills []string  `json:"required_skills"`
	Open           bool      `json:"open"`
	CreatedAt      time.Time `json:"created_at"`
}

// Placement is the current stage of one candidate for one posting.
type Placement struct {
	CandidateID string    `json:"candidate_id"`
	JobID       string    `json:"job_id"`
	Stage       Stage     `json:"stage"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Draft is a generated interview kit. Only one draft per pair is active.
type Draft struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	JobID       string    `json:"job_id"`
	Content     string    `json:"content"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time copy of pipeline state taken at the start of an
// agent run. Agents read only from their snapshot.
type Snapshot struct {
	Candidates []Candidate
	Postings   []Posting
	Placements []Placement
}

// StageOf returns the current stage of a pair.
func (s Snapshot) StageOf(candidateID, jobID string) (Stage, bool) {
	for _, p := range s.Placements {
		if p.CandidateID == candidateID && p.JobID == jobID {
			return p.Stage, true
		}
	}
	return "", false
}

// Candidate looks up a candidate by id.
func (s Snapshot) Candidate(id string) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// Posting looks up a posting by id.
func (s Snapshot) Posting(id string) (Posting, bool) {
	for _, p := range s.Postings {
		if p.ID == id {
			return p, true
		}
	}
	return Posting{}, false
}

// OpenPostings returns the postings still accepting candidates.
func (s Snapshot) OpenPostings() []Posting {
	var open []Posting
	for _, p := range s.Postings {
		if p.Open {
			open = append(open, p)
		}
	}
	return open
}

// InStage returns the placements of a posting currently in one of stages.
func (s Snapshot) InStage(jobID string, stages ...Stage) []Placement {
	var out []Placement
	for _, p := range s.Placements {
		if p.JobID == jobID && slices.Contains(stages, p.Stage) {
			out = append(out, p)
		}
	}
	return out
}
