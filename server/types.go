package server

import (
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
)

// ErrorResponse represents an API error with optional structured details
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"` // From errors.GetAllDetails()
}

// JobResponse represents a scheduled job in API responses
type JobResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Category        string     `json:"category,omitempty"`
	IntervalSeconds int64      `json:"interval_seconds,omitempty"`
	Cron            string     `json:"cron,omitempty"`
	Enabled         bool       `json:"enabled"`
	Status          string     `json:"status"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
}

// ListJobsResponse represents the response for GET /api/jobs
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// UpdateJobRequest is the body of PATCH /api/jobs/{id}
type UpdateJobRequest struct {
	Enabled *bool `json:"enabled"`
}

// JobResultsResponse represents the response for GET /api/jobs/{id}/results
type JobResultsResponse struct {
	JobID   string            `json:"job_id"`
	Results []schedule.Result `json:"results"`
}

// ListProposalsResponse represents the response for GET /api/proposals
type ListProposalsResponse struct {
	Proposals []proposal.Action `json:"proposals"`
	Pending   int               `json:"pending"`
}

// ReviewResponse is returned by apply and dismiss. Changed is false when the
// proposal had already left the proposed state.
type ReviewResponse struct {
	Proposal proposal.Action `json:"proposal"`
	Changed  bool            `json:"changed"`
}

func toJobResponse(j schedule.Job) JobResponse {
	return JobResponse{
		ID:              j.ID,
		Name:            j.Name,
		Category:        j.Category,
		IntervalSeconds: int64(j.Interval / time.Second),
		Cron:            j.Cron,
		Enabled:         j.Enabled,
		Status:          string(j.Status),
		LastRun:         j.LastRun,
		NextRun:         j.NextRun,
	}
}
