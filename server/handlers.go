package server

import (
	"net/http"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
	"github.com/duli1982/aitalentsonardemo-sub003/version"
)

const (
	defaultResultsLimit = 20
	defaultEventsLimit  = 50

	// headerUserID names the reviewing operator on apply and dismiss.
	headerUserID = "X-Sonar-User"
	defaultUser  = "operator"
)

// HandleHealth reports liveness and a few counters.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"version":           version.Get(),
		"jobs":              len(s.scheduler.Jobs()),
		"pending_proposals": len(s.queue.Pending()),
		"clients":           s.ClientCount(),
		"system":            systemStats(),
	})
}

// HandleListJobs handles GET /api/jobs
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.scheduler.Jobs()
	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs)), Count: len(jobs)}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleJobResults handles GET /api/jobs/{id}/results
func (s *Server) HandleJobResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.scheduler.Get(id); !ok {
		writeErr(w, errors.NewNotFoundError("job %s", id))
		return
	}
	limit, err := queryLimit(r, defaultResultsLimit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultsResponse{JobID: id, Results: s.scheduler.Results(id, limit)})
}

// HandleRunJob handles POST /api/jobs/{id}/run. The request blocks until
// the run finishes; a job already running answers with a skipped result.
func (s *Server) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger.AddPulseSymbol(s.logger).Infow("Manual job run requested", logger.FieldJobID, id)

	result, err := s.scheduler.Run(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleUpdateJob handles PATCH /api/jobs/{id}
func (s *Server) HandleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateJobRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := s.scheduler.SetEnabled(id, *req.Enabled); err != nil {
		writeErr(w, err)
		return
	}
	job, _ := s.scheduler.Get(id)
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// HandleListProposals handles GET /api/proposals
func (s *Server) HandleListProposals(w http.ResponseWriter, r *http.Request) {
	actions := s.queue.List()
	pending := 0
	for _, a := range actions {
		if a.Status == proposal.StatusProposed {
			pending++
		}
	}
	writeJSON(w, http.StatusOK, ListProposalsResponse{Proposals: actions, Pending: pending})
}

// HandleApply handles POST /api/proposals/{id}/apply
func (s *Server) HandleApply(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user := reviewerID(r)

	a, changed, err := s.reviewer.Apply(r.Context(), id, user)
	if err != nil {
		s.logger.Warnw(sym.Proposal+" Apply failed",
			logger.FieldProposalID, id,
			logger.FieldActorID, user,
			logger.FieldError, err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReviewResponse{Proposal: a, Changed: changed})
}

// HandleDismiss handles POST /api/proposals/{id}/dismiss
func (s *Server) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a, changed, err := s.reviewer.Dismiss(r.Context(), id, reviewerID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReviewResponse{Proposal: a, Changed: changed})
}

// HandleCandidateEvents handles GET /api/candidates/{id}/events
func (s *Server) HandleCandidateEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, err := queryLimit(r, defaultEventsLimit)
	if err != nil {
		writeErr(w, err)
		return
	}

	events, err := s.events.ListForCandidate(r.Context(), id, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidate_id": id, "events": events})
}

func reviewerID(r *http.Request) string {
	if u := r.Header.Get(headerUserID); u != "" {
		return u
	}
	return defaultUser
}
