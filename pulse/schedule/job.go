// Package schedule runs named periodic jobs, each on its own timer, with a
// per-job re-entrancy guard and a bounded log of recent run results.
package schedule

import (
	"context"
	"time"
)

// Status of a registered job
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// SkippedMessage is the message of a run refused because the job was already running.
const SkippedMessage = "skipped: already running"

// Job describes a recurring job. The scheduler owns its copy; callers only
// ever see snapshots returned by Get and Jobs.
type Job struct {
	ID       string
	Name     string
	Category string
	Interval time.Duration
	Cron     string // Standard 5-field expression; overrides Interval when set
	Enabled  bool
	LastRun  *time.Time
	NextRun  *time.Time
	Status   Status
}

// Output is what a handler reports for one run.
type Output struct {
	Message string
	Payload map[string]any
}

// Handler performs one run of a job. A returned error or a panic marks the
// run failed; neither propagates past the scheduler.
type Handler func(ctx context.Context) (Output, error)

// Result is the immutable outcome of one run.
type Result struct {
	JobID      string         `json:"job_id"`
	Success    bool           `json:"success"`
	Skipped    bool           `json:"skipped,omitempty"`
	Message    string         `json:"message"`
	Details    []string       `json:"details,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
}
