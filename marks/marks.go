// Package marks is the idempotency layer agents consult before doing work.
//
// A mark is keyed by (candidate, job, step). BeginStep claims the step by
// writing a started mark; CompleteStep records it as permanently done. A
// started mark older than its TTL is treated as abandoned by a crashed
// attempt and may be claimed again. Bumping the version suffix of a step
// name (see StepKey) forces work to be redone.
package marks

import (
	"context"
	"strings"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/persist"
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

// DefaultTTL bounds how long a crashed attempt can block a step.
const DefaultTTL = 10 * time.Minute

// Key identifies a mark.
type Key struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
	Step        string `json:"step"`
}

// Mark is the stored idempotency record.
type Mark struct {
	Key
	Status    Status         `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
	TTL       time.Duration  `json:"ttl"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Stale reports whether a started mark has outlived ttl at now.
func (m Mark) Stale(now time.Time, ttl time.Duration) bool {
	return m.Status == StatusStarted && now.Sub(m.UpdatedAt) > ttl
}

// Begin is the input to BeginStep.
type Begin struct {
	CandidateID string
	JobID       string
	Step        string
	TTL         time.Duration // zero uses the service default
	Metadata    map[string]any
}

// Complete is the input to CompleteStep.
type Complete struct {
	CandidateID string
	JobID       string
	Step        string
	Metadata    map[string]any
}

// Store persists marks. Claim must be atomic: it writes m as started and
// returns true only if no mark exists for m.Key or the existing mark is a
// started mark older than m.TTL at m.UpdatedAt.
type Store interface {
	Claim(ctx context.Context, m Mark) persist.Result[bool]
	Complete(ctx context.Context, m Mark) persist.Result[struct{}]
	Get(ctx context.Context, key Key) persist.Result[*Mark]
}

// StepKey joins parts into a versioned step name, e.g.
// StepKey("sourcing", "stage", "sourced", "v1") = "sourcing:stage:sourced:v1".
func StepKey(parts ...string) string {
	return strings.Join(parts, ":")
}
