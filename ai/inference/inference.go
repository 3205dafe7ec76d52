// Package inference defines the scoring collaborator agents call to judge a
// candidate against a posting, and the structured failure it returns.
package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// Assessment is a scorer's verdict on one (candidate, posting) pair.
type Assessment struct {
	Score         float64  `json:"score"` // 0..1
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	Rationale     string   `json:"rationale"`
}

// Scorer judges candidates. Implementations return *Failure for errors a
// caller may want to retry.
type Scorer interface {
	Score(ctx context.Context, c talent.Candidate, p talent.Posting) (Assessment, error)
	// Summarize writes an interview kit for the pair.
	Summarize(ctx context.Context, c talent.Candidate, p talent.Posting) (string, error)
}

// Failure is a collaborator error that knows whether retrying may help.
type Failure struct {
	Op         string
	Transient  bool
	RetryAfter time.Duration // server-suggested wait, 0 if none
	Err        error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s failed", f.Op)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the call may succeed if repeated.
func (f *Failure) Retryable() bool { return f.Transient }

// RetryAfterHint is the server's suggested wait.
func (f *Failure) RetryAfterHint() time.Duration { return f.RetryAfter }

// Transient wraps err as a retryable failure of op.
func Transient(op string, err error) *Failure {
	return &Failure{Op: op, Transient: true, Err: err}
}

// Permanent wraps err as a non-retryable failure of op.
func Permanent(op string, err error) *Failure {
	return &Failure{Op: op, Err: err}
}
