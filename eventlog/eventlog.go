// Package eventlog is the append-only audit trail of stage transitions and
// agent decisions. Writing is best-effort: failures are logged and
// swallowed so they never block the caller's primary action.
package eventlog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

type Type string

const (
	TypeStageMoved                Type = "STAGE_MOVED"
	TypeActionProposed            Type = "ACTION_PROPOSED"
	TypeActionApplied             Type = "ACTION_APPLIED"
	TypeActionDismissed           Type = "ACTION_DISMISSED"
	TypeSkillsVerified            Type = "SKILLS_VERIFIED"
	TypeDraftActivated            Type = "DRAFT_ACTIVATED"
	TypeAgentDecision             Type = "AGENT_DECISION"
	TypeHumanConfirmationRequired Type = "HUMAN_CONFIRMATION_REQUIRED"
)

type ActorType string

const (
	ActorAgent  ActorType = "agent"
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Event is one audit row. ID is assigned by the store.
type Event struct {
	ID          int64          `json:"id"`
	CandidateID string         `json:"candidate_id"`
	JobID       string         `json:"job_id,omitempty"`
	Type        Type           `json:"type"`
	ActorType   ActorType      `json:"actor_type"`
	ActorID     string         `json:"actor_id,omitempty"`
	FromStage   talent.Stage   `json:"from_stage,omitempty"`
	ToStage     talent.Stage   `json:"to_stage,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, ev Event) persist.Result[int64]
	ListForCandidate(ctx context.Context, candidateID string, limit int) persist.Result[[]Event]
}

// localCapacity bounds the in-memory log kept when no store is configured.
const localCapacity = 1000

// Log writes events to a Store, or to memory when the store is nil.
type Log struct {
	store  Store
	now    func() time.Time
	logger *zap.SugaredLogger

	mu      sync.Mutex
	local   []Event
	localID int64
}

// NewLog creates an event log over store, which may be nil (local-only).
func NewLog(store Store, log *zap.SugaredLogger) *Log {
	return &Log{
		store:  store,
		now:    time.Now,
		logger: logger.OrNop(log).Named("eventlog").With(logger.FieldSymbol, sym.Event),
	}
}

// LogEvent appends ev. It never fails from the caller's point of view.
func (l *Log) LogEvent(ctx context.Context, ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.now()
	}
	if ev.ActorType == "" {
		ev.ActorType = ActorSystem
	}

	if l.store == nil {
		l.appendLocal(ev)
		l.logger.Debugw("Pipeline event (local only)",
			"type", ev.Type,
			logger.FieldCandidateID, ev.CandidateID,
			logger.FieldJobID, ev.JobID,
			"summary", ev.Summary)
		return
	}

	res := l.store.Append(ctx, ev)
	if res.IsDegraded() {
		l.logger.Warnw("Failed to record pipeline event",
			"type", ev.Type,
			logger.FieldCandidateID, ev.CandidateID,
			logger.FieldJobID, ev.JobID,
			logger.FieldError, res.Cause())
	}
}

// ListForCandidate returns up to limit events for the candidate, newest first.
func (l *Log) ListForCandidate(ctx context.Context, candidateID string, limit int) ([]Event, error) {
	if l.store == nil {
		return l.listLocal(candidateID, limit), nil
	}

	res := l.store.ListForCandidate(ctx, candidateID, limit)
	events, ok := res.Get()
	if !ok {
		err := errors.Wrap(errors.ErrServiceUnavailable, res.Cause().Error())
		return nil, errors.WithDetailf(err, "candidate: %s", candidateID)
	}
	return events, nil
}

func (l *Log) appendLocal(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.localID++
	ev.ID = l.localID
	if len(l.local) == localCapacity {
		l.local = l.local[1:]
	}
	l.local = append(l.local, ev)
}

func (l *Log) listLocal(candidateID string, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0)
	for i := len(l.local) - 1; i >= 0; i-- {
		if l.local[i].CandidateID != candidateID {
			continue
		}
		out = append(out, l.local[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
