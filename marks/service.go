package marks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
)

// Service applies the begin/complete protocol over a Store.
// A nil store makes every BeginStep succeed (fail open).
type Service struct {
	store      Store
	now        func() time.Time
	defaultTTL time.Duration
	logger     *zap.SugaredLogger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultTTL sets the TTL used when Begin.TTL is zero.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewService creates a mark service over store, which may be nil.
func NewService(store Store, log *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		now:        time.Now,
		defaultTTL: DefaultTTL,
		logger:     logger.AddMarkSymbol(logger.OrNop(log).Named("marks")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if store == nil {
		s.logger.Warnw("No mark store configured, idempotency disabled (every step will run)")
	}
	return s
}

// BeginStep claims a step and reports whether the caller may proceed.
// It returns false when a fresh started mark or a completed mark exists.
// When the store is unavailable it returns true so work is retried rather
// than blocked.
func (s *Service) BeginStep(ctx context.Context, b Begin) bool {
	if s.store == nil {
		return true
	}

	ttl := b.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	m := Mark{
		Key:       Key{CandidateID: b.CandidateID, JobID: b.JobID, Step: b.Step},
		Status:    StatusStarted,
		UpdatedAt: s.now(),
		TTL:       ttl,
		Metadata:  b.Metadata,
	}

	res := s.store.Claim(ctx, m)
	claimed, ok := res.Get()
	if !ok {
		s.logger.Warnw("Mark store degraded, proceeding without idempotency",
			logger.FieldCandidateID, b.CandidateID,
			logger.FieldJobID, b.JobID,
			logger.FieldStep, b.Step,
			logger.FieldError, res.Cause())
		return true
	}

	s.logger.Debugw("Begin step",
		logger.FieldCandidateID, b.CandidateID,
		logger.FieldJobID, b.JobID,
		logger.FieldStep, b.Step,
		"claimed", claimed)
	return claimed
}

// CompleteStep records the step as done. Failure to record is logged only:
// the caller already performed the side effect, and the cost is a redundant
// retry once the started mark goes stale.
func (s *Service) CompleteStep(ctx context.Context, c Complete) {
	if s.store == nil {
		return
	}

	m := Mark{
		Key:       Key{CandidateID: c.CandidateID, JobID: c.JobID, Step: c.Step},
		Status:    StatusCompleted,
		UpdatedAt: s.now(),
		Metadata:  c.Metadata,
	}
	if res := s.store.Complete(ctx, m); res.IsDegraded() {
		s.logger.Warnw("Failed to record step completion",
			logger.FieldCandidateID, c.CandidateID,
			logger.FieldJobID, c.JobID,
			logger.FieldStep, c.Step,
			logger.FieldError, res.Cause())
	}
}

// Get reads a mark. A missing mark is a healthy nil result.
func (s *Service) Get(ctx context.Context, key Key) persist.Result[*Mark] {
	if s.store == nil {
		return persist.Unavailable[*Mark]()
	}
	return s.store.Get(ctx, key)
}
