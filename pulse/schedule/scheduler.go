package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
)

// entry is the scheduler's private record for a job.
type entry struct {
	job      Job
	handler  Handler
	schedule cron.Schedule
	timer    *time.Timer
	gen      uint64 // bumped on every (re)arm; stale timers compare and bail
	seq      int    // registration order
}

// Scheduler runs registered jobs on independent timers.
// Different jobs run concurrently; a job never overlaps with itself.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     int
	stopped bool

	results  *ResultLog
	bus      *bus.Bus
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	pulseLog *zap.SugaredLogger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithBus publishes job results and failure notifications to b.
func WithBus(b *bus.Bus) Option {
	return func(s *Scheduler) { s.bus = b }
}

// WithResultLog shares an existing result log.
func WithResultLog(l *ResultLog) Option {
	return func(s *Scheduler) { s.results = l }
}

// New creates a scheduler. Timer-driven runs use a context that Stop cancels.
func New(log *zap.SugaredLogger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		entries:  make(map[string]*entry),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		pulseLog: logger.AddPulseSymbol(logger.OrNop(log)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.results == nil {
		s.results = NewResultLog(DefaultResultLogSize)
	}
	return s
}

// Register stores job with status idle and returns its id. An empty id is
// generated. If the job is enabled, its timer is armed and one immediate run
// is triggered in the background.
func (s *Scheduler) Register(job Job, handler Handler) (string, error) {
	if handler == nil {
		return "", errors.NewInvalidRequestError("job %q has no handler", job.Name)
	}

	var sched cron.Schedule
	if job.Cron != "" {
		parsed, err := ParseCron(job.Cron)
		if err != nil {
			return "", err
		}
		sched = parsed
	} else if job.Interval <= 0 {
		return "", errors.NewInvalidRequestError("job %q needs a positive interval or a cron expression", job.Name)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Name == "" {
		job.Name = job.ID
	}
	job.Status = StatusIdle
	job.LastRun = nil
	job.NextRun = nil

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", errors.Newf("scheduler stopped, cannot register %s", job.ID)
	}
	if _, exists := s.entries[job.ID]; exists {
		s.mu.Unlock()
		return "", errors.NewConflictError("job %s already registered", job.ID)
	}
	s.seq++
	e := &entry{job: job, handler: handler, schedule: sched, seq: s.seq}
	s.entries[job.ID] = e
	if job.Enabled {
		s.armLocked(e, s.now())
		s.triggerLocked(job.ID)
	}
	s.mu.Unlock()

	s.pulseLog.Infow("Job registered",
		logger.FieldJobID, job.ID,
		"name", job.Name,
		"interval", job.Interval,
		"cron", job.Cron,
		"enabled", job.Enabled)

	return job.ID, nil
}

// Run executes the job now and returns its result. If the job is already
// running it returns a skipped result immediately without invoking the
// handler; skipped runs are not recorded in the result log.
func (s *Scheduler) Run(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return Result{}, errors.NewNotFoundError("job %s", id)
	}

	now := s.now()
	if e.job.Status == StatusRunning {
		s.mu.Unlock()
		s.pulseLog.Debugw("Job run skipped, already running", logger.FieldJobID, id)
		return Result{JobID: id, Skipped: true, Message: SkippedMessage, Timestamp: now}, nil
	}

	e.job.Status = StatusRunning
	e.job.LastRun = &now
	if e.job.Enabled {
		s.armLocked(e, now)
	}
	handler := e.handler
	name := e.job.Name
	s.mu.Unlock()

	runCtx := logger.WithJobID(ctx, id)
	out, err := s.invoke(runCtx, handler)
	finished := s.now()

	result := Result{
		JobID:      id,
		Success:    err == nil,
		Message:    out.Message,
		Payload:    out.Payload,
		DurationMS: finished.Sub(now).Milliseconds(),
		Timestamp:  finished,
	}
	if err != nil {
		result.Message = err.Error()
		result.Details = errors.GetAllDetails(err)
	}

	s.mu.Lock()
	if result.Success {
		e.job.Status = StatusCompleted
	} else {
		e.job.Status = StatusFailed
	}
	s.mu.Unlock()

	s.results.Append(result)
	s.bus.Publish(bus.Event{Kind: bus.KindJobResult, Data: result})

	if err != nil {
		s.pulseLog.Warnw("Job failed",
			logger.FieldJobID, id,
			logger.FieldDurationMS, result.DurationMS,
			logger.FieldError, err)
		s.bus.Notify(bus.SeverityError, name, fmt.Sprintf("Run failed: %s", result.Message), map[string]any{"job_id": id})
	} else {
		s.pulseLog.Infow("Job completed",
			logger.FieldJobID, id,
			logger.FieldDurationMS, result.DurationMS,
			"message", result.Message)
	}

	return result, nil
}

// invoke calls the handler, converting a panic into an error.
func (s *Scheduler) invoke(ctx context.Context, handler Handler) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.pulseLog.Errorw("Job handler panicked", "panic", r, "stack", string(debug.Stack()))
			out = Output{}
			err = errors.Newf("handler panic: %v", r)
		}
	}()
	return handler(ctx)
}

// SetEnabled turns a job's timer on or off. Disabling clears NextRun but
// never interrupts a run in flight. Enabling re-arms the timer and triggers
// an immediate run.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return errors.NewNotFoundError("job %s", id)
	}
	if e.job.Enabled == enabled {
		return nil
	}
	e.job.Enabled = enabled

	if !enabled {
		s.disarmLocked(e)
		s.pulseLog.Infow("Job disabled", logger.FieldJobID, id)
		return nil
	}

	if s.stopped {
		return nil
	}
	s.armLocked(e, s.now())
	s.triggerLocked(id)
	s.pulseLog.Infow("Job enabled", logger.FieldJobID, id, logger.FieldNextRun, e.job.NextRun)
	return nil
}

// Results returns up to limit results for the job, most recent first.
func (s *Scheduler) Results(id string, limit int) []Result {
	return s.results.Recent(id, limit)
}

// ResultLog exposes the shared result log.
func (s *Scheduler) ResultLog() *ResultLog {
	return s.results
}

// Get returns a snapshot of the job.
func (s *Scheduler) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Job{}, false
	}
	return snapshot(e.job), true
}

// Jobs returns snapshots of every job in registration order.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	jobs := make([]Job, len(entries))
	for i, e := range entries {
		jobs[i] = snapshot(e.job)
	}
	s.mu.Unlock()
	return jobs
}

// Stop disarms every timer, cancels timer-driven runs and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.gen++
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	logger.AddPulseCloseSymbol(s.pulseLog).Infow("Scheduler stopped")
}

// armLocked (re)starts the job's timer for its next fire time after now.
func (s *Scheduler) armLocked(e *entry, now time.Time) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	id := e.job.ID

	next := nextAfter(e.schedule, e.job.Interval, now)
	e.job.NextRun = &next
	e.timer = time.AfterFunc(next.Sub(now), func() { s.fire(id, gen) })
}

func (s *Scheduler) disarmLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.job.NextRun = nil
}

// triggerLocked starts a background run tracked by the scheduler's WaitGroup.
func (s *Scheduler) triggerLocked(id string) {
	if s.stopped {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Run(s.ctx, id); err != nil {
			s.pulseLog.Warnw("Triggered run failed", logger.FieldJobID, id, logger.FieldError, err)
		}
	}()
}

// fire is called by a job's timer.
func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || s.stopped || e.gen != gen || !e.job.Enabled {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	res, err := s.Run(s.ctx, id)
	if err != nil || !res.Skipped {
		return
	}

	// A skipped tick must not leave the job without a timer
	s.mu.Lock()
	if !s.stopped && e.gen == gen && e.job.Enabled {
		s.armLocked(e, s.now())
	}
	s.mu.Unlock()
}

func snapshot(j Job) Job {
	if j.LastRun != nil {
		t := *j.LastRun
		j.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		j.NextRun = &t
	}
	return j
}
