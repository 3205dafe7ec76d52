package proposal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
)

// Store persists actions. Save upserts by id.
type Store interface {
	Save(ctx context.Context, a Action) persist.Result[struct{}]
	LoadAll(ctx context.Context) persist.Result[[]Action]
}

// Queue holds proposed actions in memory and mirrors every change to a
// Store. When the store is nil or degraded the queue keeps working from
// memory alone.
type Queue struct {
	mu      sync.Mutex
	actions map[string]*Action

	store  Store
	bus    *bus.Bus
	now    func() time.Time
	newID  func() string
	logger *zap.SugaredLogger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithBus announces queue changes on b.
func WithBus(b *bus.Bus) QueueOption {
	return func(q *Queue) { q.bus = b }
}

// NewQueue creates an empty queue. Call Load to pick up persisted actions.
func NewQueue(store Store, log *zap.SugaredLogger, opts ...QueueOption) *Queue {
	q := &Queue{
		actions: make(map[string]*Action),
		store:   store,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger.OrNop(log).Named("proposals").With(logger.FieldSymbol, sym.Proposal),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add enqueues a proposed action. If a proposed action already exists for
// the same agent, candidate, job and payload kind, that entry is updated in
// place: its id and creation time are kept, while title, description,
// payload and evidence are replaced.
func (q *Queue) Add(ctx context.Context, a Action) (Action, error) {
	if a.Agent == "" {
		return Action{}, errors.NewInvalidRequestError("proposal has no agent")
	}
	if a.Title == "" {
		return Action{}, errors.NewInvalidRequestError("proposal has no title")
	}
	if err := Validate(a.Payload); err != nil {
		return Action{}, err
	}
	a.Status = StatusProposed

	q.mu.Lock()
	now := q.now()
	var superseded []Action
	stored := q.existingLocked(&a)
	if stored != nil {
		superseded = q.collapseLocked()
		stored = q.existingLocked(&a)
		stored.Title = a.Title
		stored.Description = a.Description
		stored.Payload = a.Payload
		stored.Evidence = append([]Evidence(nil), a.Evidence...)
		stored.UpdatedAt = now
	} else {
		if _, taken := q.actions[a.ID]; taken && a.ID != "" {
			q.mu.Unlock()
			return Action{}, errors.NewConflictError("proposal %s already exists", a.ID)
		}
		if a.ID == "" {
			a.ID = q.newID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		c := a.clone()
		stored = &c
		q.actions[c.ID] = stored
	}
	out := stored.clone()
	q.mu.Unlock()

	q.persistAll(ctx, superseded)
	q.persist(ctx, out)
	q.logger.Infow("Action proposed",
		logger.FieldProposalID, out.ID,
		logger.FieldAgent, out.Agent,
		logger.FieldCandidateID, out.CandidateID,
		logger.FieldJobID, out.JobID,
		"kind", out.Payload.Kind())
	q.announce(out)
	return out, nil
}

// existingLocked finds the proposed entry a coalesces into, if any.
func (q *Queue) existingLocked(a *Action) *Action {
	key, ok := a.key()
	if !ok {
		return nil
	}
	if cur, found := q.actions[a.ID]; found && a.ID != "" {
		if k, ok := cur.key(); ok && k == key {
			return cur
		}
	}
	var match *Action
	for _, cur := range q.actions {
		if k, ok := cur.key(); ok && k == key {
			if match == nil || cur.CreatedAt.Before(match.CreatedAt) {
				match = cur
			}
		}
	}
	return match
}

// MarkStatus moves a proposed action to applied or dismissed. It returns the
// action and whether it changed. Unknown ids and actions that already left
// the proposed state are no-ops.
func (q *Queue) MarkStatus(ctx context.Context, id string, status Status) (Action, bool, error) {
	if status != StatusApplied && status != StatusDismissed {
		return Action{}, false, errors.NewInvalidRequestError("cannot mark proposal %s as %q", id, status)
	}

	q.mu.Lock()
	cur, ok := q.actions[id]
	if !ok {
		q.mu.Unlock()
		return Action{}, false, nil
	}
	if cur.Status != StatusProposed {
		out := cur.clone()
		q.mu.Unlock()
		return out, false, nil
	}
	cur.Status = status
	cur.UpdatedAt = q.now()
	out := cur.clone()
	q.mu.Unlock()

	q.persist(ctx, out)
	q.logger.Infow("Proposal status changed",
		logger.FieldProposalID, id,
		logger.FieldStatus, status)
	q.announce(out)
	return out, true, nil
}

// Get returns the action with id.
func (q *Queue) Get(id string) (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.actions[id]
	if !ok {
		return Action{}, false
	}
	return a.clone(), true
}

// List returns every action, newest first. Duplicate proposed entries are
// collapsed in the queue itself before the copy is taken, so what List shows
// is what Get and MarkStatus act on.
func (q *Queue) List() []Action {
	q.mu.Lock()
	superseded := q.collapseLocked()
	all := make([]Action, 0, len(q.actions))
	for _, a := range q.actions {
		all = append(all, a.clone())
	}
	q.mu.Unlock()

	q.persistAll(context.Background(), superseded)

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all
}

// collapseLocked folds proposed entries sharing a coalescing key into the
// earliest one, which keeps its id and creation time and takes the most
// recently updated content. The others are dismissed as superseded. It
// returns every entry it changed.
func (q *Queue) collapseLocked() []Action {
	groups := make(map[dedupKey][]*Action)
	for _, a := range q.actions {
		if k, ok := a.key(); ok {
			groups[k] = append(groups[k], a)
		}
	}

	var changed []Action
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		now := q.now()
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})

		keep, latest := group[0], group[0]
		for _, a := range group[1:] {
			if a.UpdatedAt.After(latest.UpdatedAt) {
				latest = a
			}
		}
		if latest != keep {
			keep.Title = latest.Title
			keep.Description = latest.Description
			keep.Payload = latest.Payload
			keep.Evidence = append([]Evidence(nil), latest.Evidence...)
			keep.UpdatedAt = latest.UpdatedAt
			changed = append(changed, keep.clone())
		}
		for _, dup := range group[1:] {
			dup.Status = StatusDismissed
			dup.Description = "superseded by " + keep.ID
			if now.After(dup.UpdatedAt) {
				dup.UpdatedAt = now
			}
			changed = append(changed, dup.clone())
		}
		q.logger.Infow("Collapsed duplicate proposals",
			logger.FieldProposalID, keep.ID,
			"superseded", len(group)-1)
	}
	return changed
}

// Pending returns the proposed actions from List.
func (q *Queue) Pending() []Action {
	pending := make([]Action, 0)
	for _, a := range q.List() {
		if a.Status == StatusProposed {
			pending = append(pending, a)
		}
	}
	return pending
}

// Load merges persisted actions into memory. An entry already in memory
// wins unless the persisted copy is newer. A degraded store leaves the
// queue as it is and returns ErrServiceUnavailable.
func (q *Queue) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	res := q.store.LoadAll(ctx)
	loaded, ok := res.Get()
	if !ok {
		q.logger.Warnw("Proposal store unavailable, continuing in memory", logger.FieldError, res.Cause())
		return errors.Wrap(errors.ErrServiceUnavailable, res.Cause().Error())
	}

	q.mu.Lock()
	for i := range loaded {
		a := loaded[i]
		if cur, ok := q.actions[a.ID]; ok && !a.UpdatedAt.After(cur.UpdatedAt) {
			continue
		}
		q.actions[a.ID] = &a
	}
	superseded := q.collapseLocked()
	n := len(q.actions)
	q.mu.Unlock()

	q.persistAll(ctx, superseded)
	q.logger.Infow("Proposals loaded", logger.FieldCount, len(loaded), "total", n)
	return nil
}

func (q *Queue) persist(ctx context.Context, a Action) {
	if q.store == nil {
		return
	}
	if res := q.store.Save(ctx, a); res.IsDegraded() {
		q.logger.Warnw("Failed to persist proposal, kept in memory",
			logger.FieldProposalID, a.ID,
			logger.FieldError, res.Cause())
	}
}

func (q *Queue) persistAll(ctx context.Context, actions []Action) {
	for _, a := range actions {
		q.persist(ctx, a)
	}
}

func (q *Queue) announce(a Action) {
	q.bus.Publish(bus.Event{
		Kind: bus.KindProposalsChanged,
		Data: map[string]any{"id": a.ID, "status": a.Status, "agent": a.Agent},
	})
}
