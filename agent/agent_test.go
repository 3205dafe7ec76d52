package agent

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/heuristic"
	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	sonartest "github.com/duli1982/aitalentsonardemo-sub003/internal/testing"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/pipeline"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/retry"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// fakeScorer returns fixed scores per candidate and can fail on demand.
type fakeScorer struct {
	mu        sync.Mutex
	scores    map[string]float64
	matched   []string
	transient map[string]int // remaining transient failures per candidate
	permanent map[string]bool
	calls     map[string]int
}

func newFakeScorer(scores map[string]float64) *fakeScorer {
	return &fakeScorer{scores: scores, transient: map[string]int{}, permanent: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakeScorer) Score(ctx context.Context, c talent.Candidate, p talent.Posting) (inference.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.ID]++
	if f.permanent[c.ID] {
		return inference.Assessment{}, inference.Permanent("score", fmt.Errorf("400 bad request"))
	}
	if f.transient[c.ID] > 0 {
		f.transient[c.ID]--
		return inference.Assessment{}, inference.Transient("score", fmt.Errorf("503 unavailable"))
	}
	return inference.Assessment{Score: f.scores[c.ID], MatchedSkills: f.matched, Rationale: "fake"}, nil
}

func (f *fakeScorer) Summarize(ctx context.Context, c talent.Candidate, p talent.Posting) (string, error) {
	return "Kit for " + c.Name, nil
}

func (f *fakeScorer) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type env struct {
	db     *sql.DB
	store  *talent.SQLStore
	marks  *marks.Service
	queue  *proposal.Queue
	events *eventlog.Log
	bus    *bus.Bus
	notes  chan bus.Event
	deps   Deps
}

func newEnv(t *testing.T, scorer inference.Scorer) *env {
	t.Helper()
	db := sonartest.CreateTestDB(t)
	log := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	e := &env{
		db:     db,
		store:  talent.NewSQLStore(db),
		marks:  marks.NewService(marks.NewSQLStore(db), log),
		events: eventlog.NewLog(eventlog.NewSQLStore(db), log),
		bus:    bus.New(),
	}
	e.notes = e.bus.Subscribe(1000)
	e.queue = proposal.NewQueue(proposal.NewSQLStore(db), log, proposal.WithBus(e.bus))

	policy := retry.DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	e.deps = Deps{
		Talent:  e.store,
		Scorer:  scorer,
		Marks:   e.marks,
		Queue:   e.queue,
		Mutator: pipeline.NewMutator(e.store, e.events, e.bus, log),
		Events:  e.events,
		Bus:     e.bus,
		Retry:   policy,
		Logger:  log,
	}

	require.NoError(t, e.store.UpsertPosting(ctx, talent.Posting{ID: "job1", Title: "Backend Engineer", RequiredSkills: []string{"Go", "SQL"}, Open: true}))
	require.NoError(t, e.store.UpsertPosting(ctx, talent.Posting{ID: "closed", Title: "Old Role", Open: false}))
	for _, c := range []talent.Candidate{
		{ID: "cand1", Name: "Ada", Skills: []string{"go", "sql"}, YearsExperience: 6},
		{ID: "cand2", Name: "Brian", Skills: []string{"php"}, YearsExperience: 1},
		{ID: "cand3", Name: "Cleo", Skills: []string{"go"}, YearsExperience: 2},
	} {
		require.NoError(t, e.store.UpsertCandidate(ctx, c))
	}
	return e
}

func (e *env) stage(t *testing.T, candidateID string) talent.Stage {
	t.Helper()
	snap, err := e.store.Snapshot(context.Background())
	require.NoError(t, err)
	st, _ := snap.StageOf(candidateID, "job1")
	return st
}

func (e *env) place(t *testing.T, candidateID string, st talent.Stage) {
	t.Helper()
	_, err := e.store.SetStage(context.Background(), candidateID, "job1", st)
	require.NoError(t, err)
}

func (e *env) eventTypes(t *testing.T, candidateID string) []eventlog.Type {
	t.Helper()
	events, err := e.events.ListForCandidate(context.Background(), candidateID, 0)
	require.NoError(t, err)
	out := make([]eventlog.Type, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// notifications drains the bus and returns the notification events.
func (e *env) notifications() []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev := <-e.notes:
			if ev.Kind == bus.KindNotification {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func autoWrite(threshold float64) Policy {
	return Policy{Mode: talent.ModeAutoWrite, Threshold: threshold}
}

func TestSourcing_AutoWriteMovesAboveThreshold(t *testing.T) {
	e := newEnv(t, heuristic.New())
	a := NewSourcing(e.deps, autoWrite(0.55))
	ctx := context.Background()

	out, err := a.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, talent.StageSourced, e.stage(t, "cand1"))
	assert.Equal(t, talent.Stage(""), e.stage(t, "cand2"))
	assert.Equal(t, 1, out.Payload[string(outcomeApplied)])
	assert.Equal(t, 2, out.Payload[string(outcomeUnchanged)])

	assert.Equal(t, []eventlog.Type{eventlog.TypeStageMoved}, e.eventTypes(t, "cand1"))
	assert.Equal(t, []eventlog.Type{eventlog.TypeAgentDecision}, e.eventTypes(t, "cand2"))

	res := e.marks.Get(ctx, marks.Key{CandidateID: "cand1", JobID: "job1", Step: SourcingStep})
	m, ok := res.Get()
	require.True(t, ok)
	require.NotNil(t, m)
	assert.Equal(t, marks.StatusCompleted, m.Status)
	assert.Empty(t, e.queue.List())
}

func TestSourcing_SecondRunSkipsCompletedSteps(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.9, "cand2": 0.1, "cand3": 0.2})
	e := newEnv(t, scorer)
	a := NewSourcing(e.deps, autoWrite(0.55))
	ctx := context.Background()

	_, err := a.Run(ctx)
	require.NoError(t, err)
	out, err := a.Run(ctx)
	require.NoError(t, err)

	// cand1 is placed now, the other two hold completed marks
	assert.Equal(t, 2, out.Payload[string(outcomeSkipped)])
	assert.Equal(t, 1, scorer.callsFor("cand2"))
	assert.Equal(t, 1, scorer.callsFor("cand1"))
}

func TestSourcing_RecommendQueuesProposal(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.9})
	e := newEnv(t, scorer)
	a := NewSourcing(e.deps, Policy{Mode: talent.ModeRecommend, Threshold: 0.55})

	out, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Payload[string(outcomeProposed)])

	assert.Equal(t, talent.Stage(""), e.stage(t, "cand1"))
	pending := e.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, talent.AgentSourcing, pending[0].Agent)
	assert.Equal(t, proposal.MoveToStage{To: talent.StageSourced}, pending[0].Payload)
	assert.NotEmpty(t, pending[0].Evidence)
	assert.Equal(t, []eventlog.Type{eventlog.TypeActionProposed}, e.eventTypes(t, "cand1"))

	notes := e.notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, bus.SeveritySuccess, notes[len(notes)-1].Severity)
}

func TestLoop_RetriesTransientFailure(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.9})
	scorer.transient["cand1"] = 1
	e := newEnv(t, scorer)

	_, err := NewSourcing(e.deps, autoWrite(0.55)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, scorer.callsFor("cand1"))
	assert.Equal(t, talent.StageSourced, e.stage(t, "cand1"))
}

func TestLoop_ExhaustedRetriesEscalate(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.9})
	scorer.transient["cand1"] = 10
	e := newEnv(t, scorer)
	ctx := context.Background()

	out, err := NewSourcing(e.deps, autoWrite(0.55)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Payload[string(outcomeEscalated)])
	assert.Equal(t, 2, scorer.callsFor("cand1"))
	assert.Equal(t, talent.Stage(""), e.stage(t, "cand1"))

	assert.Equal(t, []eventlog.Type{eventlog.TypeHumanConfirmationRequired}, e.eventTypes(t, "cand1"))

	var warned bool
	for _, n := range e.notifications() {
		if n.Severity == bus.SeverityWarning {
			warned = true
			assert.Contains(t, n.Message, "requires human confirmation")
		}
	}
	assert.True(t, warned)

	m, ok := e.marks.Get(ctx, marks.Key{CandidateID: "cand1", JobID: "job1", Step: SourcingStep}).Get()
	require.True(t, ok)
	require.NotNil(t, m)
	assert.Equal(t, marks.StatusStarted, m.Status, "mark is left for TTL reclaim")
}

func TestLoop_PermanentFailureEscalatesWithoutRetry(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{})
	scorer.permanent["cand1"] = true
	e := newEnv(t, scorer)

	_, err := NewSourcing(e.deps, autoWrite(0.55)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, scorer.callsFor("cand1"))

	var errored bool
	for _, n := range e.notifications() {
		if n.Severity == bus.SeverityError {
			errored = true
		}
	}
	assert.True(t, errored)
}

func TestLoop_PolicySwitchTakesEffect(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.9, "cand3": 0.9})
	e := newEnv(t, scorer)
	a := NewSourcing(e.deps, Policy{Mode: talent.ModeRecommend, Threshold: 0.55})

	a.SetPolicy(autoWrite(0.55))
	assert.Equal(t, talent.ModeAutoWrite, a.Policy().Mode)

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, talent.StageSourced, e.stage(t, "cand1"))
	assert.Empty(t, e.queue.List())
}

func TestScreening_Thresholds(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.8, "cand2": 0.2, "cand3": 0.5})
	scorer.matched = []string{"Go"}
	e := newEnv(t, scorer)
	e.place(t, "cand1", talent.StageSourced)
	e.place(t, "cand2", talent.StageNew)
	e.place(t, "cand3", talent.StageSourced)

	a := NewScreening(e.deps, Policy{Mode: talent.ModeAutoWrite, Threshold: 0.7, LowerThreshold: 0.35})
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, talent.StageScreening, e.stage(t, "cand1"))
	assert.Equal(t, talent.StageRejected, e.stage(t, "cand2"))
	assert.Equal(t, talent.StageLongList, e.stage(t, "cand3"))

	// Skills and stage share one score per pair
	assert.Equal(t, 1, scorer.callsFor("cand1"))

	snap, err := e.store.Snapshot(context.Background())
	require.NoError(t, err)
	c, _ := snap.Candidate("cand1")
	assert.Equal(t, []string{"Go"}, c.VerifiedSkills)
}

func TestScreening_RecommendProposesBothKinds(t *testing.T) {
	scorer := newFakeScorer(map[string]float64{"cand1": 0.8})
	scorer.matched = []string{"Go", "SQL"}
	e := newEnv(t, scorer)
	e.place(t, "cand1", talent.StageSourced)

	_, err := NewScreening(e.deps, Policy{Mode: talent.ModeRecommend, Threshold: 0.7, LowerThreshold: 0.35}).Run(context.Background())
	require.NoError(t, err)

	kinds := map[proposal.Kind]proposal.Payload{}
	for _, a := range e.queue.Pending() {
		kinds[a.Payload.Kind()] = a.Payload
	}
	assert.Equal(t, proposal.MoveToStage{From: talent.StageSourced, To: talent.StageScreening}, kinds[proposal.KindMoveToStage])
	assert.Equal(t, proposal.UpdateVerifiedSkills{Skills: []string{"Go", "SQL"}}, kinds[proposal.KindUpdateVerifiedSkills])
	assert.Equal(t, talent.StageSourced, e.stage(t, "cand1"))
}

func TestScheduling_NegotiatesAndMoves(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	e.place(t, "cand1", talent.StageScreening)

	now := time.Date(2026, 10, 23, 15, 0, 0, 0, time.UTC) // a Friday
	a := NewScheduling(e.deps, autoWrite(0), SimulatedNegotiator{Delay: time.Millisecond, Now: func() time.Time { return now }})
	out, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Payload[string(outcomeApplied)])
	assert.Equal(t, talent.StageScheduling, e.stage(t, "cand1"))

	m, ok := e.marks.Get(context.Background(), marks.Key{CandidateID: "cand1", JobID: "job1", Step: SchedulingStep}).Get()
	require.True(t, ok)
	require.NotNil(t, m)
	assert.Equal(t, "2026-10-26T10:00:00Z", m.Metadata["slot"])
}

func TestScheduling_CancelledContextAbortsRun(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	e.place(t, "cand1", talent.StageScreening)

	a := NewScheduling(e.deps, autoWrite(0), SimulatedNegotiator{Delay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, talent.StageScreening, e.stage(t, "cand1"))
}

func TestInterview_SavesDraftThenActivates(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	e.place(t, "cand1", talent.StageScheduling)

	a := NewInterview(e.deps, autoWrite(0))
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, talent.StageInterview, e.stage(t, "cand1"))
	assert.Equal(t, []eventlog.Type{eventlog.TypeStageMoved, eventlog.TypeDraftActivated}, e.eventTypes(t, "cand1"))
}

func TestInterview_RecommendLeavesDraftInactive(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	e.place(t, "cand1", talent.StageScheduling)

	a := NewInterview(e.deps, Policy{Mode: talent.ModeRecommend})
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	pending := e.queue.Pending()
	require.Len(t, pending, 2)
	kinds := map[proposal.Kind]bool{}
	for _, p := range pending {
		kinds[p.Payload.Kind()] = true
	}
	assert.True(t, kinds[proposal.KindActivateDraft])
	assert.True(t, kinds[proposal.KindMoveToStage])
	assert.Equal(t, talent.StageScheduling, e.stage(t, "cand1"))
}

func TestInterview_ReclaimReusesDraft(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	snap, err := e.store.Snapshot(context.Background())
	require.NoError(t, err)
	cand, ok := snap.Candidate("cand1")
	require.True(t, ok)
	posting, ok := snap.Posting("job1")
	require.True(t, ok)
	p := pair{Candidate: cand, Posting: posting, Stage: talent.StageScheduling}

	a := NewInterview(e.deps, Policy{Mode: talent.ModeRecommend})
	first, err := a.prepareKit(context.Background(), p)
	require.NoError(t, err)
	second, err := a.prepareKit(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first.Metadata["draft_id"], second.Metadata["draft_id"])
	assert.Equal(t, KitDraftID("cand1", "job1"), second.Metadata["draft_id"])
	assert.NotEqual(t, KitDraftID("cand1", "job1"), KitDraftID("cand2", "job1"))

	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM interview_drafts WHERE candidate_id = ? AND job_id = ?`, "cand1", "job1").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestAnalytics_Funnel(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	e.place(t, "cand1", talent.StageScreening)
	e.place(t, "cand2", talent.StageRejected)
	e.place(t, "cand3", talent.StageScreening)

	out, err := NewAnalytics(e.deps, Policy{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1 open postings, 3 placements", out.Message)

	f, ok := out.Payload["job1"].(Funnel)
	require.True(t, ok)
	assert.Equal(t, 2, f.Stages[talent.StageScreening])
	assert.Equal(t, 1, f.Stages[talent.StageRejected])
	assert.Equal(t, 3, f.Total)
	assert.Empty(t, e.queue.List())
}

func TestRegistry_ScheduleAndReconfigure(t *testing.T) {
	e := newEnv(t, newFakeScorer(nil))
	cfg := &am.Config{Agents: map[string]am.AgentConfig{
		"sourcing":  {Enabled: false, Mode: am.ModeRecommend, IntervalSeconds: 300, Threshold: 0.55},
		"analytics": {Enabled: false, Cron: "0 2 * * *"},
	}}
	reg := NewRegistry(e.deps, cfg, nil)
	s := schedule.New(zaptest.NewLogger(t).Sugar())
	defer s.Stop()

	require.NoError(t, reg.Schedule(s, cfg))
	jobs := s.Jobs()
	require.Len(t, jobs, 5)
	assert.Equal(t, JobID(talent.AgentSourcing), jobs[0].ID)
	assert.Equal(t, 5*time.Minute, jobs[0].Interval)
	assert.Equal(t, "0 2 * * *", jobs[4].Cron)

	cfg.Agents["sourcing"] = am.AgentConfig{Enabled: false, Mode: am.ModeAutoWrite, IntervalSeconds: 300, Threshold: 0.6}
	reg.Reconfigure(s, cfg)

	a, ok := reg.Get(talent.AgentSourcing)
	require.True(t, ok)
	assert.Equal(t, Policy{Mode: talent.ModeAutoWrite, Threshold: 0.6}, a.Policy())
}
