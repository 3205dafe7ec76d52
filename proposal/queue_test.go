package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	sonartest "github.com/duli1982/aitalentsonardemo-sub003/internal/testing"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so ordering by time is deterministic.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sourcingMove(to talent.Stage) Action {
	return Action{
		Agent:       talent.AgentSourcing,
		Title:       "Move cand1 to " + string(to),
		CandidateID: "cand1",
		JobID:       "job1",
		Payload:     MoveToStage{From: talent.StageNew, To: to},
		Evidence:    []Evidence{{Label: "score", Value: "0.81"}},
	}
}

func TestQueue_CoalescesSameKey(t *testing.T) {
	q := NewQueue(nil, zaptest.NewLogger(t).Sugar(), WithClock(newStepClock().Now))
	ctx := context.Background()

	first, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)
	second, err := q.Add(ctx, sourcingMove(talent.StageScreening))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	list := q.List()
	require.Len(t, list, 1)
	assert.Equal(t, MoveToStage{From: talent.StageNew, To: talent.StageScreening}, list[0].Payload)
	assert.Equal(t, "Move cand1 to screening", list[0].Title)
}

func TestQueue_DistinctKeysStaySeparate(t *testing.T) {
	q := NewQueue(nil, nil, WithClock(newStepClock().Now))
	ctx := context.Background()

	_, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)

	other := sourcingMove(talent.StageLongList)
	other.Agent = talent.AgentScreening
	_, err = q.Add(ctx, other)
	require.NoError(t, err)

	skills := Action{Agent: talent.AgentSourcing, Title: "Verify skills", CandidateID: "cand1", JobID: "job1",
		Payload: UpdateVerifiedSkills{Skills: []string{"go"}}}
	_, err = q.Add(ctx, skills)
	require.NoError(t, err)

	noJob := Action{Agent: talent.AgentSourcing, Title: "Verify skills", CandidateID: "cand1",
		Payload: UpdateVerifiedSkills{Skills: []string{"go"}}}
	_, err = q.Add(ctx, noJob)
	require.NoError(t, err)
	_, err = q.Add(ctx, noJob)
	require.NoError(t, err)

	list := q.List()
	assert.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt), "list must be newest first")
	}
}

func TestQueue_MarkStatusIsOneWay(t *testing.T) {
	q := NewQueue(nil, nil, WithClock(newStepClock().Now))
	ctx := context.Background()

	a, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)

	applied, changed, err := q.MarkStatus(ctx, a.ID, StatusApplied)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusApplied, applied.Status)

	again, changed, err := q.MarkStatus(ctx, a.ID, StatusApplied)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, applied, again)

	dismissed, changed, err := q.MarkStatus(ctx, a.ID, StatusDismissed)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusApplied, dismissed.Status)

	_, changed, err = q.MarkStatus(ctx, "missing", StatusDismissed)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = q.MarkStatus(ctx, a.ID, StatusProposed)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestQueue_TerminalActionsDoNotCoalesce(t *testing.T) {
	q := NewQueue(nil, nil, WithClock(newStepClock().Now))
	ctx := context.Background()

	a, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)
	_, _, err = q.MarkStatus(ctx, a.ID, StatusDismissed)
	require.NoError(t, err)

	b, err := q.Add(ctx, sourcingMove(talent.StageScreening))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	assert.Len(t, q.List(), 2)
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestQueue_AddValidates(t *testing.T) {
	q := NewQueue(nil, nil)
	ctx := context.Background()

	cases := map[string]Action{
		"no agent":     {Title: "x", Payload: ActivateDraft{DraftID: "d1"}},
		"no title":     {Agent: talent.AgentInterview, Payload: ActivateDraft{DraftID: "d1"}},
		"no payload":   {Agent: talent.AgentInterview, Title: "x"},
		"bad stage":    {Agent: talent.AgentSourcing, Title: "x", Payload: MoveToStage{To: "limbo"}},
		"empty skills": {Agent: talent.AgentScreening, Title: "x", Payload: UpdateVerifiedSkills{}},
		"empty draft":  {Agent: talent.AgentInterview, Title: "x", Payload: ActivateDraft{}},
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := q.Add(ctx, a)
			assert.True(t, errors.IsInvalidRequestError(err), "got %v", err)
		})
	}
	assert.Empty(t, q.List())
}

func TestQueue_AnnouncesChanges(t *testing.T) {
	b := bus.New()
	ch := b.Subscribe(10)
	q := NewQueue(nil, nil, WithBus(b))
	ctx := context.Background()

	a, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)
	_, _, err = q.MarkStatus(ctx, a.ID, StatusApplied)
	require.NoError(t, err)
	_, _, err = q.MarkStatus(ctx, a.ID, StatusApplied)
	require.NoError(t, err)

	require.Len(t, ch, 2)
	for i := 0; i < 2; i++ {
		ev := <-ch
		assert.Equal(t, bus.KindProposalsChanged, ev.Kind)
	}
}

func TestQueue_PersistsAndReloads(t *testing.T) {
	db := sonartest.CreateTestDB(t)
	clock := newStepClock()
	ctx := context.Background()

	q := NewQueue(NewSQLStore(db), zaptest.NewLogger(t).Sugar(), WithClock(clock.Now))
	a, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)
	_, err = q.Add(ctx, sourcingMove(talent.StageScreening))
	require.NoError(t, err)
	d, err := q.Add(ctx, Action{Agent: talent.AgentInterview, Title: "Activate kit", CandidateID: "cand2", JobID: "job1",
		Payload: ActivateDraft{DraftID: "draft-7"}})
	require.NoError(t, err)
	_, _, err = q.MarkStatus(ctx, d.ID, StatusDismissed)
	require.NoError(t, err)

	reloaded := NewQueue(NewSQLStore(db), nil, WithClock(clock.Now))
	require.NoError(t, reloaded.Load(ctx))

	got, ok := reloaded.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, MoveToStage{From: talent.StageNew, To: talent.StageScreening}, got.Payload)
	assert.Equal(t, []Evidence{{Label: "score", Value: "0.81"}}, got.Evidence)
	assert.Equal(t, a.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	dismissed, ok := reloaded.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, StatusDismissed, dismissed.Status)
	assert.Equal(t, ActivateDraft{DraftID: "draft-7"}, dismissed.Payload)

	assert.Len(t, reloaded.Pending(), 1)
}

func TestQueue_LoadCollapsesDuplicates(t *testing.T) {
	db := sonartest.CreateTestDB(t)
	store := NewSQLStore(db)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	older := sourcingMove(talent.StageSourced)
	older.ID, older.Status, older.CreatedAt, older.UpdatedAt = "p-old", StatusProposed, base, base
	newer := sourcingMove(talent.StageInterview)
	newer.ID, newer.Status = "p-new", StatusProposed
	newer.CreatedAt, newer.UpdatedAt = base.Add(time.Minute), base.Add(time.Minute)
	for _, a := range []Action{older, newer} {
		_, ok := store.Save(ctx, a).Get()
		require.True(t, ok)
	}

	q := NewQueue(store, zaptest.NewLogger(t).Sugar())
	require.NoError(t, q.Load(ctx))

	list := q.List()
	require.Len(t, list, 2)
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "p-old", pending[0].ID)
	assert.Equal(t, base.UnixMilli(), pending[0].CreatedAt.UnixMilli())
	assert.Equal(t, talent.StageInterview, pending[0].Payload.(MoveToStage).To)

	// The entry List shows is the entry Get hands to the apply path
	got, ok := q.Get("p-old")
	require.True(t, ok)
	assert.Equal(t, pending[0].Payload, got.Payload)

	dup, ok := q.Get("p-new")
	require.True(t, ok)
	assert.Equal(t, StatusDismissed, dup.Status)
	assert.Contains(t, dup.Description, "superseded by p-old")

	_, changed, err := q.MarkStatus(ctx, "p-old", StatusApplied)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Empty(t, q.Pending(), "superseded duplicate must not resurface")

	// The collapse was persisted, so a fresh queue agrees
	fresh := NewQueue(store, nil)
	require.NoError(t, fresh.Load(ctx))
	assert.Empty(t, fresh.Pending())
	dup, ok = fresh.Get("p-new")
	require.True(t, ok)
	assert.Equal(t, StatusDismissed, dup.Status)
}

func TestQueue_AddFoldsLoadedDuplicates(t *testing.T) {
	store := NewSQLStore(sonartest.CreateTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"p-1", "p-2", "p-3"} {
		a := sourcingMove(talent.StageLongList)
		a.ID, a.Status = id, StatusProposed
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		a.UpdatedAt = a.CreatedAt
		_, ok := store.Save(ctx, a).Get()
		require.True(t, ok)
	}
	q := NewQueue(store, nil, WithClock(newStepClock().Now))
	require.NoError(t, q.Load(ctx))

	out, err := q.Add(ctx, sourcingMove(talent.StageScreening))
	require.NoError(t, err)
	assert.Equal(t, "p-1", out.ID)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, MoveToStage{From: talent.StageNew, To: talent.StageScreening}, pending[0].Payload)
}

func TestQueue_LoadLogsOneSymbol(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	q := NewQueue(NewSQLStore(sonartest.CreateTestDB(t)), zap.New(core).Sugar())
	require.NoError(t, q.Load(context.Background()))

	entries := logs.FilterMessage("Proposals loaded").All()
	require.Len(t, entries, 1)
	symbols := 0
	for _, f := range entries[0].Context {
		if f.Key == logger.FieldSymbol {
			symbols++
		}
	}
	assert.Equal(t, 1, symbols)
}

func TestQueue_DegradedStoreKeepsWorking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO proposed_actions").WillReturnError(fmt.Errorf("disk I/O error"))
	mock.ExpectQuery("SELECT id, status").WillReturnError(fmt.Errorf("database is locked"))

	q := NewQueue(NewSQLStore(db), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	a, err := q.Add(ctx, sourcingMove(talent.StageLongList))
	require.NoError(t, err)

	err = q.Load(ctx)
	assert.True(t, errors.IsServiceUnavailableError(err))

	got, ok := q.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, StatusProposed, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_ConcurrentAddsCoalesce(t *testing.T) {
	q := NewQueue(nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Add(ctx, sourcingMove(talent.StageLongList))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, q.List(), 1)
}

func TestAction_JSONRoundTripsPayload(t *testing.T) {
	a := sourcingMove(talent.StageScreening)
	a.ID = "p1"
	a.Status = StatusProposed

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"payload":{"kind":"move_to_stage","data":{"from":"new","to":"screening"}}`)

	var back Action
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, a.Payload, back.Payload)
	assert.Equal(t, "p1", back.ID)
}

func TestUnmarshalPayload_UnknownKind(t *testing.T) {
	_, err := UnmarshalPayload([]byte(`{"kind":"delete_everything","data":{}}`))
	assert.True(t, errors.IsInvalidRequestError(err))
}
