package eventlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	sonartest "github.com/duli1982/aitalentsonardemo-sub003/internal/testing"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

func TestLog_AppendAndListNewestFirst(t *testing.T) {
	log := NewLog(NewSQLStore(sonartest.CreateTestDB(t)), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	log.LogEvent(ctx, Event{CandidateID: "cand1", JobID: "job1", Type: TypeStageMoved, ActorType: ActorAgent,
		ActorID: "sourcing", ToStage: talent.StageSourced, Summary: "sourced", Metadata: map[string]any{"score": 0.8}})
	log.LogEvent(ctx, Event{CandidateID: "cand1", JobID: "job1", Type: TypeStageMoved, ActorType: ActorAgent,
		ActorID: "screening", FromStage: talent.StageSourced, ToStage: talent.StageScreening})
	log.LogEvent(ctx, Event{CandidateID: "cand2", JobID: "job1", Type: TypeAgentDecision})

	events, err := log.ListForCandidate(ctx, "cand1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, talent.StageScreening, events[0].ToStage)
	assert.Equal(t, talent.StageSourced, events[0].FromStage)
	assert.Equal(t, "screening", events[0].ActorID)
	assert.Greater(t, events[0].ID, events[1].ID)
	assert.Equal(t, 0.8, events[1].Metadata["score"])
	assert.False(t, events[1].CreatedAt.IsZero())

	limited, err := log.ListForCandidate(ctx, "cand1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, events[0].ID, limited[0].ID)
}

func TestLog_DefaultsActorToSystem(t *testing.T) {
	log := NewLog(NewSQLStore(sonartest.CreateTestDB(t)), nil)
	ctx := context.Background()

	log.LogEvent(ctx, Event{CandidateID: "cand1", Type: TypeAgentDecision})
	events, err := log.ListForCandidate(ctx, "cand1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActorSystem, events[0].ActorType)
}

func TestLog_SwallowsStoreFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO pipeline_events").WillReturnError(fmt.Errorf("database is locked"))
	mock.ExpectQuery("SELECT id, candidate_id").WillReturnError(fmt.Errorf("database is locked"))

	log := NewLog(NewSQLStore(db), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		log.LogEvent(ctx, Event{CandidateID: "cand1", Type: TypeStageMoved, CreatedAt: time.Now()})
	})

	_, err = log.ListForCandidate(ctx, "cand1", 5)
	require.Error(t, err)
	assert.True(t, errors.IsServiceUnavailableError(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_LocalOnlyWithoutStore(t *testing.T) {
	log := NewLog(nil, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		log.LogEvent(ctx, Event{CandidateID: "cand1", Type: TypeAgentDecision, Summary: fmt.Sprintf("decision %d", i)})
	}
	log.LogEvent(ctx, Event{CandidateID: "cand2", Type: TypeAgentDecision})

	events, err := log.ListForCandidate(ctx, "cand1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "decision 2", events[0].Summary)
	assert.Equal(t, "decision 1", events[1].Summary)
}

func TestLog_LocalOnlyIsBounded(t *testing.T) {
	log := NewLog(nil, nil)
	ctx := context.Background()

	for i := 0; i < localCapacity+10; i++ {
		log.LogEvent(ctx, Event{CandidateID: "cand1", Type: TypeAgentDecision})
	}
	events, err := log.ListForCandidate(ctx, "cand1", 0)
	require.NoError(t, err)
	assert.Len(t, events, localCapacity)
	assert.Equal(t, int64(localCapacity+10), events[0].ID)
}
