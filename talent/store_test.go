package talent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	sonartest "github.com/duli1982/aitalentsonardemo-sub003/internal/testing"
)

func seed(t *testing.T, s *SQLStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertCandidate(ctx, Candidate{ID: "cand1", Name: "Ada", Skills: []string{"go", "sql"}}))
	require.NoError(t, s.UpsertCandidate(ctx, Candidate{ID: "cand2", Name: "Grace", Skills: []string{"cobol"}}))
	require.NoError(t, s.UpsertPosting(ctx, Posting{ID: "job1", Title: "Backend Engineer", RequiredSkills: []string{"go"}, Open: true}))
	require.NoError(t, s.UpsertPosting(ctx, Posting{ID: "job2", Title: "Archivist", Open: false}))
}

func TestSQLStore_Snapshot(t *testing.T) {
	s := NewSQLStore(sonartest.CreateTestDB(t))
	seed(t, s)
	ctx := context.Background()

	_, err := s.SetStage(ctx, "cand1", "job1", StageSourced)
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Candidates, 2)
	assert.Equal(t, []string{"go", "sql"}, snap.Candidates[0].Skills)
	require.Len(t, snap.Postings, 2)
	assert.Len(t, snap.OpenPostings(), 1)

	stage, ok := snap.StageOf("cand1", "job1")
	assert.True(t, ok)
	assert.Equal(t, StageSourced, stage)
	_, ok = snap.StageOf("cand2", "job1")
	assert.False(t, ok)

	assert.Len(t, snap.InStage("job1", StageSourced, StageNew), 1)
}

func TestSQLStore_SetStage(t *testing.T) {
	s := NewSQLStore(sonartest.CreateTestDB(t))
	seed(t, s)
	ctx := context.Background()

	from, err := s.SetStage(ctx, "cand1", "job1", StageSourced)
	require.NoError(t, err)
	assert.Equal(t, Stage(""), from)

	from, err = s.SetStage(ctx, "cand1", "job1", StageScreening)
	require.NoError(t, err)
	assert.Equal(t, StageSourced, from)

	_, err = s.SetStage(ctx, "cand1", "job1", Stage("limbo"))
	assert.True(t, errors.IsInvalidRequestError(err))

	// Foreign keys reject unknown candidates
	_, err = s.SetStage(ctx, "ghost", "job1", StageNew)
	assert.Error(t, err)
}

func TestSQLStore_VerifiedSkills(t *testing.T) {
	s := NewSQLStore(sonartest.CreateTestDB(t))
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetVerifiedSkills(ctx, "cand1", []string{"go"}))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	c, ok := snap.Candidate("cand1")
	require.True(t, ok)
	assert.Equal(t, []string{"go"}, c.VerifiedSkills)

	err = s.SetVerifiedSkills(ctx, "ghost", []string{"go"})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSQLStore_ActivateDraft(t *testing.T) {
	s := NewSQLStore(sonartest.CreateTestDB(t))
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveDraft(ctx, Draft{ID: "d1", CandidateID: "cand1", JobID: "job1", Content: "kit v1", Active: true}))
	require.NoError(t, s.SaveDraft(ctx, Draft{ID: "d2", CandidateID: "cand1", JobID: "job1", Content: "kit v2"}))

	d, err := s.ActivateDraft(ctx, "d2")
	require.NoError(t, err)
	assert.True(t, d.Active)
	assert.Equal(t, "kit v2", d.Content)

	var active int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM interview_drafts WHERE active = 1`).Scan(&active))
	assert.Equal(t, 1, active)

	var activeID string
	require.NoError(t, s.db.QueryRow(`SELECT id FROM interview_drafts WHERE active = 1`).Scan(&activeID))
	assert.Equal(t, "d2", activeID)

	_, err = s.ActivateDraft(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStage(t *testing.T) {
	assert.True(t, StageInterview.Valid())
	assert.False(t, Stage("limbo").Valid())
	assert.Less(t, StageSourced.Rank(), StageScreening.Rank())

	st, err := ParseStage("long_list")
	require.NoError(t, err)
	assert.Equal(t, StageLongList, st)
	_, err = ParseStage("nope")
	assert.Error(t, err)
}

func TestUpsertValidation(t *testing.T) {
	s := NewSQLStore(sonartest.CreateTestDB(t))
	assert.True(t, errors.IsInvalidRequestError(s.UpsertCandidate(context.Background(), Candidate{ID: "x"})))
	assert.True(t, errors.IsInvalidRequestError(s.UpsertPosting(context.Background(), Posting{Title: "t"})))
}
