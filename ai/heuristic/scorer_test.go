package heuristic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

func TestScore(t *testing.T) {
	posting := talent.Posting{ID: "job1", Title: "Backend Engineer", RequiredSkills: []string{"Go", "SQL", "Kubernetes", "go"}}

	tests := []struct {
		name      string
		candidate talent.Candidate
		want      float64
		matched   []string
	}{
		{
			name:      "full match, senior",
			candidate: talent.Candidate{Skills: []string{"go ", "sql", "kubernetes"}, YearsExperience: 8},
			want:      1.0,
			matched:   []string{"Go", "SQL", "Kubernetes"},
		},
		{
			name:      "partial match, junior",
			candidate: talent.Candidate{Skills: []string{"Go,"}, YearsExperience: 0},
			want:      0.8 / 3,
			matched:   []string{"Go"},
		},
		{
			name:      "no overlap, some experience",
			candidate: talent.Candidate{Skills: []string{"php"}, YearsExperience: 5},
			want:      0.2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New().Score(context.Background(), tt.candidate, posting)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, a.Score, 1e-9)
			assert.Equal(t, tt.matched, a.MatchedSkills)
			assert.Len(t, a.MatchedSkills, len(tt.matched))
			assert.Len(t, a.MissingSkills, 3-len(tt.matched))
		})
	}
}

func TestScore_PostingWithoutSkills(t *testing.T) {
	a, err := New().Score(context.Background(), talent.Candidate{YearsExperience: 10}, talent.Posting{})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, a.Score, 1e-9)
}

func TestScore_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Score(ctx, talent.Candidate{}, talent.Posting{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	kit, err := New().Summarize(context.Background(),
		talent.Candidate{Name: "Ada", Skills: []string{"go"}, YearsExperience: 3},
		talent.Posting{Title: "Backend Engineer", RequiredSkills: []string{"Go", "Rust"}})
	require.NoError(t, err)
	assert.Contains(t, kit, "Interview kit: Ada for Backend Engineer")
	assert.Contains(t, kit, "relied on Go")
	assert.Contains(t, kit, "productive with Rust")
}
