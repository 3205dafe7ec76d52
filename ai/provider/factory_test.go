package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/heuristic"
	"github.com/duli1982/aitalentsonardemo-sub003/ai/openrouter"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

func TestNewScorer(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	s, err := NewScorer(am.InferenceConfig{Provider: am.ProviderHeuristic}, log)
	require.NoError(t, err)
	assert.IsType(t, heuristic.Scorer{}, s)

	s, err = NewScorer(am.InferenceConfig{Provider: am.ProviderOpenRouter}, log)
	require.NoError(t, err)
	assert.IsType(t, heuristic.Scorer{}, s, "missing key falls back")

	s, err = NewScorer(am.InferenceConfig{Provider: am.ProviderOpenRouter, APIKey: "k", Model: "m", TimeoutSeconds: 5}, log)
	require.NoError(t, err)
	assert.IsType(t, &openrouter.Scorer{}, s)

	_, err = NewScorer(am.InferenceConfig{Provider: "anthropic"}, log)
	assert.True(t, errors.IsInvalidRequestError(err))
}
