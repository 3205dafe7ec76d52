// Package provider selects the inference.Scorer described by configuration.
package provider

import (
	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/heuristic"
	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/ai/openrouter"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
)

// NewScorer returns the configured scorer. An openrouter provider without an
// API key falls back to the heuristic scorer with a warning, so a fresh
// checkout runs without credentials.
func NewScorer(cfg am.InferenceConfig, log *zap.SugaredLogger) (inference.Scorer, error) {
	switch cfg.Provider {
	case "", am.ProviderHeuristic:
		return heuristic.New(), nil
	case am.ProviderOpenRouter:
		if cfg.APIKey == "" {
			logger.OrNop(log).Warnw("No OpenRouter API key configured, using heuristic scorer",
				"hint", "set SONAR_INFERENCE_API_KEY or OPENROUTER_API_KEY")
			return heuristic.New(), nil
		}
		return openrouter.NewScorer(openrouter.NewClient(openrouter.ConfigFromAM(cfg, log))), nil
	default:
		return nil, errors.NewInvalidRequestError("unknown inference provider %q", cfg.Provider)
	}
}
