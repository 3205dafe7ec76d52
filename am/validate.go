package am

import "github.com/duli1982/aitalentsonardemo-sub003/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.Newf("server.port must be positive, got %d", c.Server.Port)
	}

	// Result log: 0 would drop every result, negative is meaningless
	if c.Pulse.ResultLogSize <= 0 {
		return errors.Newf("pulse.result_log_size must be > 0, got %d", c.Pulse.ResultLogSize)
	}

	switch c.Marks.Backend {
	case MarksBackendSQLite, MarksBackendNone:
	case MarksBackendRedis:
		if c.Marks.Redis.Addr == "" {
			return errors.New("marks.redis.addr cannot be empty when marks.backend is redis")
		}
	default:
		return errors.Newf("marks.backend must be sqlite, redis or none, got %q", c.Marks.Backend)
	}
	if c.Marks.TTLSeconds <= 0 {
		return errors.Newf("marks.ttl_seconds must be > 0, got %d", c.Marks.TTLSeconds)
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.Newf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMS < 0 || c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.Newf("retry delays must satisfy 0 <= base_delay_ms (%d) <= max_delay_ms (%d)",
			c.Retry.BaseDelayMS, c.Retry.MaxDelayMS)
	}

	switch c.Inference.Provider {
	case ProviderHeuristic:
	case ProviderOpenRouter:
		if c.Inference.Model == "" {
			return errors.New("inference.model cannot be empty for openrouter")
		}
		if c.Inference.TimeoutSeconds <= 0 {
			return errors.Newf("inference.timeout_seconds must be > 0, got %d", c.Inference.TimeoutSeconds)
		}
	default:
		return errors.Newf("inference.provider must be heuristic or openrouter, got %q", c.Inference.Provider)
	}
	if c.Inference.RequestsPerMinute < 0 {
		return errors.Newf("inference.requests_per_minute must be >= 0, got %d", c.Inference.RequestsPerMinute)
	}

	if c.Scheduling.NegotiationDelayMS < 0 {
		return errors.Newf("scheduling.negotiation_delay_ms must be >= 0, got %d", c.Scheduling.NegotiationDelayMS)
	}

	for name, agent := range c.Agents {
		if agent.Mode != ModeAutoWrite && agent.Mode != ModeRecommend {
			return errors.Newf("agents.%s.mode must be auto_write or recommend, got %q", name, agent.Mode)
		}
		if agent.Enabled && agent.IntervalSeconds <= 0 && agent.Cron == "" {
			return errors.Newf("agents.%s needs interval_seconds > 0 or a cron expression", name)
		}
		if agent.Threshold < 0 || agent.Threshold > 1 || agent.LowerThreshold < 0 || agent.LowerThreshold > agent.Threshold {
			return errors.Newf("agents.%s thresholds must satisfy 0 <= lower_threshold <= threshold <= 1", name)
		}
	}

	return nil
}
