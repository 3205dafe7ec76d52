package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "sonar.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	// Pulse defaults
	v.SetDefault("pulse.result_log_size", 200)

	// Processing marks
	v.SetDefault("marks.backend", MarksBackendSQLite)
	v.SetDefault("marks.ttl_seconds", 600) // 10 minutes before a started mark is reclaimable
	v.SetDefault("marks.redis.addr", "localhost:6379")
	v.SetDefault("marks.redis.db", 0)
	v.SetDefault("marks.redis.key_prefix", "sonar:marks:")

	// Retry: two attempts total, exponential backoff with jitter
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 8000)

	// Inference defaults
	v.SetDefault("inference.provider", ProviderHeuristic)
	v.SetDefault("inference.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("inference.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("inference.temperature", 0.2)
	v.SetDefault("inference.max_tokens", 600)
	v.SetDefault("inference.requests_per_minute", 30)
	v.SetDefault("inference.timeout_seconds", 60)

	// Scheduling agent
	v.SetDefault("scheduling.negotiation_delay_ms", 1500)

	// Agents
	v.SetDefault("agents.sourcing.enabled", true)
	v.SetDefault("agents.sourcing.mode", ModeAutoWrite)
	v.SetDefault("agents.sourcing.interval_seconds", 300)
	v.SetDefault("agents.sourcing.threshold", 0.55)

	v.SetDefault("agents.screening.enabled", true)
	v.SetDefault("agents.screening.mode", ModeRecommend)
	v.SetDefault("agents.screening.interval_seconds", 600)
	v.SetDefault("agents.screening.threshold", 0.7)
	v.SetDefault("agents.screening.lower_threshold", 0.35)

	v.SetDefault("agents.scheduling.enabled", true)
	v.SetDefault("agents.scheduling.mode", ModeRecommend)
	v.SetDefault("agents.scheduling.interval_seconds", 900)

	v.SetDefault("agents.interview.enabled", true)
	v.SetDefault("agents.interview.mode", ModeRecommend)
	v.SetDefault("agents.interview.interval_seconds", 900)

	v.SetDefault("agents.analytics.enabled", true)
	v.SetDefault("agents.analytics.mode", ModeAutoWrite)
	v.SetDefault("agents.analytics.interval_seconds", 3600)
	v.SetDefault("agents.analytics.cron", "") // e.g. "0 2 * * *" for a nightly report
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// SONAR_INFERENCE_API_KEY via AutomaticEnv; OPENROUTER_API_KEY as the conventional fallback
	v.BindEnv("inference.api_key", "SONAR_INFERENCE_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("marks.redis.password", "SONAR_MARKS_REDIS_PASSWORD")
}
