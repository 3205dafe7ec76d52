package am

// Config represents the core sonar configuration
type Config struct {
	Database   DatabaseConfig         `mapstructure:"database" toml:"database"`
	Server     ServerConfig           `mapstructure:"server" toml:"server"`
	Pulse      PulseConfig            `mapstructure:"pulse" toml:"pulse"`
	Marks      MarksConfig            `mapstructure:"marks" toml:"marks"`
	Retry      RetryConfig            `mapstructure:"retry" toml:"retry"`
	Inference  InferenceConfig        `mapstructure:"inference" toml:"inference"`
	Scheduling SchedulingConfig       `mapstructure:"scheduling" toml:"scheduling"`
	Agents     map[string]AgentConfig `mapstructure:"agents" toml:"agents"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ServerConfig configures the operator HTTP API
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// PulseConfig configures the background job scheduler
type PulseConfig struct {
	ResultLogSize int `mapstructure:"result_log_size" toml:"result_log_size"` // Run results kept per scheduler (default: 200)
}

// MarksConfig configures the processing mark store
type MarksConfig struct {
	Backend    string      `mapstructure:"backend" toml:"backend"`         // sqlite | redis | none
	TTLSeconds int         `mapstructure:"ttl_seconds" toml:"ttl_seconds"` // Age after which a started mark is reclaimable
	Redis      RedisConfig `mapstructure:"redis" toml:"redis"`
}

// RedisConfig configures the redis mark backend
type RedisConfig struct {
	Addr      string `mapstructure:"addr" toml:"addr"`
	Password  string `mapstructure:"password" toml:"password"`
	DB        int    `mapstructure:"db" toml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" toml:"key_prefix"`
}

// RetryConfig configures retries of transient collaborator failures
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" toml:"max_attempts"` // Total attempts including the first
	BaseDelayMS int `mapstructure:"base_delay_ms" toml:"base_delay_ms"`
	MaxDelayMS  int `mapstructure:"max_delay_ms" toml:"max_delay_ms"`
}

// InferenceConfig configures the scoring collaborator
type InferenceConfig struct {
	Provider          string   `mapstructure:"provider" toml:"provider"` // heuristic | openrouter
	BaseURL           string   `mapstructure:"base_url" toml:"base_url"`
	APIKey            string   `mapstructure:"api_key" toml:"api_key"`
	Model             string   `mapstructure:"model" toml:"model"`
	Temperature       *float64 `mapstructure:"temperature" toml:"temperature,omitempty"` // nil = default 0.2
	MaxTokens         *int     `mapstructure:"max_tokens" toml:"max_tokens,omitempty"`   // nil = default 600
	RequestsPerMinute int      `mapstructure:"requests_per_minute" toml:"requests_per_minute"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// SchedulingConfig configures the interview slot negotiation
type SchedulingConfig struct {
	NegotiationDelayMS int `mapstructure:"negotiation_delay_ms" toml:"negotiation_delay_ms"` // Simulated round-trip with the candidate
}

// AgentConfig is the per-agent policy. Switching Mode is a policy change only.
type AgentConfig struct {
	Enabled         bool    `mapstructure:"enabled" toml:"enabled"`
	Mode            string  `mapstructure:"mode" toml:"mode"` // auto_write | recommend
	IntervalSeconds int     `mapstructure:"interval_seconds" toml:"interval_seconds"`
	Cron            string  `mapstructure:"cron" toml:"cron,omitempty"` // Overrides interval when set
	Threshold       float64 `mapstructure:"threshold" toml:"threshold"`
	LowerThreshold  float64 `mapstructure:"lower_threshold" toml:"lower_threshold,omitempty"` // Screening long-list floor
}

// Agent modes
const (
	ModeAutoWrite = "auto_write"
	ModeRecommend = "recommend"
)

// Mark backends
const (
	MarksBackendSQLite = "sqlite"
	MarksBackendRedis  = "redis"
	MarksBackendNone   = "none"
)

// Inference providers
const (
	ProviderHeuristic  = "heuristic"
	ProviderOpenRouter = "openrouter"
)

// AgentNames lists the agents the daemon registers, in registration order.
var AgentNames = []string{"sourcing", "screening", "scheduling", "interview", "analytics"}

// Agent returns the policy for name, or a disabled zero config.
func (c *Config) Agent(name string) AgentConfig {
	if c.Agents == nil {
		return AgentConfig{}
	}
	return c.Agents[name]
}

const (
	DefaultServerPort     = 7720
	DefaultDirPermissions = 0755 // Standard directory permissions (rwxr-xr-x)
	ConfigFileName        = "sonar.toml"
)
