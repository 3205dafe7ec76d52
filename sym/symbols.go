// Package sym defines the canonical glyphs sonar attaches to log lines and
// bus notifications. They are stable across CLI output and the operator UI.
package sym

// System infrastructure symbols.
const (
	Pulse      = "꩜" // scheduler, job runs, retries
	PulseOpen  = "✿" // graceful startup
	PulseClose = "❀" // graceful shutdown
	DB         = "⊔" // database/storage layer
	AM         = "≡" // configuration
	Mark       = "⚑" // processing marks
	Proposal   = "⟶" // proposed actions awaiting a human
	Event      = "✦" // pipeline event log
)

// Agent symbols, keyed by agent type name.
const (
	Sourcing   = "⨳"
	Screening  = "⋈"
	Scheduling = "⌚"
	Interview  = "⌬"
	Analytics  = "⊨"
)

// AgentSymbols maps agent type names to their glyph.
var AgentSymbols = map[string]string{
	"sourcing":   Sourcing,
	"screening":  Screening,
	"scheduling": Scheduling,
	"interview":  Interview,
	"analytics":  Analytics,
}

// ForAgent returns the glyph for an agent type, or Pulse for unknown agents.
func ForAgent(agentType string) string {
	if s, ok := AgentSymbols[agentType]; ok {
		return s
	}
	return Pulse
}
