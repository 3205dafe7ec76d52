package sym

import (
	"testing"
	"unicode/utf8"
)

func TestAgentSymbolsAreSingleGlyphs(t *testing.T) {
	seen := map[string]string{}
	for agent, glyph := range AgentSymbols {
		if n := utf8.RuneCountInString(glyph); n != 1 {
			t.Errorf("symbol for %q has %d runes, want 1", agent, n)
		}
		if other, dup := seen[glyph]; dup {
			t.Errorf("symbol %q shared by %q and %q", glyph, agent, other)
		}
		seen[glyph] = agent
	}
}

func TestForAgent(t *testing.T) {
	if got := ForAgent("screening"); got != Screening {
		t.Errorf("ForAgent(screening) = %q, want %q", got, Screening)
	}
	if got := ForAgent("unknown"); got != Pulse {
		t.Errorf("ForAgent(unknown) = %q, want %q", got, Pulse)
	}
}
