package logger

import (
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
	"go.uber.org/zap"
)

// Symbol-aware logger wrappers.
// The glyph is carried as a structured field, not in the message, so logs
// stay queryable by symbol:
//
//	l := logger.AddPulseSymbol(baseLogger)
//	l.Infow("Job started", "job_id", id)

// AddPulseSymbol wraps a logger with the Pulse symbol (꩜)
func AddPulseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Pulse)
}

// AddPulseOpenSymbol wraps a logger with the PulseOpen symbol (✿)
func AddPulseOpenSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.PulseOpen)
}

// AddPulseCloseSymbol wraps a logger with the PulseClose symbol (❀)
func AddPulseCloseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.PulseClose)
}

// AddDBSymbol wraps a logger with the DB symbol (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// AddMarkSymbol wraps a logger with the processing mark symbol (⚑)
func AddMarkSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Mark)
}

// AddAgentSymbol wraps a logger with the agent's glyph and name
func AddAgentSymbol(l *zap.SugaredLogger, agentType string) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.ForAgent(agentType), FieldAgent, agentType)
}
