package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/duli1982/aitalentsonardemo-sub003/sym"
)

func TestInitialize(t *testing.T) {
	t.Cleanup(func() { Logger = zap.NewNop().Sugar() })

	t.Run("console output", func(t *testing.T) {
		require.NoError(t, Initialize(false, VerbosityInfo))
		assert.False(t, JSONOutput)
		assert.NotNil(t, Logger)
	})

	t.Run("json output", func(t *testing.T) {
		require.NoError(t, Initialize(true, VerbosityDebug))
		assert.True(t, JSONOutput)
		assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	})
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
	assert.Equal(t, "Info (-v)", LevelName(1))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample().Sugar()
	assert.Same(t, l, OrNop(l))
}

func TestSymbolHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	AddAgentSymbol(base, "screening").Infow("scored")
	AddPulseSymbol(base).Infow("tick")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, sym.Screening, entries[0].ContextMap()[FieldSymbol])
	assert.Equal(t, "screening", entries[0].ContextMap()[FieldAgent])
	assert.Equal(t, sym.Pulse, entries[1].ContextMap()[FieldSymbol])
}

func TestFieldsFromContext(t *testing.T) {
	ctx := WithJobID(context.Background(), "sourcing")
	ctx = WithRequestID(ctx, "req-1")

	fields := FieldsFromContext(ctx)
	assert.Equal(t, []interface{}{FieldJobID, "sourcing", FieldRequestID, "req-1"}, fields)
	assert.Empty(t, FieldsFromContext(context.Background()))
}
