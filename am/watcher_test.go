package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

func startWatcher(t *testing.T, path string) <-chan string {
	t.Helper()
	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.debounce = 10 * time.Millisecond
	cw.load = func() (*Config, error) { return LoadFromFile(path) }

	modes := make(chan string, 4)
	cw.OnReload(func(cfg *Config) error {
		modes <- cfg.Agent("sourcing").Mode
		return nil
	})
	cw.Start()
	t.Cleanup(func() { _ = cw.Stop() })
	return modes
}

func writeConfig(t *testing.T, path, mode string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("[agents.sourcing]\nmode = \""+mode+"\"\n"), 0644))
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	writeConfig(t, path, ModeAutoWrite)
	modes := startWatcher(t, path)

	writeConfig(t, path, ModeRecommend)

	select {
	case mode := <-modes:
		assert.Equal(t, ModeRecommend, mode)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked")
	}
}

func TestConfigWatcher_ReloadsOnRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	writeConfig(t, path, ModeAutoWrite)
	modes := startWatcher(t, path)

	tmp := filepath.Join(dir, ".sonar.toml.swp")
	writeConfig(t, tmp, ModeRecommend)
	require.NoError(t, os.Rename(tmp, path))

	select {
	case mode := <-modes:
		assert.Equal(t, ModeRecommend, mode)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked after rename")
	}
}

func TestConfigWatcher_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	writeConfig(t, path, ModeAutoWrite)
	modes := startWatcher(t, path)

	writeConfig(t, path, "yolo")

	select {
	case mode := <-modes:
		t.Fatalf("invalid config reached callbacks with mode %q", mode)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestConfigWatcher_MissingFile(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "absent.toml"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}
