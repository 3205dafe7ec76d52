package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	old := CommitHash
	t.Cleanup(func() { CommitHash = old })

	CommitHash = "0123456789abcdef"
	info := Get()
	assert.Equal(t, "0123456", info.Short())
	assert.Contains(t, info.String(), "commit 0123456")
	assert.NotEmpty(t, info.GoVersion)

	CommitHash = "abc"
	assert.Equal(t, "abc", Get().Short())
}
