package schedule

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultLog_EvictsOldest(t *testing.T) {
	l := NewResultLog(3)
	for i := 1; i <= 5; i++ {
		l.Append(Result{JobID: "job", Message: fmt.Sprintf("run %d", i)})
	}

	assert.Equal(t, 3, l.Len())
	recent := l.Recent("job", 0)
	require.Len(t, recent, 3)
	assert.Equal(t, "run 5", recent[0].Message)
	assert.Equal(t, "run 3", recent[2].Message)
}

func TestResultLog_FiltersAndLimits(t *testing.T) {
	l := NewResultLog(10)
	l.Append(Result{JobID: "a", Message: "a1"})
	l.Append(Result{JobID: "b", Message: "b1"})
	l.Append(Result{JobID: "a", Message: "a2"})

	a := l.Recent("a", 1)
	require.Len(t, a, 1)
	assert.Equal(t, "a2", a[0].Message)

	assert.Len(t, l.Recent("", 0), 3)
	assert.Empty(t, l.Recent("missing", 5))
}

func TestResultLog_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultResultLogSize, NewResultLog(0).Cap())
}
