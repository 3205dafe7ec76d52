package persist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

func TestResult(t *testing.T) {
	ok := OK(3)
	v, served := ok.Get()
	assert.True(t, served)
	assert.Equal(t, 3, v)
	assert.False(t, ok.IsDegraded())
	assert.NoError(t, ok.Err("read"))

	down := Degraded[int](fmt.Errorf("connection refused"))
	v, served = down.Get()
	assert.False(t, served)
	assert.Zero(t, v)
	assert.True(t, down.IsDegraded())
	require.Error(t, down.Err("read marks"))
	assert.Contains(t, down.Err("read marks").Error(), "read marks: connection refused")
}

func TestUnavailable(t *testing.T) {
	r := Unavailable[string]()
	assert.True(t, r.IsDegraded())
	assert.True(t, errors.Is(r.Cause(), ErrUnavailable))
	assert.True(t, errors.Is(Degraded[string](nil).Cause(), ErrUnavailable))
}

func TestFrom(t *testing.T) {
	assert.False(t, From("x", nil).IsDegraded())
	assert.True(t, From("", fmt.Errorf("boom")).IsDegraded())
}
