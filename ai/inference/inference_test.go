package inference

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/retry"
)

func TestFailure_DrivesRetryDecisions(t *testing.T) {
	cause := fmt.Errorf("503 service unavailable")

	transient := &Failure{Op: "score", Transient: true, RetryAfter: 2 * time.Second, Err: cause}
	wrapped := errors.Wrap(transient, "screening cand1")
	assert.True(t, retry.IsRetryable(wrapped))
	hint, ok := retry.RetryAfter(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, hint)
	assert.True(t, errors.Is(wrapped, cause))

	assert.False(t, retry.IsRetryable(Permanent("score", cause)))
	assert.Equal(t, "score: 503 service unavailable", Transient("score", cause).Error())
}
