package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.delays = append(s.delays, d)
}

func (s *sleepRecorder) total() time.Duration {
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func newTestRetrier(t *testing.T, attempts int, backoff time.Duration, pred func(error) bool) (*Retrier, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	r, err := New(Policy{Attempts: attempts, Backoff: backoff, Retryable: pred}, WithSleep(rec.sleep))
	require.NoError(t, err)
	return r, rec
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{name: "zero_attempts", policy: Policy{Attempts: 0, Backoff: time.Second}},
		{name: "negative_attempts", policy: Policy{Attempts: -2}},
		{name: "negative_backoff", policy: Policy{Attempts: 1, Backoff: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.policy)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestMustNewPanicsOnInvalidPolicy(t *testing.T) {
	assert.Panics(t, func() { MustNew(Policy{}) })
	assert.NotPanics(t, func() { MustNew(Policy{Attempts: 1}) })
}

func TestExecuteAlwaysFailingInvokesExactlyNTimes(t *testing.T) {
	for _, attempts := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("attempts_%d", attempts), func(t *testing.T) {
			r, rec := newTestRetrier(t, attempts, 100*time.Millisecond, OnErrors(errTransient))

			calls := 0
			var last error
			err := r.Execute("always_failing", func() error {
				calls++
				last = fmt.Errorf("attempt %d: %w", calls, errTransient)
				return last
			})

			assert.Equal(t, attempts, calls)
			assert.Same(t, last, err, "the last failure is returned unchanged")
			assert.Len(t, rec.delays, attempts-1)
		})
	}
}

func TestExecuteSingleAttemptNeverSleeps(t *testing.T) {
	r, rec := newTestRetrier(t, 1, time.Second, nil)

	calls := 0
	err := r.Execute("once", func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDoSucceedsOnAttemptK(t *testing.T) {
	const backoff = 100 * time.Millisecond

	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("success_on_%d", k), func(t *testing.T) {
			r, rec := newTestRetrier(t, 4, backoff, OnErrors(errTransient))

			calls := 0
			got, err := Do(r, "eventually", func() (string, error) {
				calls++
				if calls < k {
					return "", errTransient
				}
				return "success", nil
			})

			require.NoError(t, err)
			assert.Equal(t, "success", got)
			assert.Equal(t, k, calls)

			var expected time.Duration
			for i := 1; i < k; i++ {
				expected += backoff * time.Duration(i)
			}
			assert.Equal(t, expected, rec.total())
		})
	}
}

func TestLinearBackoffSequence(t *testing.T) {
	r, rec := newTestRetrier(t, 4, 250*time.Millisecond, nil)

	_ = r.Execute("linear", func() error { return errTransient })

	assert.Equal(t, []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		750 * time.Millisecond,
	}, rec.delays)
}

func TestNonRetryableFailurePropagatesImmediately(t *testing.T) {
	r, rec := newTestRetrier(t, 5, time.Second, OnErrors(errTransient))

	calls := 0
	err := r.Execute("fatal", func() error {
		calls++
		return errFatal
	})

	assert.Same(t, errFatal, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestNonRetryableAfterRetryableStops(t *testing.T) {
	r, rec := newTestRetrier(t, 5, time.Second, OnErrors(errTransient))

	calls := 0
	err := r.Execute("mixed", func() error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return errFatal
	})

	assert.Same(t, errFatal, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)
}

func TestZeroBackoffSkipsSleep(t *testing.T) {
	r, rec := newTestRetrier(t, 3, 0, nil)

	calls := 0
	err := r.Execute("no_backoff", func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Empty(t, rec.delays)
}

func TestObserverCalledPerScheduledRetry(t *testing.T) {
	type call struct {
		attempt int
		delay   time.Duration
	}
	var observed []call

	rec := &sleepRecorder{}
	r, err := New(Policy{Attempts: 3, Backoff: time.Second},
		WithSleep(rec.sleep),
		WithObserver(func(name string, attempt int, delay time.Duration, err error) {
			assert.Equal(t, "observed", name)
			assert.ErrorIs(t, err, errTransient)
			observed = append(observed, call{attempt, delay})
		}),
	)
	require.NoError(t, err)

	_ = r.Execute("observed", func() error { return errTransient })

	assert.Equal(t, []call{{1, time.Second}, {2, 2 * time.Second}}, observed)
}

func TestRealSleepIsUsedByDefault(t *testing.T) {
	r, err := New(Policy{Attempts: 2, Backoff: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_ = r.Execute("real_sleep", func() error { return errTransient })

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", errTransient)

	assert.True(t, Always()(errFatal))
	assert.True(t, OnErrors(errTransient)(wrapped))
	assert.False(t, OnErrors(errTransient)(errFatal))
	assert.False(t, OnErrors()(errTransient))
	assert.True(t, Not(OnErrors(errTransient))(errFatal))
}

func TestPolicyAndDelayAccessors(t *testing.T) {
	r := MustNew(Policy{Attempts: DefaultAttempts, Backoff: DefaultBackoff})

	assert.Equal(t, 3, r.Policy().Attempts)
	assert.Equal(t, 3*time.Second, r.Delay(3))
}
