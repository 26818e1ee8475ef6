package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForValue(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42
	assert.Equal(t, 42, WaitForValue(t, ch, ShortTestTimeout, "no value"))
}

func TestWaitForChannel(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	WaitForChannel(t, ch, ShortTestTimeout, "channel never closed")
}

func TestPollReturnsLastValue(t *testing.T) {
	calls := 0
	got := Poll(t, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("not ready")
		}
		return calls, nil
	}, func(v int) bool { return v >= 3 }, "never reached 3")

	assert.Equal(t, 3, got)
}
