package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestTaskInvokesRepeatedly(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	task := New(5*time.Millisecond, func() { atomic.AddInt32(&calls, 1) }, nil)

	time.Sleep(40 * time.Millisecond)
	task.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestTaskEnforcesMinimumInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	task := New(time.Millisecond, func() { atomic.AddInt32(&calls, 1) }, nil)
	defer task.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTaskStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	task := New(5*time.Millisecond, func() {}, nil)
	task.Stop()
	task.Stop()
}
