package reporting

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	d := NewDebouncer(20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	time.Sleep(80 * time.Millisecond)
	d.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDebouncerStopBeforeFire(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	d := NewDebouncer(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	d.Trigger()
	d.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDebouncerIdempotentStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDebouncer(10*time.Millisecond, func() {})
	d.Stop()
	d.Stop()
}
