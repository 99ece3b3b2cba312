package pushnotify

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	body string
}

func (s *staticSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestDispatchesNamedEvent(t *testing.T) {
	src := &staticSource{body: ": comment\nevent: changed\ndata: hello\ndata: world\n\n"}
	l := NewListener(src)

	var mu sync.Mutex
	var got Event
	done := make(chan struct{})
	l.On("changed", func(e Event) {
		mu.Lock()
		got = e
		mu.Unlock()
		close(done)
	})

	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "changed", got.Name)
	assert.Equal(t, "hello\nworld", got.Data)
}

func TestIgnoresUnregisteredEventAndCommentLines(t *testing.T) {
	src := &staticSource{body: ": ping\nevent: other\ndata: x\n\nevent: changed\n\n"}
	l := NewListener(src)

	var calls int
	done := make(chan struct{})
	l.On("changed", func(Event) {
		calls++
		close(done)
	})

	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
	assert.Equal(t, 1, calls)
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	l := NewListener(&staticSource{})
	l.Stop()
}
