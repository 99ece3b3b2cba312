// Package pushnotify implements the SSE push listener of §4.11: a
// line-based state machine over a text/event-stream body, dispatching
// named events to registered handlers.
package pushnotify

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
)

// Event is what a registered handler receives on dispatch.
type Event struct {
	Name string
	Data string
}

// Handler is invoked, in registration order, for events matching its name.
type Handler func(Event)

// SSESource opens the long-lived event stream; it is the transport seam a
// test double can replace, mirroring internal/configuration's HTTPDoer
// seam (§6 [FULL]).
type SSESource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// httpSSESource is the real transport: a GET against url with the
// Accept: text/event-stream header, consistent with the original SDK's
// notification client.
type httpSSESource struct {
	url    string
	client *http.Client
}

func NewHTTPSSESource(url string, client *http.Client) SSESource {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpSSESource{url: url, client: client}
}

func (s *httpSSESource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errBadStatus(resp.StatusCode)
	}
	return resp.Body, nil
}

type errBadStatus int

func (e errBadStatus) Error() string {
	return "pushnotify: unexpected status from event source"
}

// Listener runs the SSE state machine in a background goroutine; each
// Start opens one stream and one worker, Stop unblocks the in-flight read
// of the most recent Start and joins its worker (§4.11).
type Listener struct {
	source   SSESource
	handlers map[string][]Handler

	cancel context.CancelFunc
	doneCh chan struct{}
}

func NewListener(source SSESource) *Listener {
	return &Listener{source: source, handlers: make(map[string][]Handler)}
}

// On registers handler for eventName, in registration order.
func (l *Listener) On(eventName string, handler Handler) {
	l.handlers[eventName] = append(l.handlers[eventName], handler)
}

// Start opens the stream and begins dispatching events in a background
// goroutine. Reconnection policy is the caller's concern (the core
// orchestrator decides whether/when to restart the listener); Start
// itself makes a single connection attempt and parses until it closes.
func (l *Listener) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	body, err := l.source.Open(ctx)
	if err != nil {
		cancel()
		return err
	}

	l.cancel = cancel
	l.doneCh = make(chan struct{})
	go l.run(body)
	return nil
}

func (l *Listener) run(body io.ReadCloser) {
	defer func() {
		recover()
		body.Close()
		close(l.doneCh)
	}()

	var pendingEvent string
	var pendingData []string

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	dispatch := func() {
		if pendingEvent == "" {
			pendingData = nil
			return
		}
		var data string
		if pendingData != nil {
			data = strings.Join(pendingData, "\n")
		}
		for _, h := range l.handlers[pendingEvent] {
			h(Event{Name: pendingEvent, Data: data})
		}
		pendingEvent = ""
		pendingData = nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment, ignore
		case strings.HasPrefix(line, "event:"):
			pendingEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			pendingData = append(pendingData, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}

// Stop cancels the in-flight read and joins the worker. Safe to call
// without a prior Start.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.doneCh
}
