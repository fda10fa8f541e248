package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type frame struct {
	mt   int
	data []byte
}

type readResult struct {
	mt   int
	data []byte
	err  error
}

// fakeConn is an in-memory Conn. Tests push inbound frames with send and
// inspect what the session wrote with frames.
type fakeConn struct {
	reads chan readResult
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	writes []frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads: make(chan readResult, 64),
		done:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.reads:
		return r.mt, r.data, r.err
	case <-c.done:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	if c.isClosed() {
		return net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, frame{mt: mt, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sendText(s string) {
	c.reads <- readResult{mt: websocket.TextMessage, data: []byte(s)}
}

func (c *fakeConn) sendBinary(b []byte) {
	c.reads <- readResult{mt: websocket.BinaryMessage, data: b}
}

func (c *fakeConn) fail(err error) {
	c.reads <- readResult{err: err}
}

func (c *fakeConn) frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.writes...)
}

// payloads decodes every written JSON frame; non-JSON frames are skipped.
func (c *fakeConn) payloads() []map[string]any {
	var out []map[string]any
	for _, f := range c.frames() {
		var m map[string]any
		if json.Unmarshal(f.data, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, p := range c.payloads() {
		if p["type"] == typ {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeConn) waitFrames(t *testing.T, n int) []frame {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.frames()) >= n }, 2*time.Second, 5*time.Millisecond)
	return c.frames()
}

func (c *fakeConn) waitClosed(t *testing.T) {
	t.Helper()
	require.Eventually(t, c.isClosed, 2*time.Second, 5*time.Millisecond)
}

type toolCallRecord struct {
	callerID uuid.UUID
	call     ToolCall
}

type fakeDispatcher struct {
	supported map[string]bool
	outcome   ToolOutcome
	err       error
	delay     time.Duration

	mu    sync.Mutex
	calls []toolCallRecord
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		supported: map[string]bool{ToolSaveProfileFacts: true, ToolSaveSessionSummary: true},
		outcome:   ToolOutcome{Success: true, Message: "saved"},
	}
}

func (d *fakeDispatcher) Supports(name string) bool {
	return d.supported[name]
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, callerID uuid.UUID, call ToolCall) (ToolOutcome, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ToolOutcome{}, ctx.Err()
		}
	}
	d.mu.Lock()
	d.calls = append(d.calls, toolCallRecord{callerID: callerID, call: call})
	d.mu.Unlock()
	return d.outcome, d.err
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeSink struct {
	mu      sync.Mutex
	records []ActivityRecord
	failN   int
	calls   int
}

func (s *fakeSink) SaveActivity(_ context.Context, r ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failN {
		return errors.New("storage unavailable")
	}
	s.records = append(s.records, r)
	return nil
}

func (s *fakeSink) saved() []ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActivityRecord(nil), s.records...)
}

func (s *fakeSink) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeObserver struct {
	mu      sync.Mutex
	started []SessionInfo
	ended   []string
}

func (o *fakeObserver) SessionStarted(_ context.Context, info SessionInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, info)
}

func (o *fakeObserver) SessionEnded(_ context.Context, _ SessionInfo, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, reason)
}

// gatedObserver holds SessionStarted until release is closed.
type gatedObserver struct {
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []string
}

func newGatedObserver() *gatedObserver {
	return &gatedObserver{release: make(chan struct{})}
}

func (o *gatedObserver) open() {
	o.once.Do(func() { close(o.release) })
}

func (o *gatedObserver) SessionStarted(ctx context.Context, _ SessionInfo) {
	select {
	case <-o.release:
	case <-ctx.Done():
	}
	o.record("started")
}

func (o *gatedObserver) SessionEnded(_ context.Context, _ SessionInfo, _ string) {
	o.record("ended")
}

func (o *gatedObserver) record(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *gatedObserver) recorded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	session  *Session
	client   *fakeConn
	upstream *fakeConn
	done     chan error
}

func startSession(t *testing.T, p Params) *harness {
	t.Helper()

	h := &harness{
		client:   newFakeConn(),
		upstream: newFakeConn(),
		done:     make(chan error, 1),
	}
	p.Client = h.client
	if p.AgentID == "" {
		p.AgentID = "agent_test"
	}
	h.session = NewSession(p)

	go func() {
		h.done <- h.session.Run(context.Background(), func(context.Context) (Conn, error) {
			return h.upstream, nil
		})
	}()

	// connected ack
	h.client.waitFrames(t, 1)
	t.Cleanup(func() {
		_ = h.client.Close()
		_ = h.upstream.Close()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func callerID() *uuid.UUID {
	id := uuid.MustParse("6f1c2b7e-4a7d-4a57-9d55-0c1f1d2b3a4e")
	return &id
}
