package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ai-salescoach-be/internal/pkg/logger"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const logModule = "VoiceRelay"

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	default:
		return "CLOSED"
	}
}

type Config struct {
	// InitiationDelay is how long to wait after `connected` before starting the
	// upstream conversation. Zero sends it immediately.
	InitiationDelay  time.Duration
	WriteTimeout     time.Duration
	MaxFrameBytes    int64
	FlushInterval    time.Duration
	FlushTimeout     time.Duration
	ObserverTimeout  time.Duration
	ToolTimeout      time.Duration
	MaxToolsInFlight int64
}

// DialFunc opens the upstream connection.
type DialFunc func(ctx context.Context) (Conn, error)

type Params struct {
	ID             string
	CoachReference string
	AgentID        string
	VoiceID        string
	CallerID       *uuid.UUID
	Client         Conn
	Tools          ToolDispatcher
	Sink           ActivitySink
	Observer       Observer
	Logger         logger.ILogger
	Config         Config
	Now            func() time.Time
}

type side int

const (
	sideClient side = iota
	sideUpstream
)

// Session relays one client connection to one upstream conversation.
// It owns both connections and is the only place that tears them down.
type Session struct {
	info     SessionInfo
	cfg      Config
	tools    ToolDispatcher
	sink     ActivitySink
	observer Observer
	logger   logger.ILogger
	now      func() time.Time

	client   *endpoint
	upstream *endpoint

	state    atomic.Int32
	activity *ActivityBuffer
	slots    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu        sync.Mutex
	endReason string
	cause     error
	initTimer *time.Timer
}

func NewSession(p Params) *Session {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Logger == nil {
		p.Logger = logger.NewNopLogger()
	}
	if p.Config.FlushInterval <= 0 {
		p.Config.FlushInterval = 30 * time.Second
	}
	if p.Config.FlushTimeout <= 0 {
		p.Config.FlushTimeout = 5 * time.Second
	}
	if p.Config.ObserverTimeout <= 0 {
		p.Config.ObserverTimeout = 5 * time.Second
	}
	if p.Config.ToolTimeout <= 0 {
		p.Config.ToolTimeout = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		info: SessionInfo{
			ID:             p.ID,
			CoachReference: p.CoachReference,
			AgentID:        p.AgentID,
			VoiceID:        p.VoiceID,
			CallerID:       p.CallerID,
		},
		cfg:      p.Config,
		tools:    p.Tools,
		sink:     p.Sink,
		observer: p.Observer,
		logger:   p.Logger,
		now:      p.Now,
		client:   newEndpoint(p.Client, p.Config.WriteTimeout),
		ctx:      ctx,
		cancel:   cancel,
	}
	if p.Config.MaxToolsInFlight > 0 {
		s.slots = semaphore.NewWeighted(p.Config.MaxToolsInFlight)
	}
	setReadLimit(p.Client, p.Config.MaxFrameBytes)
	return s
}

func (s *Session) ID() string {
	return s.info.ID
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Info() SessionInfo {
	return s.info
}

// Run dials the upstream and relays until either side closes. It returns after
// both connections are closed and every background task has finished.
func (s *Session) Run(ctx context.Context, dial DialFunc) error {
	defer s.cancel()
	stop := context.AfterFunc(ctx, s.Cancel)
	defer stop()

	if s.ctx.Err() != nil {
		s.state.Store(int32(StateClosed))
		_ = s.client.writeText(Disconnected(websocket.CloseGoingAway, "server shutting down"))
		_ = s.client.close(websocket.CloseGoingAway, "")
		return ErrSessionClosed
	}

	s.logger.Info(logModule, "Connecting upstream", s.fields(nil))

	upstream, err := dial(s.ctx)
	if err != nil {
		s.state.Store(int32(StateClosed))
		s.logger.Error(logModule, "Upstream dial failed", s.fields(map[string]interface{}{"error": err.Error()}))
		_ = s.client.writeText(ErrorNotice("failed to connect to voice service"))
		_ = s.client.close(websocket.CloseInternalServerErr, "upstream unavailable")
		return fmt.Errorf("%w: %v", ErrUpstreamConnection, err)
	}
	s.upstream = newEndpoint(upstream, s.cfg.WriteTimeout)
	setReadLimit(upstream, s.cfg.MaxFrameBytes)

	s.info.StartedAt = s.now()
	if s.info.CallerID != nil && s.sink != nil {
		s.activity = NewActivityBuffer(s.cfg.FlushInterval, s.info.StartedAt)
	}

	// connected must reach the client before any disconnected notice
	_ = s.client.writeText(Connected())
	activated := s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
	if !activated || s.ctx.Err() != nil {
		// Cancel may have won ACTIVE -> CLOSING and notified the client already.
		notify := !activated || s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
		s.state.Store(int32(StateClosed))
		_ = s.upstream.close(websocket.CloseGoingAway, "")
		if notify {
			_ = s.client.writeText(Disconnected(websocket.CloseGoingAway, "server shutting down"))
		}
		_ = s.client.close(websocket.CloseGoingAway, "")
		return ErrSessionClosed
	}

	s.notifyStarted()
	s.logger.Info(logModule, "Session active", s.fields(map[string]interface{}{"anonymous": s.info.CallerID == nil}))

	s.scheduleInitiation()

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(s.pumpClient)
	g.Go(s.pumpUpstream)
	g.Go(func() error {
		<-gctx.Done()
		s.closeBoth()
		return nil
	})
	runErr := g.Wait()
	if cause := s.failure(); cause != nil {
		runErr = cause
	}

	// releases tool calls still waiting for a slot
	s.cancel()
	s.stopInitiation()
	s.bg.Wait()
	s.state.Store(int32(StateClosed))

	// bg.Wait above also waited for SessionStarted, so the two never reorder.
	reason := s.reason()
	if s.observer != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.ObserverTimeout)
		s.observer.SessionEnded(ctx, s.info, reason)
		cancel()
	}
	s.logger.Info(logModule, "Session closed", s.fields(map[string]interface{}{
		"reason":      reason,
		"duration_ms": s.now().Sub(s.info.StartedAt).Milliseconds(),
	}))
	return runErr
}

// Cancel ends the session from the server side, telling the client why.
func (s *Session) Cancel() {
	if s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		s.setReason("server shutting down")
		_ = s.client.writeText(Disconnected(websocket.CloseGoingAway, "server shutting down"))
	}
	s.cancel()
}

func (s *Session) pumpClient() error {
	for {
		messageType, data, err := s.client.conn.ReadMessage()
		if err != nil {
			s.fail(sideClient, err)
			return fmt.Errorf("%w: %v", ErrClientClosed, err)
		}
		if s.State() != StateActive {
			continue
		}

		out, ok := TranslateClientFrame(messageType, data)
		if !ok {
			continue
		}
		if err := s.upstream.writeText(out); err != nil {
			s.fail(sideUpstream, err)
			return fmt.Errorf("%w: %v", ErrUpstreamClosed, err)
		}
	}
}

func (s *Session) pumpUpstream() error {
	for {
		messageType, data, err := s.upstream.conn.ReadMessage()
		if err != nil {
			s.fail(sideUpstream, err)
			return fmt.Errorf("%w: %v", ErrUpstreamClosed, err)
		}
		if s.State() != StateActive {
			continue
		}

		ev := Event{Kind: KindPassthrough, Raw: data}
		if messageType == websocket.TextMessage {
			ev = DecodeUpstream(data)
		}

		if ev.Kind == KindToolCall {
			s.dispatchTool(ev.ToolCall)
			continue
		}

		s.observe(ev)
		if err := s.client.write(messageType, data); err != nil {
			s.fail(sideClient, err)
			return fmt.Errorf("%w: %v", ErrClientClosed, err)
		}
	}
}

// fail moves ACTIVE to CLOSING, notifies the client when the upstream is the
// side that failed, and closes both connections. Only the first caller acts.
func (s *Session) fail(failed side, err error) {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		return
	}

	s.mu.Lock()
	if failed == sideUpstream {
		s.cause = fmt.Errorf("%w: %v", ErrUpstreamClosed, err)
	} else {
		s.cause = fmt.Errorf("%w: %v", ErrClientClosed, err)
	}
	s.mu.Unlock()

	switch failed {
	case sideUpstream:
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			s.setReason(fmt.Sprintf("upstream closed (%d)", closeErr.Code))
			s.logger.Info(logModule, "Upstream closed", s.fields(map[string]interface{}{"code": closeErr.Code, "reason": closeErr.Text}))
			_ = s.client.writeText(Disconnected(closeErr.Code, closeErr.Text))
		} else {
			s.setReason("upstream error")
			s.logger.Error(logModule, "Upstream connection error", s.fields(map[string]interface{}{"error": err.Error()}))
			_ = s.client.writeText(ErrorNotice("voice service connection lost"))
		}
		_ = s.upstream.close(websocket.CloseNormalClosure, "")
		_ = s.client.close(websocket.CloseNormalClosure, "")

	case sideClient:
		s.setReason("client closed")
		s.logger.Info(logModule, "Client disconnected", s.fields(map[string]interface{}{"error": err.Error()}))
		_ = s.upstream.close(websocket.CloseNormalClosure, "client disconnected")
		_ = s.client.close(websocket.CloseNormalClosure, "")
	}

	s.state.Store(int32(StateClosed))
}

func (s *Session) closeBoth() {
	s.setReason("canceled")
	if s.upstream != nil {
		_ = s.upstream.close(websocket.CloseGoingAway, "")
	}
	_ = s.client.close(websocket.CloseGoingAway, "")
	s.state.Store(int32(StateClosed))
}

// notifyStarted runs the observer off the relay path.
func (s *Session) notifyStarted() {
	if s.observer == nil {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.ObserverTimeout)
		defer cancel()
		s.observer.SessionStarted(ctx, s.info)
	}()
}

func (s *Session) scheduleInitiation() {
	send := func() {
		if s.State() != StateActive {
			return
		}
		if err := s.upstream.writeText(InitiationMessage()); err != nil {
			s.fail(sideUpstream, err)
			return
		}
		s.logger.Debug(logModule, "Conversation initiation sent", s.fields(nil))
	}

	if s.cfg.InitiationDelay <= 0 {
		send()
		return
	}

	s.mu.Lock()
	s.initTimer = time.AfterFunc(s.cfg.InitiationDelay, send)
	s.mu.Unlock()
}

func (s *Session) stopInitiation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initTimer != nil {
		s.initTimer.Stop()
	}
}

// dispatchTool answers call in the background. Every call gets exactly one
// result unless the upstream is already gone.
func (s *Session) dispatchTool(call *ToolCall) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		if s.slots != nil {
			if err := s.slots.Acquire(s.ctx, 1); err != nil {
				s.logger.Warn(logModule, "Tool call dropped, session closing", s.fields(map[string]interface{}{"tool": call.Name, "tool_call_id": call.ID}))
				return
			}
			defer s.slots.Release(1)
		}

		result, isError := s.runTool(call)
		if s.State() != StateActive {
			s.logger.Warn(logModule, "Tool result not delivered, session closing", s.fields(map[string]interface{}{"tool": call.Name, "tool_call_id": call.ID}))
			return
		}
		if err := s.upstream.writeText(ToolResult(call.ID, result, isError)); err != nil {
			s.logger.Error(logModule, "Failed to send tool result", s.fields(map[string]interface{}{"tool_call_id": call.ID, "error": err.Error()}))
		}
	}()
}

func (s *Session) runTool(call *ToolCall) (string, bool) {
	details := map[string]interface{}{"tool": call.Name, "tool_call_id": call.ID}

	switch {
	case call.ParseErr != nil:
		details["error"] = call.ParseErr.Error()
		s.logger.Warn(logModule, "Malformed tool call", s.fields(details))
		return "invalid tool call: " + call.ParseErr.Error(), true

	case s.tools == nil || !s.tools.Supports(call.Name):
		s.logger.Warn(logModule, "Unsupported tool", s.fields(details))
		return fmt.Sprintf("%s: %s", ErrUnsupportedTool, call.Name), true

	case s.info.CallerID == nil:
		s.logger.Warn(logModule, "Tool call without caller identity", s.fields(details))
		return ErrAuthenticationRequired.Error(), true
	}

	// The handler's side effect should finish even if the session ends meanwhile.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.ToolTimeout)
	defer cancel()

	started := s.now()
	outcome, err := s.tools.Dispatch(ctx, *s.info.CallerID, *call)
	details["duration_ms"] = s.now().Sub(started).Milliseconds()
	if err != nil {
		details["error"] = err.Error()
		s.logger.Error(logModule, "Tool dispatch failed", s.fields(details))
		return err.Error(), true
	}
	if !outcome.Success {
		msg := outcome.Message
		if msg == "" {
			msg = call.Name + " failed"
		}
		details["error"] = msg
		s.logger.Warn(logModule, "Tool handler reported failure", s.fields(details))
		return msg, true
	}

	s.logger.Info(logModule, "Tool dispatched", s.fields(details))
	msg := outcome.Message
	if msg == "" {
		msg = call.Name + " completed"
	}
	return msg, false
}

func (s *Session) observe(ev Event) {
	if s.activity == nil {
		return
	}
	s.activity.Observe(ev)

	snap, ok := s.activity.MaybeFlush(s.now())
	if !ok {
		return
	}

	record := ActivityRecord{
		UserID:    *s.info.CallerID,
		AgentID:   s.info.AgentID,
		SessionID: s.info.ID,
		Summary:   snap.Summary,
		Topics:    snap.Topics,
		Insights:  snap.Insights,
		Entries:   snap.Entries,
		UpdatedAt: snap.TakenAt,
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.FlushTimeout)
		defer cancel()

		if err := s.sink.SaveActivity(ctx, record); err != nil {
			s.activity.MarkFailed()
			s.logger.Error(logModule, ErrActivityFlush.Error(), s.fields(map[string]interface{}{"error": err.Error(), "entries": record.Entries}))
			return
		}
		s.activity.MarkFlushed(snap.TakenAt)
		s.logger.Debug(logModule, "Activity flushed", s.fields(map[string]interface{}{"entries": record.Entries}))
	}()
}

func (s *Session) setReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endReason == "" {
		s.endReason = reason
	}
}

func (s *Session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *Session) reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

func (s *Session) fields(extra map[string]interface{}) map[string]interface{} {
	f := map[string]interface{}{
		"session_id": s.info.ID,
		"agent_id":   s.info.AgentID,
		"state":      s.State().String(),
	}
	if s.info.CallerID != nil {
		f["user_id"] = s.info.CallerID.String()
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}
