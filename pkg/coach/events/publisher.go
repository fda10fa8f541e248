package events

import (
	"context"
	"time"

	"ai-salescoach-be/internal/pkg/logger"
	pkgEvents "ai-salescoach-be/pkg/events"
)

const (
	TypeSessionStarted  = "VOICE_SESSION_STARTED"
	TypeSessionEnded    = "VOICE_SESSION_ENDED"
	TypeActivityFlushed = "VOICE_ACTIVITY_FLUSHED"
)

// Bus is the subset of pkg/nats.Publisher used here.
type Bus interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher abstracts event publishing for voice coaching sessions
type Publisher interface {
	PublishSessionStarted(ctx context.Context, e SessionStarted)
	PublishSessionEnded(ctx context.Context, e SessionEnded)
	PublishActivityFlushed(ctx context.Context, e ActivityFlushed)
}

type SessionStarted struct {
	SessionID  string
	AgentID    string
	VoiceID    string
	UserID     string
	InstanceID string
}

type SessionEnded struct {
	SessionID string
	AgentID   string
	UserID    string
	Reason    string
	Duration  time.Duration
}

type ActivityFlushed struct {
	SessionID string
	AgentID   string
	UserID    string
	Entries   int
}

// NatsPublisher implements Publisher on top of the event bus. Failures are logged, never returned.
type NatsPublisher struct {
	bus    Bus
	logger logger.ILogger
	now    func() time.Time
}

// NewNatsPublisher accepts a nil bus; every publish is then a no-op.
func NewNatsPublisher(bus Bus, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

func (p *NatsPublisher) PublishSessionStarted(ctx context.Context, e SessionStarted) {
	p.publish(ctx, TypeSessionStarted, map[string]interface{}{
		"session_id":  e.SessionID,
		"agent_id":    e.AgentID,
		"voice_id":    e.VoiceID,
		"user_id":     e.UserID,
		"instance_id": e.InstanceID,
		"anonymous":   e.UserID == "",
	})
}

func (p *NatsPublisher) PublishSessionEnded(ctx context.Context, e SessionEnded) {
	p.publish(ctx, TypeSessionEnded, map[string]interface{}{
		"session_id":  e.SessionID,
		"agent_id":    e.AgentID,
		"user_id":     e.UserID,
		"reason":      e.Reason,
		"duration_ms": e.Duration.Milliseconds(),
	})
}

func (p *NatsPublisher) PublishActivityFlushed(ctx context.Context, e ActivityFlushed) {
	p.publish(ctx, TypeActivityFlushed, map[string]interface{}{
		"session_id": e.SessionID,
		"agent_id":   e.AgentID,
		"user_id":    e.UserID,
		"entries":    e.Entries,
	})
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p == nil || p.bus == nil {
		return
	}

	evt := pkgEvents.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: p.now(),
	}

	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Error("VOICE_EVENTS", "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}
