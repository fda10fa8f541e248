package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityRecord is what one flush writes, keyed by (UserID, AgentID).
type ActivityRecord struct {
	UserID    uuid.UUID
	AgentID   string
	SessionID string
	Summary   string
	Topics    []string
	Insights  []string
	Entries   int
	UpdatedAt time.Time
}

// ActivitySink persists activity snapshots. Implementations must upsert.
type ActivitySink interface {
	SaveActivity(ctx context.Context, record ActivityRecord) error
}

// SessionInfo describes a session to observers.
type SessionInfo struct {
	ID             string
	CoachReference string
	AgentID        string
	VoiceID        string
	CallerID       *uuid.UUID
	StartedAt      time.Time
}

func (i SessionInfo) UserID() string {
	if i.CallerID == nil {
		return ""
	}
	return i.CallerID.String()
}

// Observer is told when a session becomes active and when it ends.
// SessionEnded is only called for sessions that reached SessionStarted.
type Observer interface {
	SessionStarted(ctx context.Context, info SessionInfo)
	SessionEnded(ctx context.Context, info SessionInfo, reason string)
}
