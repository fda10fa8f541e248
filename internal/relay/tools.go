package relay

import (
	"context"

	"github.com/google/uuid"
)

const (
	ToolSaveProfileFacts   = "save_profile_facts"
	ToolSaveSessionSummary = "save_session_summary"
)

// ToolOutcome is the handler's verdict for one invocation.
type ToolOutcome struct {
	Success bool
	Message string
}

// ToolDispatcher runs tool invocations on behalf of an authenticated caller.
type ToolDispatcher interface {
	Supports(name string) bool
	Dispatch(ctx context.Context, callerID uuid.UUID, call ToolCall) (ToolOutcome, error)
}
