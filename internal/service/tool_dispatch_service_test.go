package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-salescoach-be/internal/config"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/relay"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolDispatchSupports(t *testing.T) {
	svc := NewToolDispatchService(config.ToolsConfig{}, logger.NewNopLogger())

	assert.True(t, svc.Supports(relay.ToolSaveProfileFacts))
	assert.True(t, svc.Supports(relay.ToolSaveSessionSummary))
	assert.False(t, svc.Supports("delete_everything"))
}

func TestToolDispatchPostsArgumentsWithCaller(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Profile updated"}`))
	}))
	defer srv.Close()

	svc := NewToolDispatchService(config.ToolsConfig{
		ProfileFactsURL: srv.URL,
		ServiceKey:      "svc-key",
		Timeout:         time.Second,
	}, logger.NewNopLogger())

	caller := uuid.New()
	out, err := svc.Dispatch(context.Background(), caller, relay.ToolCall{
		ID:        "call-1",
		Name:      relay.ToolSaveProfileFacts,
		Arguments: map[string]any{"company": "Acme", "role": "AE"},
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "Profile updated", out.Message)
	assert.Equal(t, "Bearer svc-key", gotAuth)
	assert.Equal(t, "Acme", gotBody["company"])
	assert.Equal(t, "AE", gotBody["role"])
	assert.Equal(t, caller.String(), gotBody["user_id"])
}

func TestToolDispatchCallerCannotBeSpoofed(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	svc := NewToolDispatchService(config.ToolsConfig{SessionSummaryURL: srv.URL}, logger.NewNopLogger())

	caller := uuid.New()
	out, err := svc.Dispatch(context.Background(), caller, relay.ToolCall{
		Name:      relay.ToolSaveSessionSummary,
		Arguments: map[string]any{"user_id": "someone-else"},
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "saved", out.Message)
	assert.Equal(t, caller.String(), gotBody["user_id"])
}

func TestToolDispatchFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantResult relay.ToolOutcome
	}{
		{
			name:       "handler reports error",
			status:     http.StatusOK,
			body:       `{"success":false,"error":"summary too long"}`,
			wantResult: relay.ToolOutcome{Success: false, Message: "summary too long"},
		},
		{
			name:       "error status with message",
			status:     http.StatusInternalServerError,
			body:       `{"success":false,"message":"database down"}`,
			wantResult: relay.ToolOutcome{Success: false, Message: "database down"},
		},
		{
			name:       "error status without message",
			status:     http.StatusBadGateway,
			body:       `{}`,
			wantResult: relay.ToolOutcome{Success: false, Message: "save_session_summary failed with status 502"},
		},
		{
			name:    "non json body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc := NewToolDispatchService(config.ToolsConfig{SessionSummaryURL: srv.URL}, logger.NewNopLogger())

			out, err := svc.Dispatch(context.Background(), uuid.New(), relay.ToolCall{Name: relay.ToolSaveSessionSummary})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, out)
		})
	}
}

func TestToolDispatchUnconfiguredEndpoint(t *testing.T) {
	svc := NewToolDispatchService(config.ToolsConfig{}, logger.NewNopLogger())

	_, err := svc.Dispatch(context.Background(), uuid.New(), relay.ToolCall{Name: relay.ToolSaveProfileFacts})
	assert.Error(t, err)

	_, err = svc.Dispatch(context.Background(), uuid.New(), relay.ToolCall{Name: "unknown"})
	assert.ErrorIs(t, err, relay.ErrUnsupportedTool)
}
