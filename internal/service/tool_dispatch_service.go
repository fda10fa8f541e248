package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-salescoach-be/internal/config"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/relay"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxToolResponseBytes = 64 << 10

// toolResponse is the body the persistence functions reply with.
type toolResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ToolDispatchService forwards tool invocations to the backend persistence functions.
type ToolDispatchService struct {
	endpoints  map[string]string
	serviceKey string
	httpClient *http.Client
	logger     logger.ILogger
}

func NewToolDispatchService(cfg config.ToolsConfig, logger logger.ILogger) *ToolDispatchService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ToolDispatchService{
		endpoints: map[string]string{
			relay.ToolSaveProfileFacts:   cfg.ProfileFactsURL,
			relay.ToolSaveSessionSummary: cfg.SessionSummaryURL,
		},
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (s *ToolDispatchService) Supports(name string) bool {
	_, ok := s.endpoints[name]
	return ok
}

func (s *ToolDispatchService) Dispatch(ctx context.Context, callerID uuid.UUID, call relay.ToolCall) (relay.ToolOutcome, error) {
	ctx, span := tracer.Start(ctx, "ToolDispatchService.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name), attribute.String("tool.call_id", call.ID))

	endpoint, ok := s.endpoints[call.Name]
	if !ok {
		return relay.ToolOutcome{}, fmt.Errorf("%w: %s", relay.ErrUnsupportedTool, call.Name)
	}
	if endpoint == "" {
		return relay.ToolOutcome{}, fmt.Errorf("no endpoint configured for %s", call.Name)
	}

	payload := make(map[string]any, len(call.Arguments)+1)
	for k, v := range call.Arguments {
		payload[k] = v
	}
	payload["user_id"] = callerID.String()

	body, err := json.Marshal(payload)
	if err != nil {
		return relay.ToolOutcome{}, fmt.Errorf("encode %s arguments: %w", call.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return relay.ToolOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool request failed")
		return relay.ToolOutcome{}, fmt.Errorf("call %s: %w", call.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseBytes))
	if err != nil {
		return relay.ToolOutcome{}, fmt.Errorf("read %s response: %w", call.Name, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var out toolResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return relay.ToolOutcome{}, fmt.Errorf("decode %s response (status %d): %w", call.Name, resp.StatusCode, err)
	}

	s.logger.Debug("ToolDispatch", "Tool handled", map[string]interface{}{
		"tool":        call.Name,
		"call_id":     call.ID,
		"status":      resp.StatusCode,
		"success":     out.Success,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if !out.Success || resp.StatusCode >= http.StatusBadRequest {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("%s failed with status %d", call.Name, resp.StatusCode)
		}
		return relay.ToolOutcome{Success: false, Message: msg}, nil
	}

	msg := out.Message
	if msg == "" {
		msg = "saved"
	}
	return relay.ToolOutcome{Success: true, Message: msg}, nil
}
