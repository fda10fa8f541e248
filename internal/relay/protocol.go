package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fasthttp/websocket"
)

// Kind classifies an upstream message. Anything not listed is KindPassthrough.
type Kind int

const (
	KindPassthrough Kind = iota
	KindToolCall
	KindInterruption
	KindAudio
	KindUserTranscript
	KindAgentResponse
	KindConversationUpdate
	KindPing
	KindConversationMetadata
)

func (k Kind) String() string {
	switch k {
	case KindToolCall:
		return "tool_call"
	case KindInterruption:
		return "interruption"
	case KindAudio:
		return "audio"
	case KindUserTranscript:
		return "user_transcript"
	case KindAgentResponse:
		return "agent_response"
	case KindConversationUpdate:
		return "conversation_update"
	case KindPing:
		return "ping"
	case KindConversationMetadata:
		return "conversation_metadata"
	default:
		return "passthrough"
	}
}

var kindsByType = map[string]Kind{
	"client_tool_call":                 KindToolCall,
	"tool_call":                        KindToolCall,
	"interruption":                     KindInterruption,
	"audio":                            KindAudio,
	"user_transcript":                  KindUserTranscript,
	"agent_response":                   KindAgentResponse,
	"conversation_update":              KindConversationUpdate,
	"ping":                             KindPing,
	"conversation_initiation_metadata": KindConversationMetadata,
}

// Event is a decoded upstream message. Raw always holds the original bytes.
type Event struct {
	Kind     Kind
	Type     string
	Text     string
	ToolCall *ToolCall
	Raw      []byte
}

// ToolCall is a function-call request embedded by the upstream.
// ParseErr is set when the call was recognized but its arguments could not be decoded.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	ParseErr  error
}

type upstreamMessage struct {
	Type                   string        `json:"type"`
	ToolCall               *wireToolCall `json:"tool_call"`
	ClientToolCall         *wireToolCall `json:"client_tool_call"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// wireToolCall accepts both the nested {name, arguments} shape and the
// vendor's {tool_name, parameters} shape.
type wireToolCall struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	ToolName   string          `json:"tool_name"`
	Arguments  json.RawMessage `json:"arguments"`
	Parameters json.RawMessage `json:"parameters"`
}

// DecodeUpstream classifies a text frame from the upstream. It never fails:
// undecodable input is returned as KindPassthrough.
func DecodeUpstream(raw []byte) Event {
	ev := Event{Kind: KindPassthrough, Raw: raw}

	var msg upstreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ev
	}
	ev.Type = msg.Type

	kind, ok := kindsByType[msg.Type]
	if !ok {
		return ev
	}
	ev.Kind = kind

	switch kind {
	case KindToolCall:
		wire := msg.ToolCall
		if wire == nil {
			wire = msg.ClientToolCall
		}
		ev.ToolCall = decodeToolCall(wire)
	case KindUserTranscript:
		if msg.UserTranscriptionEvent != nil {
			ev.Text = msg.UserTranscriptionEvent.UserTranscript
		}
	case KindAgentResponse:
		if msg.AgentResponseEvent != nil {
			ev.Text = msg.AgentResponseEvent.AgentResponse
		}
	case KindConversationUpdate:
		ev.Text = msg.Text
		if ev.Text == "" {
			ev.Text = msg.Message
		}
	}
	return ev
}

func decodeToolCall(wire *wireToolCall) *ToolCall {
	if wire == nil {
		return &ToolCall{ParseErr: fmt.Errorf("tool call payload missing")}
	}

	call := &ToolCall{ID: wire.ToolCallID, Name: wire.Name}
	if call.Name == "" {
		call.Name = wire.ToolName
	}

	args := wire.Arguments
	if len(bytes.TrimSpace(args)) == 0 {
		args = wire.Parameters
	}
	call.Arguments, call.ParseErr = decodeArguments(args)
	return call
}

// decodeArguments accepts a JSON-encoded string holding an object, or an object.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("decode arguments string: %w", err)
		}
		if encoded == "" {
			return map[string]any{}, nil
		}
		raw = json.RawMessage(encoded)
	}

	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}

// TranslateClientFrame maps a client frame to what the upstream expects.
// Binary audio is wrapped as base64; text is forwarded verbatim, JSON or not.
func TranslateClientFrame(messageType int, payload []byte) ([]byte, bool) {
	switch messageType {
	case websocket.BinaryMessage:
		return AudioChunk(payload), true
	case websocket.TextMessage:
		return payload, true
	default:
		return nil, false
	}
}

type typedEnvelope struct {
	Type string `json:"type"`
}

type errorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type disconnectedEnvelope struct {
	Type   string `json:"type"`
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type audioChunkEnvelope struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type toolResultEnvelope struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
}

func mustMarshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

// Connected is sent to the client once the upstream is open.
func Connected() []byte {
	return mustMarshal(typedEnvelope{Type: "connected"})
}

func ErrorNotice(message string) []byte {
	return mustMarshal(errorEnvelope{Type: "error", Message: message})
}

func Disconnected(code int, reason string) []byte {
	return mustMarshal(disconnectedEnvelope{Type: "disconnected", Code: code, Reason: reason})
}

// InitiationMessage starts the upstream conversation.
func InitiationMessage() []byte {
	return mustMarshal(typedEnvelope{Type: "conversation_initiation_client_data"})
}

func AudioChunk(audio []byte) []byte {
	return mustMarshal(audioChunkEnvelope{UserAudioChunk: base64.StdEncoding.EncodeToString(audio)})
}

func ToolResult(toolCallID, result string, isError bool) []byte {
	return mustMarshal(toolResultEnvelope{
		Type:       "client_tool_result",
		ToolCallID: toolCallID,
		Result:     result,
		IsError:    isError,
	})
}
