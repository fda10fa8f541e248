package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().String("url", "ws://localhost:3000/api/voice/relay", "relay endpoint")
	sessionCmd.Flags().String("coach", "", "coach id, slug or native agent id (required)")
	sessionCmd.Flags().String("voice", "", "voice override")
	sessionCmd.Flags().String("token", os.Getenv("PROBE_TOKEN"), "bearer token")
	sessionCmd.Flags().Int("chunks", 5, "number of binary test chunks to send")
	sessionCmd.Flags().Int("chunk-size", 320, "bytes per test chunk")
	sessionCmd.Flags().Duration("listen", 10*time.Second, "how long to print events after sending")
	_ = sessionCmd.MarkFlagRequired("coach")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Open a relay session, send test audio and print what comes back",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		relayURL, _ := cmd.Flags().GetString("url")
		coachID, _ := cmd.Flags().GetString("coach")
		voiceID, _ := cmd.Flags().GetString("voice")
		token, _ := cmd.Flags().GetString("token")
		chunks, _ := cmd.Flags().GetInt("chunks")
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		listen, _ := cmd.Flags().GetDuration("listen")

		return probe(cmd.Context(), relayURL, coachID, voiceID, token, chunks, chunkSize, listen)
	},
}

func probe(ctx context.Context, relayURL, coachID, voiceID, token string, chunks, chunkSize int, listen time.Duration) error {
	u, err := url.Parse(relayURL)
	if err != nil {
		return fmt.Errorf("bad relay url: %w", err)
	}
	q := u.Query()
	q.Set("coachId", coachID)
	if voiceID != "" {
		q.Set("voiceId", voiceID)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	color.Cyan("🚀 Opening relay session: %s", u.String())
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("handshake rejected with %s: %w", resp.Status, err)
		}
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					color.Yellow("🔌 closed: %d %s", ce.Code, ce.Text)
				} else {
					color.Yellow("🔌 read stopped: %v", err)
				}
				return
			}
			printFrame(mt, payload)
		}
	}()

	chunk := make([]byte, chunkSize)
	for i := 0; i < chunks; i++ {
		for j := range chunk {
			chunk[j] = byte(i + j)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return fmt.Errorf("send chunk %d: %w", i, err)
		}
		color.Blue("🎙  sent chunk %d (%d bytes)", i+1, len(chunk))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(listen):
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "probe done"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	color.Green("✅ Probe finished")
	return nil
}

func printFrame(mt int, payload []byte) {
	if mt == websocket.BinaryMessage {
		color.White("   binary frame (%d bytes)", len(payload))
		return
	}

	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(payload, &head)

	preview := string(payload)
	if len(preview) > 160 {
		preview = preview[:160] + "..."
	}

	switch head.Type {
	case "connected":
		color.Green("✅ %s", preview)
	case "error", "disconnected":
		color.Red("⚠️  %s", preview)
	case "audio":
		color.Magenta("🔊 audio event (%d bytes)", len(payload))
	case "user_transcript", "agent_response":
		color.Cyan("💬 %s", preview)
	case "client_tool_call", "tool_call":
		color.Yellow("🛠  %s", preview)
	default:
		fmt.Printf("   %s\n", preview)
	}
}
