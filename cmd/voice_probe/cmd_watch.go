package main

import (
	"context"
	"encoding/json"
	"time"

	"ai-salescoach-be/pkg/events"
	pktNats "ai-salescoach-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS url")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print voice session events from NATS until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		return watchEvents(cmd.Context(), natsURL)
	},
}

func watchEvents(ctx context.Context, natsURL string) error {
	sub, err := pktNats.NewSubscriber(natsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.Subscribe(ctx, pktNats.Subject("*"), "", func(ctx context.Context, e events.Event) error {
		data, _ := json.Marshal(e.Payload())
		color.Cyan("[%s] %s %s", e.Timestamp().Format(time.RFC3339), e.EventType(), data)
		return nil
	})
	if err != nil {
		return err
	}

	color.Green("👀 Watching %s on %s (Ctrl+C to stop)", pktNats.Subject("*"), natsURL)
	<-ctx.Done()
	return nil
}
