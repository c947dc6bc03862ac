package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/oneshot/internal/tui"
)

var watchServer string

var watchCmd = &cobra.Command{
	Use:   "watch <conversation_id>",
	Short: "Show live agent status for a conversation",
	Long: `Connect to a running server's agent status stream and show each
agent's state, run progress and an event log in a terminal panel.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8000", "Server base URL")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, err := tui.AgentsURL(watchServer, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stream, err := tui.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer stream.Close()

	return tui.Run(ctx, stream, args[0])
}
