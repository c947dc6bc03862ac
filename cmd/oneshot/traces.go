package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/oneshot/internal/state"
)

var (
	tracesLimit        int
	tracesConversation string
	tracesAll          bool
)

var tracesCmd = &cobra.Command{
	Use:   "traces [trace_id]",
	Short: "List recorded runs or show one trace",
	Long: `Without arguments, lists recent runs (root traces), newest first.
With a trace ID, prints that trace and its per-agent children as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTraces,
}

func init() {
	tracesCmd.Flags().IntVarP(&tracesLimit, "limit", "n", 20, "Maximum number of traces to list")
	tracesCmd.Flags().StringVar(&tracesConversation, "conversation", "", "Only traces from this conversation")
	tracesCmd.Flags().BoolVar(&tracesAll, "all", false, "Include per-agent child traces")
}

func runTraces(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		trace, err := db.GetTrace(ctx, args[0])
		if err != nil {
			return err
		}
		if trace == nil {
			return fmt.Errorf("trace %s not found", args[0])
		}
		children, err := db.ListChildTraces(ctx, trace.ID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*state.Trace
			Children []state.Trace `json:"children"`
		}{trace, children})
	}

	traces, err := db.ListTraces(ctx, state.TraceFilter{
		ConversationID: tracesConversation,
		RootOnly:       !tracesAll,
		Limit:          tracesLimit,
	})
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		fmt.Fprintln(out, "No traces recorded yet. Run 'oneshot ask <message>' to create one.")
		return nil
	}
	printTraces(out, traces)
	return nil
}

// printTraces writes traces as an aligned table.
func printTraces(w io.Writer, traces []state.Trace) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAGENT\tSTATUS\tTOKENS\tDURATION\tSTARTED\tCONVERSATION")
	for _, t := range traces {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			t.ID,
			t.AgentName,
			t.Status,
			t.TokensUsed,
			(time.Duration(t.DurationMs) * time.Millisecond).String(),
			t.StartedAt.Local().Format("2006-01-02 15:04:05"),
			t.ConversationID,
		)
	}
	tw.Flush()
}
