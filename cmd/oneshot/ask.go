package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/orchestrator"
)

var (
	askConversation string
	askJSON         bool
	askQuiet        bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run one message through the agents locally",
	Long: `Run a single chat message through the full pipeline without starting
the server. Agent activity is printed as it happens, followed by the
synthesized answer. Traces and documents are stored as usual.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "Conversation ID (default: new UUID)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "Do not print agent activity")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	conversation := askConversation
	if conversation == "" {
		conversation = uuid.NewString()
	}

	out := cmd.OutOrStdout()
	var sub *events.Subscription
	if !askQuiet && !askJSON {
		sub = app.broadcaster.SubscribeFunc(conversation, eventPrinter(out))
	}

	resp, runErr := app.engine.Run(ctx, orchestrator.Request{
		ConversationID: conversation,
		Message:        strings.Join(args, " "),
	})
	if sub != nil {
		app.broadcaster.Unsubscribe(sub)
	}
	if runErr != nil {
		return runErr
	}

	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(out, resp)
	printUsage(out, app.client.Usage())
	return nil
}

// eventPrinter returns a broadcaster sink that writes one status line per
// event. A write error ends the subscription.
func eventPrinter(w io.Writer) func([]byte) error {
	return func(data []byte) error {
		ev, err := events.Decode(data)
		if err != nil {
			return nil
		}
		line := formatEvent(ev)
		if line == "" {
			return nil
		}
		_, err = fmt.Fprintln(w, line)
		return err
	}
}

var (
	agentColor = color.New(color.FgCyan, color.Bold)
	dimColor   = color.New(color.Faint)
)

// formatEvent renders one agent event as a single status line.
func formatEvent(ev events.Event) string {
	switch ev.Type {
	case events.EventAgentStarted:
		var p events.Started
		if json.Unmarshal(ev.Data, &p) != nil {
			return ""
		}
		return fmt.Sprintf("%s %s started: %s", color.BlueString("▶"), agentColor.Sprint(p.Agent), p.Task)
	case events.EventAgentThinking:
		var p events.Thinking
		if json.Unmarshal(ev.Data, &p) != nil {
			return ""
		}
		return fmt.Sprintf("%s %s %s", color.YellowString("…"), dimColor.Sprintf("[%3.0f%%]", p.Progress*100), p.Thought)
	case events.EventAgentHandoff:
		var p events.Handoff
		if json.Unmarshal(ev.Data, &p) != nil {
			return ""
		}
		return fmt.Sprintf("%s %s → %s", color.MagentaString("⇢"), p.From, agentColor.Sprint(p.To))
	case events.EventAgentToolCall:
		var p events.ToolCall
		if json.Unmarshal(ev.Data, &p) != nil {
			return ""
		}
		return dimColor.Sprintf("  %s uses %s", p.Agent, p.Tool)
	case events.EventAgentCompleted:
		var p events.Completed
		if json.Unmarshal(ev.Data, &p) != nil {
			return ""
		}
		mark := color.GreenString("✓")
		if strings.HasPrefix(p.ResultSummary, "Error") {
			mark = color.RedString("✗")
		}
		return fmt.Sprintf("%s %s done in %dms", mark, agentColor.Sprint(p.Agent), p.DurationMs)
	case events.EventDocumentGenerated:
		var p events.DocumentGenerated
		if json.Unmarshal(ev.Data, &p) != nil {
			return ""
		}
		return fmt.Sprintf("%s saved %s %s", color.GreenString("✎"), p.Title, dimColor.Sprint(p.DocumentID))
	}
	return ""
}

// printResponse prints the synthesized answer and a short run summary.
func printResponse(w io.Writer, resp *orchestrator.Response) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, resp.Answer)
	fmt.Fprintln(w)

	tasks := make([]string, 0, len(resp.Results))
	for task := range resp.Results {
		tasks = append(tasks, string(task))
	}
	sort.Strings(tasks)

	summary := fmt.Sprintf("intent=%s agents=%s tokens=%d conversation=%s",
		resp.Intent, strings.Join(tasks, ","), resp.Tokens, resp.ConversationID)
	if resp.Degraded {
		summary += " degraded"
	}
	if resp.DocumentID != "" {
		summary += " document=" + resp.DocumentID
	}
	fmt.Fprintln(w, dimColor.Sprint(summary))
}

// printUsage prints the provider usage accumulated by the run.
func printUsage(w io.Writer, u api.Usage) {
	fmt.Fprintln(w, dimColor.Sprintf("usage: %d calls, %d input + %d output tokens, ~$%.4f",
		u.Calls, u.InputTokens, u.OutputTokens, u.CostUSD))
}
