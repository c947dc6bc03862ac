package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/oneshot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration after merging defaults, the user config,
the project config, .env files and environment variables.

User configuration is read from ~/.config/oneshot/config.yaml
Project-specific overrides can be placed in .oneshot.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		displayConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// displayConfig prints all configuration values with the API key masked.
func displayConfig(w io.Writer, cfg *config.Config) {
	key, _ := config.GetAPIKey(cfg)
	keyDisplay := "(not set)"
	if key != "" {
		keyDisplay = config.MaskAPIKey(key)
	}
	source := config.GetAPIKeySource(cfg)
	sourceDisplay := string(source)
	if source == config.KeySourceNone {
		sourceDisplay = color.YellowString(sourceDisplay)
	}

	fmt.Fprintf(w, "anthropic.api_key: %s (source: %s)\n", keyDisplay, sourceDisplay)
	fmt.Fprintf(w, "anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Fprintf(w, "anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Fprintf(w, "anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Fprintf(w, "anthropic.max_iterations: %d\n", cfg.Anthropic.MaxIterations)
	fmt.Fprintf(w, "server.addr: %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "server.shutdown_timeout: %s\n", cfg.Server.ShutdownTimeout)
	fmt.Fprintf(w, "storage.path: %s\n", orDefault(cfg.Storage.Path, "(default)"))
	fmt.Fprintf(w, "storage.retention: %s\n", cfg.Storage.Retention)
	fmt.Fprintf(w, "data.dir: %s\n", cfg.Data.Dir)
	fmt.Fprintf(w, "data.watch: %t\n", cfg.Data.Watch)
	fmt.Fprintf(w, "events.buffer: %d\n", cfg.Events.Buffer)
	fmt.Fprintf(w, "events.nats_url: %s\n", orDefault(cfg.Events.NATSURL, "(disabled)"))
	fmt.Fprintf(w, "events.nats_prefix: %s\n", cfg.Events.NATSPrefix)
	fmt.Fprintf(w, "orchestrator.max_parallel: %d\n", cfg.Orchestrator.MaxParallel)
	fmt.Fprintf(w, "orchestrator.routing_file: %s\n", orDefault(cfg.Orchestrator.RoutingFile, "(built-in)"))
	fmt.Fprintf(w, "orchestrator.summary_chars: %d\n", cfg.Orchestrator.SummaryChars)
	fmt.Fprintf(w, "log.level: %s\n", cfg.Log.Level)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
