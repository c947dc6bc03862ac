package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/oneshot/internal/server"
	"github.com/ShayCichocki/oneshot/internal/version"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	Long: `Start the chat API.

Endpoints:
  POST /api/conversations/{conversation_id}/messages  run one message
  GET  /ws/agents/{conversation_id}                   live agent status
  GET  /api/traces, /api/traces/{id}                  recorded traces
  GET  /api/documents, /api/documents/{id}            generated documents
  GET  /metrics, /healthz`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address; overrides server.addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, app.engine,
		server.WithTraces(app.db),
		server.WithDocuments(app.db),
		server.WithEvents(app.EventsHandler()),
		server.WithMetrics(app.metrics),
		server.WithLogger(logger),
	)

	logger.Info("oneshot ready",
		"version", version.Get(),
		"addr", cfg.Server.Addr,
		"db", app.db.Path(),
		"model", cfg.Anthropic.Model)

	return srv.ListenAndServe(ctx)
}
