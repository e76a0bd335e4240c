package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/scriptcheck/internal/executor"
	"github.com/lucasnoah/scriptcheck/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API",
	Long: `Start an HTTP server exposing analysis, validation, execution and run history
as JSON endpoints:

  POST /api/analyze    POST /api/validate    POST /api/execute
  GET  /api/runs       GET  /api/runs/{id}   GET  /api/stats
  GET  /healthz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		log := newLogger(cmd, cfg)
		analyzer, err := newAnalyzer(cfg)
		if err != nil {
			return err
		}

		opts := web.Options{Analyzer: analyzer, Logger: log, Port: port}
		runnerOpts := []executor.RunnerOption{executor.WithAnalyzer(analyzer), executor.WithLogger(log)}

		rec, cleanup, err := openHistory(cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()
		if rec != nil {
			opts.DB = rec.db
			runnerOpts = append(runnerOpts, executor.WithRecorder(rec, "serve"))
		}

		client, err := newClient(cfg, log)
		if err != nil {
			log.Warnf("executor disabled: %v", err)
		} else {
			opts.Runner = executor.NewRunner(client, runnerOpts...)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return web.NewServer(opts).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
}
