package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/scriptcheck/internal/executor"
	"github.com/lucasnoah/scriptcheck/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve execute_script, validate_script and analyze_output as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout. Logs go to stderr so the protocol stream
stays clean. Every outcome is recorded to history unless it is disabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		log := newLogger(cmd, cfg)
		analyzer, err := newAnalyzer(cfg)
		if err != nil {
			return err
		}

		rec, cleanup, err := openHistory(cfg, log)
		if err != nil {
			log.Warnf("history unavailable: %v", err)
			rec, cleanup = nil, func() {}
		}
		defer cleanup()

		opts := mcpserver.Options{Version: version, Analyzer: analyzer, Logger: log}
		runnerOpts := []executor.RunnerOption{executor.WithAnalyzer(analyzer), executor.WithLogger(log)}
		if rec != nil {
			opts.Recorder = rec
			runnerOpts = append(runnerOpts, executor.WithRecorder(rec, "mcp"))
		}

		client, err := newClient(cfg, log)
		if err != nil {
			log.Warnf("executor disabled: %v", err)
		} else {
			opts.Runner = executor.NewRunner(client, runnerOpts...)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return mcpserver.New(opts).Run(ctx)
	},
}
