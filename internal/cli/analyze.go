package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/executor"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Analyse captured script output without executing anything",
	Long: `Analyse output that was already captured from a script run. Reads the file
argument, or stdin when it is absent or "-".

Exits non-zero when the output contains errors or the run timed out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		timedOut, _ := cmd.Flags().GetBool("timed-out")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		var execTime *float64
		if cmd.Flags().Changed("execution-time") {
			v, _ := cmd.Flags().GetFloat64("execution-time")
			execTime = &v
		}

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		log := newLogger(cmd, cfg)
		analyzer, err := newAnalyzer(cfg)
		if err != nil {
			return err
		}

		output, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		o := analyzer.Analyze(output, analysis.Timing(execTime, timedOut))

		if !noHistory {
			rec, cleanup, err := openHistory(cfg, log)
			if err != nil {
				log.Warnf("history unavailable: %v", err)
			} else {
				defer cleanup()
				if rec != nil {
					if id, err := rec.Record("analyze", o); err != nil {
						log.Warnf("record outcome: %v", err)
					} else {
						log.Debugf("recorded run %s", id)
					}
				}
			}
		}

		if err := printOutcome(cmd.OutOrStdout(), o, analyzer.Registry(), format); err != nil {
			return err
		}
		if !o.Success {
			return ErrScriptFailed
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Execute a script on the remote executor and analyse its output",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		runner, script, cleanup, err := newScriptRunner(cmd, args, "run")
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		o, err := runner.Run(ctx, script)
		if err != nil {
			return err
		}
		if err := printOutcome(cmd.OutOrStdout(), *o, runner.Analyzer().Registry(), format); err != nil {
			return err
		}
		if !o.Success {
			return ErrScriptFailed
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Execute a script and report only whether it ran cleanly",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		runner, script, cleanup, err := newScriptRunner(cmd, args, "validate")
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		v, err := runner.Validate(ctx, script)
		if err != nil {
			return err
		}
		if err := printValidation(cmd.OutOrStdout(), v, format); err != nil {
			return err
		}
		if !v.Valid {
			return ErrScriptFailed
		}
		return nil
	},
}

// newScriptRunner wires config, executor client, analyzer and history for
// the run and validate commands.
func newScriptRunner(cmd *cobra.Command, args []string, source string) (*executor.Runner, executor.Script, func(), error) {
	noop := func() {}
	cfg, err := resolveConfig()
	if err != nil {
		return nil, executor.Script{}, noop, err
	}
	log := newLogger(cmd, cfg)

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return nil, executor.Script{}, noop, err
	}
	client, err := newClient(cfg, log)
	if err != nil {
		return nil, executor.Script{}, noop, err
	}

	code, err := readInput(cmd, args)
	if err != nil {
		return nil, executor.Script{}, noop, err
	}
	language, _ := cmd.Flags().GetString("language")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	script := executor.Script{Code: code, Language: language, Timeout: timeout}

	opts := []executor.RunnerOption{executor.WithAnalyzer(analyzer), executor.WithLogger(log)}
	cleanup := noop
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		rec, closeHistory, err := openHistory(cfg, log)
		if err != nil {
			log.Warnf("history unavailable: %v", err)
		} else {
			cleanup = closeHistory
			if rec != nil {
				rec.script = code
				opts = append(opts, executor.WithRecorder(rec, source))
			}
		}
	}

	return executor.NewRunner(client, opts...), script, cleanup, nil
}

func init() {
	analyzeCmd.Flags().Float64("execution-time", 0, "Execution time in seconds reported by the executor")
	analyzeCmd.Flags().Bool("timed-out", false, "The executor killed the script at its time limit")
	analyzeCmd.Flags().String("format", "text", "Output format: text or json")
	analyzeCmd.Flags().Bool("no-history", false, "Do not record this analysis")

	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().String("language", "", "Script language sent to the executor (default from config)")
		c.Flags().Duration("timeout", 0, "Execution limit the executor should enforce (0 = executor default)")
		c.Flags().String("format", "text", "Output format: text or json")
		c.Flags().Bool("no-history", false, "Do not record this run")
	}
}
