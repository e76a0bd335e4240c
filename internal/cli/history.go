package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/scriptcheck/internal/analytics"
	"github.com/lucasnoah/scriptcheck/internal/artifact"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		runs, err := d.ListRuns(limit)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSONOut(cmd.OutOrStdout(), runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-36s %-19s %-9s %-7s %-6s %-8s %s\n",
			"ID", "CREATED", "SOURCE", "RESULT", "ERRORS", "TIME", "SUMMARY")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 110))
		for _, r := range runs {
			result := "FAIL"
			switch {
			case r.TimedOut:
				result = "TIMEOUT"
			case r.Success:
				result = "PASS"
			}
			fmt.Fprintf(w, "%-36s %-19s %-9s %-7s %-6d %-8s %s\n",
				r.ID, r.CreatedAt, r.Source, result, r.ErrorCount, formatSeconds(r.ExecutionTime), truncate(r.Summary, 40))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a recorded run with its errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		analyzer, err := newAnalyzer(cfg)
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		run, err := d.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run with id %q", args[0])
		}

		w := cmd.OutOrStdout()
		if format == "text" {
			fmt.Fprintf(w, "Run:       %s\n", run.ID)
			fmt.Fprintf(w, "Source:    %s\n", run.Source)
			fmt.Fprintf(w, "Language:  %s\n", run.Language)
			fmt.Fprintf(w, "Created:   %s\n", run.CreatedAt)
			store := artifact.NewStore(cfg.History.ArtifactsDir)
			if store.Has(run.ID) {
				fmt.Fprintf(w, "Artifacts: %s\n", store.RunDir(run.ID))
			}
			fmt.Fprintln(w)
		}
		return printOutcome(w, run.Outcome(), analyzer.Registry(), format)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate statistics over recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceFlag, _ := cmd.Flags().GetString("since")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		since, err := analytics.NormalizeSince(sinceFlag, time.Now())
		if err != nil {
			return err
		}

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := analytics.Summarize(d, since)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSONOut(cmd.OutOrStdout(), stats)
		}

		w := cmd.OutOrStdout()
		t := stats.Totals
		if since != "" {
			fmt.Fprintf(w, "Since:     %s\n", since)
		}
		fmt.Fprintf(w, "Runs:      %d (%d passed, %d failed, %d timed out)\n", t.Total, t.Succeeded, t.Failed, t.TimedOut)
		fmt.Fprintf(w, "Success:   %.1f%%\n", t.SuccessPct)
		et := stats.Times
		fmt.Fprintf(w, "Exec time: avg %.1fms  p50 %.1fms  p95 %.1fms  max %.1fms (%d runs)\n", et.Avg, et.P50, et.P95, et.Max, et.Count)

		fmt.Fprintf(w, "\n%-10s %6s %6s\n", "KIND", "COUNT", "PCT")
		for _, k := range stats.ErrorKinds {
			fmt.Fprintf(w, "%-10s %6d %5.1f%%\n", k.Kind, k.Count, k.Pct)
		}
		if len(stats.Sources) > 0 {
			fmt.Fprintf(w, "\n%-10s %6s %8s\n", "SOURCE", "RUNS", "SUCCESS")
			for _, s := range stats.Sources {
				fmt.Fprintf(w, "%-10s %6d %7.1f%%\n", s.Source, s.Total, s.SuccessPct)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")
	historyCmd.Flags().String("format", "text", "Output format: text or json")

	showCmd.Flags().String("format", "text", "Output format: text or json")

	statsCmd.Flags().String("since", "", "Only include runs since a duration ago (24h) or a date (2024-06-01)")
	statsCmd.Flags().String("format", "text", "Output format: text or json")
}
