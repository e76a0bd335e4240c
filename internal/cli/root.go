package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "scriptcheck",
	Short: "Run AutoHotkey scripts under wine and explain what went wrong",
	Long: `scriptcheck sends scripts to a remote executor, captures what AutoHotkey and
wine printed, and turns it into classified error records with a summary an
agent can act on.

Results are kept in ~/.scriptcheck/ (SQLite for history, files for raw output).
The same analysis is exposed as MCP tools (scriptcheck mcp) and a JSON API
(scriptcheck serve).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to scriptcheck.yaml (default: ./scriptcheck.yaml, then ~/.scriptcheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn or error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(healthCmd)
}
