// Package main implements the ibci CLI: a single binary wrapping the
// scheduler, semantic analyzer, and tree-walking interpreter into `run` and
// `check` subcommands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ibci/internal/config"
	"ibci/internal/logging"
)

var (
	debug         bool
	logCategories []string
	workspace     string
	apiKey        string
	model         string
	timeout       time.Duration
	configPath    string

	maxCallStack    int
	maxInstructions int
	maxRetries      int
)

var rootCmd = &cobra.Command{
	Use:   "ibci",
	Short: "ibci - indentation-structured scripting with LLM-backed expressions",
	Long: `ibci interprets IBCI source: a statically-checked, indentation-structured
scripting language whose "@tag~ ... ~" expressions and "llm" functions are
evaluated by a configured language model rather than hand-written logic.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Configure(debug, logCategories)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().StringSliceVar(&logCategories, "log-categories", nil, "Restrict debug logging to these categories (lexer,parser,sema,interp,llm,scheduler,cli)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Sandbox root for module resolution (default: the entry file's directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ibci.yaml", "YAML config file for limits, decision words, and provider defaults (used if present)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key (or set GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "gemini-2.0-flash", "Gemini model name")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Per-call LLM timeout (parsed but not applied: provider calls run without a deadline)")

	rootCmd.PersistentFlags().IntVar(&maxCallStack, "max-call-stack", config.DefaultLimits().MaxCallStack, "Maximum call recursion depth")
	rootCmd.PersistentFlags().IntVar(&maxInstructions, "max-instructions", config.DefaultLimits().MaxInstructions, "Maximum evaluator instructions before RUN_LIMIT_EXCEEDED")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-construct-retries", config.DefaultLimits().MaxConstructRetries, "Maximum llmexcept retries per guarded construct")

	rootCmd.AddCommand(runCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
