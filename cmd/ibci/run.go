package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"ibci/internal/config"
	"ibci/internal/interp"
	"ibci/internal/llm"
	"ibci/internal/llmexec"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile and execute a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, unit, err := compileEntry(args[0])
		if err != nil {
			return err
		}

		fileCfg, err := config.LoadFileConfig(configPath)
		if err != nil {
			return err
		}

		provider, err := buildProvider(cmd, fileCfg)
		if err != nil {
			return err
		}
		executor := llmexec.New(provider, fileCfg.DecisionMap(), context.Background())

		limits := fileCfg.Limits
		if cmd.Flags().Changed("max-call-stack") {
			limits.MaxCallStack = maxCallStack
		}
		if cmd.Flags().Changed("max-instructions") {
			limits.MaxInstructions = maxInstructions
		}
		if cmd.Flags().Changed("max-construct-retries") {
			limits.MaxConstructRetries = maxRetries
		}
		interpreter := interp.New(limits, sched.Sandbox, executor, os.Stdout, os.Stdin)

		_, err = sched.Execute(unit, interpreter)
		return err
	},
}

// buildProvider constructs the Gemini provider, or an unconfiguredProvider
// stub if no API key is available — a module that never evaluates an LLM
// construct still runs fine without one. An explicit --model flag overrides
// the config file's provider.model.
func buildProvider(cmd *cobra.Command, fileCfg *config.FileConfig) (llm.Provider, error) {
	if apiKey == "" {
		return &unconfiguredProvider{}, nil
	}
	m := fileCfg.Provider.Model
	if m == "" || cmd.Flags().Changed("model") {
		m = model
	}
	return llm.NewGeminiProvider(apiKey, m)
}

// unconfiguredProvider errors only when actually called, so `run` on a
// module with no @behavior/llm construct never needs an API key.
type unconfiguredProvider struct{}

func (*unconfiguredProvider) Call(ctx context.Context, system, user, scene string) (string, error) {
	return "", errors.New("no LLM provider configured: set --api-key or GEMINI_API_KEY")
}

func (*unconfiguredProvider) SetRetryHint(string) {}

func (*unconfiguredProvider) LastCallInfo() map[string]any { return nil }
