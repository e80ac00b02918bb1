// Package main provides the link engine CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/bootstrap"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "linkctl",
	Short: "Link engine CLI for resolution, validation, and cache administration",
	Long: `linkctl drives the link engine from the command line.

Use this tool to:
- Resolve official, merchant and maps links for an option
- Find the first safe link for the info/shopping flow
- Check URLs against the safety policy
- Warm the caches from a file of options
- Inspect and clear the cache tiers
- Serve the engine as MCP tools over stdio

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := "warn"
		if verbose {
			level = "debug"
		}

		// stdout carries command output and the MCP transport
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			Output:      os.Stderr,
			ServiceName: "linkctl",
			File:        cfg.Observability.LogFile,
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newFirstCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newWarmCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newMCPCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine builds the engine and starts its background loops. The
// returned close function flushes the caches.
func openEngine(ctx context.Context) (*bootstrap.Engine, func(), error) {
	engine, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	engine.Start(runCtx)

	return engine, func() {
		cancel()
		if err := engine.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to close link engine")
		}
	}, nil
}

func newUI() *UI {
	return NewUI(os.Stdout, outputJSON, noColor)
}
