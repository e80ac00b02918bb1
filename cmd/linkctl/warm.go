package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
)

// warmSummary counts batch outcomes.
type warmSummary struct {
	Total    int           `json:"total"`
	Cached   int           `json:"cached"`
	Resolved int           `json:"resolved"`
	Fallback int           `json:"fallback"`
	Duration time.Duration `json:"duration"`
}

func (s *warmSummary) add(item resolver.BatchItem) {
	switch {
	case item.Result == nil:
	case item.Result.FromCache:
		s.Cached++
	case item.Result.Provider == resolver.FallbackProvider:
		s.Fallback++
	default:
		s.Resolved++
	}
}

// newWarmCmd creates the warm subcommand.
func newWarmCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "warm <file|->",
		Short: "Resolve a file of options to pre-populate the caches",
		Long: `Warm reads one option per line, either a bare option name or a JSON object
with option, question, language and vertical, and resolves them with bounded
concurrency. Successful resolutions are cached; fallbacks are not.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			reqs, err := readRequests(in)
			in.Close()
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return fmt.Errorf("no options in %s", args[0])
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, closeEngine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeEngine()

			batch := engine.Batch
			if cmd.Flags().Changed("concurrency") {
				batch = resolver.NewBatchResolver(engine.Resolver, concurrency)
			}

			ui := newUI()
			total := int64(len(reqs))
			bars := map[string]*mpb.Bar{
				"all":      ui.ProgressBar("options ", total),
				"resolved": ui.ProgressBar("resolved", total),
				"fallback": ui.ProgressBar("fallback", total),
			}

			summary := warmSummary{Total: len(reqs)}
			start := time.Now()
			// onDone runs on the batch goroutines; bars are concurrency-safe
			// and the summary is filled after Resolve returns
			items, err := batch.Resolve(ctx, reqs, func(item resolver.BatchItem) {
				incr(bars["all"])
				if item.Result == nil {
					return
				}
				if item.Result.Provider == resolver.FallbackProvider {
					incr(bars["fallback"])
				} else {
					incr(bars["resolved"])
				}
			})
			for _, b := range bars {
				if b != nil {
					b.SetTotal(-1, true)
				}
			}
			ui.Close()
			summary.Duration = time.Since(start)
			if err != nil {
				return fmt.Errorf("warm interrupted: %w", err)
			}

			for _, item := range items {
				summary.add(item)
			}

			if outputJSON {
				return ui.JSON(summary)
			}
			ui.Section("Warm-up")
			ui.KeyValue("Options", summary.Total)
			ui.KeyValue("Already cached", summary.Cached)
			ui.KeyValue("Resolved", summary.Resolved)
			ui.KeyValue("Fallback", summary.Fallback)
			ui.KeyValue("Duration", FormatDuration(summary.Duration))
			if summary.Fallback > 0 {
				ui.Warning("%d options fell back; rerun later to cache them", summary.Fallback)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum concurrent resolutions")
	return cmd
}

func incr(b *mpb.Bar) {
	if b != nil {
		b.Increment()
	}
}
