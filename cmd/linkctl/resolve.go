package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
)

type requestFlags struct {
	question string
	language string
	vertical string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.question, "question", "q", "", "the user's original question")
	cmd.Flags().StringVarP(&f.language, "lang", "l", "", "language code (detected when omitted)")
	cmd.Flags().StringVar(&f.vertical, "vertical", "", "vertical: dining, accommodation, travel, automotive, software")
}

func (f *requestFlags) request(option string) (links.Request, error) {
	if f.vertical != "" {
		if _, ok := links.ParseVertical(f.vertical); !ok {
			return links.Request{}, fmt.Errorf("unknown vertical %q", f.vertical)
		}
	}
	return links.Request{Option: option, Question: f.question, Language: f.language, Vertical: f.vertical}, nil
}

// newResolveCmd creates the resolve subcommand.
func newResolveCmd() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "resolve <option>",
		Short: "Resolve official, merchant and maps links for an option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			engine, closeEngine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeEngine()

			ui := newUI()
			stop := ui.Spinner(fmt.Sprintf("Resolving %q", req.Option))
			start := time.Now()
			res := engine.Resolver.GetBestLinks(ctx, req)
			stop()

			if outputJSON {
				return ui.JSON(res)
			}
			printResolved(ui, req, res, time.Since(start))
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

// newFirstCmd creates the first subcommand.
func newFirstCmd() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "first <option>",
		Short: "Find the first safe, reachable link for an option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			engine, closeEngine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeEngine()

			ui := newUI()
			stop := ui.Spinner(fmt.Sprintf("Searching %q", req.Option))
			res, err := engine.Resolver.GetFirstResultURL(ctx, req)
			stop()

			if errors.Is(err, resolver.ErrNoPertinentResults) {
				ui.Warning("No pertinent result for %q: %v", req.Option, err)
				if outputJSON {
					return ui.JSON(map[string]string{"error": err.Error()})
				}
				return nil
			}
			if err != nil {
				return err
			}

			if outputJSON {
				return ui.JSON(res)
			}
			ui.Success("%s", res.URL)
			ui.KeyValue("Title", res.Title)
			ui.KeyValue("Provider", res.Provider)
			ui.KeyValue("From cache", res.FromCache)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

// newClassifyCmd creates the classify subcommand, which shows how a request
// would be routed without calling the provider.
func newClassifyCmd() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "classify <option>",
		Short: "Show the language, vertical, action and queries for an option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}

			engine, closeEngine, err := openEngine(context.Background())
			if err != nil {
				return err
			}
			defer closeEngine()

			c := engine.Resolver.Classify(req)
			ui := newUI()
			if outputJSON {
				return ui.JSON(c)
			}
			ui.Section("Classification")
			ui.KeyValue("Language", c.Language)
			ui.KeyValue("Vertical", orNone(string(c.Vertical)))
			ui.KeyValue("Action", fmt.Sprintf("%s (%s)", c.Action, c.Rule))
			ui.KeyValue("City", orNone(c.City))
			ui.KeyValue("Brand", orNone(c.Brand))
			ui.KeyValue("Merchant query", c.Query)
			ui.KeyValue("Official query", orNone(c.OfficialQuery))
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func printResolved(ui *UI, req links.Request, res *links.ResolvedLinks, elapsed time.Duration) {
	ui.Section(req.Option)
	ui.KeyValue("Action", res.ActionType)
	ui.KeyValue("Provider", res.Provider)
	ui.KeyValue("From cache", res.FromCache)
	ui.KeyValue("Latency", FormatDuration(elapsed))

	rows := [][]string{}
	if res.Official != nil {
		rows = append(rows, []string{"official", res.Official.Domain, res.Official.URL})
	}
	for _, m := range res.Merchants {
		rows = append(rows, []string{"merchant", m.Domain, m.URL})
	}
	if res.Maps != nil {
		rows = append(rows, []string{"maps", res.Maps.Title, res.Maps.URL})
	}
	if len(rows) == 0 {
		ui.Warning("No links")
		return
	}
	ui.Table([]string{"Kind", "Domain", "URL"}, rows)
	if res.Provider == resolver.FallbackProvider {
		ui.Info("Search did not complete; links were synthesized from the catalog")
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
