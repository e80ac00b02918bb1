package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/monitoring"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

const validateChunk = 20

// newValidateCmd creates the validate subcommand.
func newValidateCmd() *cobra.Command {
	var (
		option      string
		showAllowed bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check a file of URLs against the safety policy",
		Long: `Validate reads one URL per line and reports which links the safety policy
blocks, why, and the overall risk level. Blocks are written to the audit log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			urls, err := readLines(in)
			in.Close()
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no urls in %s", args[0])
			}

			// validation needs only the catalog, not storage or the provider
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			audit := monitoring.NewAuditLogger(logger, nil, cfg.Audit.Channel)
			validator := safety.NewValidator(catalog.NewStore(cat), logger, audit)

			ui := newUI()
			res := validateAll(context.Background(), validator, urls, option, ui)

			if outputJSON {
				return ui.JSON(map[string]interface{}{
					"validLinks":    res.ValidLinks,
					"blockedLinks":  res.BlockedLinks,
					"riskLevel":     res.RiskLevel,
					"highRiskCount": res.HighRiskCount(),
				})
			}

			ui.Section("Validation")
			ui.KeyValue("Checked", len(urls))
			ui.KeyValue("Allowed", len(res.ValidLinks))
			ui.KeyValue("Blocked", len(res.BlockedLinks))
			ui.KeyValue("Risk level", res.RiskLevel)

			rows := make([][]string, 0, len(res.BlockedLinks)+len(res.ValidLinks))
			for _, b := range res.BlockedLinks {
				risk := ""
				if b.Verdict.HighRisk {
					risk = "high"
				}
				rows = append(rows, []string{"blocked", string(b.Verdict.Reason), risk, b.Link.URL})
			}
			if showAllowed {
				for _, l := range res.ValidLinks {
					rows = append(rows, []string{"allowed", "", "", l.URL})
				}
			}
			if len(rows) > 0 {
				ui.Table([]string{"Verdict", "Reason", "Risk", "URL"}, rows)
			}
			if res.RiskLevel == safety.RiskHigh {
				ui.Warning("High-risk batch")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&option, "option", "", "option the links belong to (recorded in audit events)")
	cmd.Flags().BoolVar(&showAllowed, "show-allowed", false, "list allowed links too")
	return cmd
}

// validateAll validates urls in chunks so the progress bar advances, then
// recomputes the risk level over the whole batch.
func validateAll(ctx context.Context, v *safety.Validator, urls []string, option string, ui *UI) safety.BatchResult {
	bar := ui.CountBar(len(urls), "Validating")
	total := safety.BatchResult{ValidLinks: []links.Link{}, BlockedLinks: []safety.BlockedLink{}}

	for start := 0; start < len(urls); start += validateChunk {
		end := min(start+validateChunk, len(urls))
		items := make([]links.Link, 0, end-start)
		for _, u := range urls[start:end] {
			items = append(items, links.Link{URL: u})
		}
		res := v.ValidateBatch(ctx, items, safety.BatchOptions{Option: option, Flow: "cli"})
		total.ValidLinks = append(total.ValidLinks, res.ValidLinks...)
		total.BlockedLinks = append(total.BlockedLinks, res.BlockedLinks...)
		_ = bar.Add(len(items))
	}
	_ = bar.Finish()

	total.RiskLevel = safety.RiskLevelFor(len(urls), len(total.BlockedLinks), total.HighRiskCount())
	return total
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Catalog.Path)
}
