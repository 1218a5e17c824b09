package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/emission"
)

// exportedActivity is one row of an activity export. Quantity is kept as text
// because exports carry the raw form input.
type exportedActivity struct {
	Kind     string `yaml:"kind"`
	Subtype  string `yaml:"subtype"`
	Quantity string `yaml:"quantity"`
}

func newSummarizeCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "summarize <file>",
		Short: "Summarise an exported activity file offline",
		Long: `Reads a YAML or JSON list of activities with kind, subtype and quantity,
estimates each one and prints the aggregated footprint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			estimator, err := opts.estimator()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var rows []exportedActivity
			if err := yaml.Unmarshal(raw, &rows); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			activities := make([]domain.Activity, 0, len(rows))
			for i, row := range rows {
				kind, err := emission.ParseKind(row.Kind)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				mass, err := estimator.Estimate(kind, row.Subtype, emission.ParseQuantity(row.Quantity))
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				activities = append(activities, domain.Activity{Kind: kind, Subtype: row.Subtype, EstimatedMass: mass})
			}

			report := domain.BuildReport("", activities, time.Now().UTC())
			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return cmd
}

func printReport(cmd *cobra.Command, report *domain.FootprintReport) error {
	out := cmd.OutOrStdout()
	summary := report.Summary
	fmt.Fprintf(out, "Activities: %d\n", summary.Count)
	fmt.Fprintf(out, "Total: %.2f kg CO2e\n\n", summary.TotalMass)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCOUNT\tKG CO2E\tSHARE")
	for _, kind := range emission.Kinds {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d%%\n", kind, summary.CountByKind[kind], summary.MassByKind[kind], summary.Breakdown[kind])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	for _, a := range report.Achievements {
		mark := " "
		if a.Earned {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] %s\n", mark, a.Title)
	}
	if !report.Equivalency.IsEmpty {
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Equivalency.DisplayText)
	}
	return nil
}
