package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/emission"
)

func newFactorsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "factors",
		Short: "Print the emission factor table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			estimator, err := opts.estimator()
			if err != nil {
				return err
			}
			table := estimator.Table()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tSUBTYPE\tKG CO2E\tPER")
			for _, kind := range emission.Kinds {
				for _, subtype := range table.Subtypes(kind) {
					factor, _ := table.Factor(kind, subtype)
					fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", kind, subtype, factor, factorUnit(kind))
				}
			}
			return tw.Flush()
		},
	}
}

// factorUnit is the unit a factor is expressed per. Food is logged in grams
// but factored per kilogram.
func factorUnit(kind emission.Kind) string {
	if kind == emission.KindFood {
		return "kg"
	}
	return kind.Unit()
}
