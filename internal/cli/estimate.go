package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/emission"
)

func newEstimateCmd(opts *options) *cobra.Command {
	var kind, subtype, quantity string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the kg CO2e of a single activity",
		Example: `  ecotrackctl estimate --kind transport --subtype car --quantity 100
  ecotrackctl estimate --kind food --subtype beef --quantity 250`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			estimator, err := opts.estimator()
			if err != nil {
				return err
			}
			k, err := emission.ParseKind(kind)
			if err != nil {
				return err
			}
			q := emission.ParseQuantity(quantity)
			mass, err := estimator.Estimate(k, subtype, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s %g %s = %.2f kg CO2e\n", k, subtype, q, k.Unit(), mass)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "activity kind: transport, food or energy")
	cmd.Flags().StringVar(&subtype, "subtype", "", "factor subtype, for example car or beef")
	cmd.Flags().StringVar(&quantity, "quantity", "0", "quantity in km, g or kWh")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("subtype")
	return cmd
}
