// Package cli implements the ecotrackctl operator commands.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/emission"
	"example.com/ecotrack/internal/logging"
	"example.com/ecotrack/internal/observability"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	cfg         config.Config
	factorsPath string
	policy      string
	logLevel    string
	logger      zerolog.Logger
}

// NewRootCmd creates the root command. Environment configuration supplies the
// flag defaults.
func NewRootCmd(cfg config.Config) *cobra.Command {
	opts := &options{cfg: cfg}

	cmd := &cobra.Command{
		Use:           "ecotrackctl",
		Short:         "Operator tooling for the EcoTrack service",
		Long:          "ecotrackctl inspects the emission factor table, previews estimates, summarises exported activity files and manages the database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = logging.NewWithWriter(cmd.ErrOrStderr(), opts.logLevel, "console")
		},
	}

	cmd.PersistentFlags().StringVar(&opts.factorsPath, "factors", cfg.FactorsPath, "path to a YAML emission factor table (built-in table when empty)")
	cmd.PersistentFlags().StringVar(&opts.policy, "policy", cfg.EstimatePolicy, "unknown subtype policy: lenient or strict")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	cmd.AddCommand(
		newFactorsCmd(opts),
		newEstimateCmd(opts),
		newSummarizeCmd(opts),
		newTokenCmd(opts),
		newMigrateCmd(opts),
		newChallengeCmd(opts),
	)
	return cmd
}

func (o *options) estimator() (*emission.Estimator, error) {
	table := emission.DefaultFactors()
	if o.factorsPath != "" {
		loaded, err := emission.LoadFactors(o.factorsPath)
		if err != nil {
			return nil, fmt.Errorf("load factors: %w", err)
		}
		table = loaded
	}
	return emission.NewEstimator(table,
		emission.WithPolicy(emission.ParsePolicy(o.policy)),
		emission.WithObserver(observability.EstimatorObserver(o.logger)),
	), nil
}
