package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/persistence/postgres"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to POSTGRES_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := postgres.Migrate(opts.cfg.PostgresURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newChallengeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Manage community challenges",
	}
	cmd.AddCommand(newChallengeAddCmd(opts))
	return cmd
}

func newChallengeAddCmd(opts *options) *cobra.Command {
	var (
		challenge domain.Challenge
		start     string
		end       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a challenge",
		Example: `  ecotrackctl challenge add --id bike-june --title "Bike to work" --start 2025-06-01 --end 2025-06-30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseChallengeDates(&challenge, start, end); err != nil {
				return err
			}

			pool, err := pgxpool.New(cmd.Context(), opts.cfg.PostgresURL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := postgres.NewRepository(pool).UpsertChallenge(cmd.Context(), challenge); err != nil {
				return err
			}
			opts.logger.Info().Str("challenge_id", challenge.ID).Msg("challenge saved")
			fmt.Fprintf(cmd.OutOrStdout(), "challenge %s saved\n", challenge.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&challenge.ID, "id", "", "challenge id")
	cmd.Flags().StringVar(&challenge.Title, "title", "", "challenge title")
	cmd.Flags().StringVar(&challenge.Description, "description", "", "challenge description")
	cmd.Flags().IntVar(&challenge.Progress, "progress", 0, "community progress percentage")
	cmd.Flags().StringVar(&start, "start", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "optional end date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func parseChallengeDates(c *domain.Challenge, start, end string) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("id and title are required")
	}
	startAt, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	c.StartDate = startAt.UTC()
	if end == "" {
		return nil
	}
	endAt, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	if endAt.Before(startAt) {
		return fmt.Errorf("--end %s is before --start %s", end, start)
	}
	endAt = endAt.UTC()
	c.EndDate = &endAt
	return nil
}
