// Package pricing reads and writes the per content type task configuration.
package pricing

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/model"
)

// Command creates the pricing command with its get and set subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Show or change the points paid per content type",
	}
	cmd.AddCommand(getCommand(), setCommand())
	return cmd
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "get <post|comment>",
		Short:     "Print the task configuration of a content type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.ContentPost), string(model.ContentComment)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := datastore.Open(conf.Setting())
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			cfg, err := ds.GetTaskConfig(cmd.Context(), model.ContentType(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s: price=%d tier1=%d tier2=%d daily=%d days=%d\n",
				cfg.ContentType, cfg.Price, cfg.CommissionTier1, cfg.CommissionTier2,
				cfg.DailyRewardPoints, cfg.ContinuousCheckDays)
			return nil
		},
	}
}

func setCommand() *cobra.Command {
	var cfg model.TaskConfig
	cmd := &cobra.Command{
		Use:   "set <post|comment>",
		Short: "Create or replace the task configuration of a content type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ContentType = model.ContentType(args[0])
			if cfg.Price <= 0 {
				return fmt.Errorf("--price must be positive")
			}
			ds, err := datastore.Open(conf.Setting())
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			if err := ds.PutTaskConfig(cmd.Context(), &cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s pricing updated\n", cfg.ContentType)
			return nil
		},
	}
	cmd.Flags().Int64Var(&cfg.Price, "price", 0, "Points credited to the submitter on approval")
	cmd.Flags().Int64Var(&cfg.CommissionTier1, "tier1", 0, "Points credited to the submitter's direct referrer")
	cmd.Flags().Int64Var(&cfg.CommissionTier2, "tier2", 0, "Points credited to the second-level referrer")
	cmd.Flags().Int64Var(&cfg.DailyRewardPoints, "daily", 0, "Points per day while an approved post stays online")
	cmd.Flags().IntVar(&cfg.ContinuousCheckDays, "days", 0, "Days an approved post keeps earning the daily reward")
	return cmd
}
