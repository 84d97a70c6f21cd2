// Package migrate creates or updates the database schema.
package migrate

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/model"
)

// Command creates the migrate command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Open migrates the schema.
			ds, err := datastore.Open(conf.Setting())
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			counts, err := ds.CountTasksByStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "schema is up to date")
			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, string(s))
			}
			slices.Sort(statuses)
			for _, s := range statuses {
				fmt.Fprintf(out, "  %-18s %d\n", s, counts[model.Status(s)])
			}
			return nil
		},
	}
}
