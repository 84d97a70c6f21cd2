// Package recheck runs one continuous check tick and exits, for cron-style
// deployments that keep the scheduler out of the service.
package recheck

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigshield/reviewcore/internal/app"
	"github.com/gigshield/reviewcore/internal/buildinfo"
	"github.com/gigshield/reviewcore/internal/conf"
)

// Command creates the recheck command.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "recheck",
		Short: "Run one continuous check pass over due tasks",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := app.New(conf.Setting(), build)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}()

			summary, err := a.RecheckOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due=%d paid=%d expired=%d deleted=%d errors=%d\n",
				summary.Due, summary.Paid, summary.Expired, summary.Deleted, summary.Errors)
			return nil
		},
	}
}
