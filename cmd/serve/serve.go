// Package serve runs the review core as a long-lived service.
package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gigshield/reviewcore/internal/app"
	"github.com/gigshield/reviewcore/internal/buildinfo"
	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/logger"
)

// Command creates the serve command.
func Command(build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review queue, continuous checks and intake API",
		Long: "Start the review service. Pending tasks left by a previous run are " +
			"queued again before the API accepts new submissions.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(conf.Setting(), build)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Global().Flush() }()
			return a.Run(ctx)
		},
	}

	cmd.Flags().String("listen", "", "Listen address of the intake API (overrides api.listen)")
	cmd.Flags().Bool("no-recheck", false, "Do not run the continuous check scheduler")
	cobra.CheckErr(viper.BindPFlag("api.listen", cmd.Flags().Lookup("listen")))
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		if noRecheck, _ := cmd.Flags().GetBool("no-recheck"); noRecheck {
			conf.Setting().Recheck.Enabled = false
		}
	}
	return cmd
}
