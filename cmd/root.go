// Package cmd holds the reviewcore command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gigshield/reviewcore/cmd/migrate"
	"github.com/gigshield/reviewcore/cmd/pricing"
	"github.com/gigshield/reviewcore/cmd/recheck"
	"github.com/gigshield/reviewcore/cmd/serve"
	"github.com/gigshield/reviewcore/cmd/version"
	"github.com/gigshield/reviewcore/internal/buildinfo"
	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/logger"
)

// RootCommand creates and returns the root command.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "reviewcore",
		Short:         "Review orchestration for submitted social content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/reviewcore, /etc/reviewcore)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding flags: %v", err))
	}

	versionCmd := version.Command(build)
	rootCmd.AddCommand(
		serve.Command(build),
		recheck.Command(build),
		migrate.Command(),
		pricing.Command(),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(configFile)
	}

	return rootCmd
}

// initialize loads settings and installs the configured logger. It runs
// before every subcommand except version.
func initialize(configFile string) error {
	settings, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}
