// Package version prints build metadata.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigshield/reviewcore/internal/buildinfo"
)

// Command creates the version command.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
		},
	}
}
