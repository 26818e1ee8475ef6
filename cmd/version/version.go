package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-engine/internal/config"
)

// Command prints build metadata. It runs without loading configuration.
func Command(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			b := ctx.Build
			fmt.Fprintf(out, "carbon-engine %s (built %s", b.GetVersion(), b.GetBuildDate())
			if b != nil && b.Revision != "" {
				fmt.Fprintf(out, ", revision %s", b.Revision)
			}
			fmt.Fprintln(out, ")")
		},
	}
}
