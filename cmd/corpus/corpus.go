// Package corpus manages the reference emission factor corpus.
package corpus

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-engine/internal/config"
)

// Command creates the corpus command and its subcommands.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the emission factor corpus",
	}
	cmd.AddCommand(importCommand(ctx), countCommand(ctx))
	return cmd
}

func importCommand(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "import [factors.yaml|factors.toml|factors.json]",
		Short: "Embed and store the factors of a seed file",
		Long: `Import emission factors from a seed file. Each factor description is
embedded with the configured embedding provider before it is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			n, err := svc.ImportCorpus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d emission factors from %s\n", n, args[0])
			return nil
		},
	}
}

func countCommand(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of reference factors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			n, err := svc.CorpusSize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
