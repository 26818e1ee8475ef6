// Package cmd wires the command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-engine/cmd/batch"
	"github.com/ecoledger/carbon-engine/cmd/calculate"
	"github.com/ecoledger/carbon-engine/cmd/corpus"
	"github.com/ecoledger/carbon-engine/cmd/results"
	"github.com/ecoledger/carbon-engine/cmd/serve"
	"github.com/ecoledger/carbon-engine/cmd/version"
	"github.com/ecoledger/carbon-engine/internal/config"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *config.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "carbon-engine",
		Short: "Emission factor matching and calculation engine",
		Long: `Estimates greenhouse-gas emissions for free-text activity entries by
matching them against a reference corpus of emission factors, falling back
to a generative model when no factor matches well enough.`,
		SilenceUsage: true,
	}

	setupFlags(rootCmd, ctx)

	versionCmd := version.Command(ctx)
	rootCmd.AddCommand(
		calculate.Command(ctx),
		batch.Command(ctx),
		corpus.Command(ctx),
		results.Command(ctx),
		serve.Command(ctx),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		return ctx.Load()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *config.Context) {
	rootCmd.PersistentFlags().StringVarP(&ctx.Options.ConfigFile, "config", "c", "", "Path to config file (default: search ., ~/.config/carbon-engine, /etc/carbon-engine)")
	rootCmd.PersistentFlags().StringVar(&ctx.Options.EnvFile, "env-file", ".env", "Path to a .env file holding API keys")
	rootCmd.PersistentFlags().BoolVarP(&ctx.Debug, "debug", "d", false, "Enable debug output")
}
