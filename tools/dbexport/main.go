// Package main provides a CLI tool for copying a carbon-engine SQLite store
// into MySQL, for moving a single-node install onto a shared database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be set via ldflags during build)
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbexport",
	Short: "Copy the carbon-engine store from SQLite to MySQL",
	Long: `Copies emission factors, activity entries and calculations from a SQLite
store into MySQL. Rows already present in the target are skipped, so an
interrupted export can be re-run.`,
	RunE:         runExport,
	SilenceUsage: true,
}

var cfg Config

func init() {
	rootCmd.Flags().StringVar(&cfg.SQLitePath, "sqlite-path", "", "Path to the source SQLite database")

	rootCmd.Flags().StringVar(&cfg.MySQL.Host, "mysql-host", "", "MySQL host")
	rootCmd.Flags().StringVar(&cfg.MySQL.Port, "mysql-port", "3306", "MySQL port")
	rootCmd.Flags().StringVar(&cfg.MySQL.Username, "mysql-user", "", "MySQL username")
	rootCmd.Flags().StringVar(&cfg.MySQL.Password, "mysql-pass", "", "MySQL password")
	rootCmd.Flags().StringVar(&cfg.MySQL.Database, "mysql-database", "", "MySQL database name")

	rootCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 1000, "Rows per insert batch")
	rootCmd.Flags().BoolVar(&cfg.Clean, "clean", false, "Delete target rows before copying")
	rootCmd.Flags().BoolVar(&cfg.SkipVerify, "skip-verify", false, "Skip the row count check after copying")
	rootCmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Print per-batch progress")

	rootCmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "carbon-engine config file to take unset connection settings from")

	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

func runExport(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		fmt.Printf("dbexport version %s\n", version)
		return nil
	}

	if err := cfg.Load(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		fmt.Fprintf(out, "Source: %s\n", cfg.SQLitePath)
		fmt.Fprintf(out, "Target: %s\n", cfg.SanitizedTarget())
		fmt.Fprintf(out, "Batch size: %d\n", cfg.BatchSize)
	}

	migrator, err := NewMigrator(&cfg, out)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer migrator.Close()

	stats, err := migrator.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	stats.Print(out)

	if !cfg.SkipVerify {
		fmt.Fprintln(out, "\n--- Verification ---")
		if err := NewVerifier(migrator.sourceDB, migrator.targetDB, out).Verify(); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintln(out, "Verification passed")
	}
	return nil
}
