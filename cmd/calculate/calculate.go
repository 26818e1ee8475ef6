// Package calculate estimates emissions for a single activity entry.
package calculate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-engine/internal/config"
	"github.com/ecoledger/carbon-engine/internal/model"
)

type options struct {
	model.ActivityEntry
	scope  int
	asJSON bool
}

// Command creates the calculate command. Results are printed, not stored.
func Command(ctx *config.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Estimate emissions for one activity",
		Long: `Match one activity description against the emission factor corpus and
print the calculation. Nothing is written to the results store.`,
		Example: `  carbon-engine calculate --description "diesel for delivery van" --quantity 120 --unit L --scope 1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := opts.entry()
			if err := entry.Validate(); err != nil {
				return err
			}

			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			res := svc.CalculateSingle(cmd.Context(), entry)

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	setupFlags(cmd, opts)
	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.Description, "description", "", "Free-text activity description")
	cmd.Flags().Float64Var(&opts.Quantity, "quantity", 0, "Activity quantity, must be positive")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "Unit of the quantity, e.g. L, kWh, km")
	cmd.Flags().IntVar(&opts.scope, "scope", 0, "GHG Protocol scope hint (1-3, 0 for none)")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "cli", "Tenant identifier")
	cmd.Flags().StringVar(&opts.ID, "id", "", "Entry identifier (default: random)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Optional activity category")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")

	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("unit")
}

func (o *options) entry() *model.ActivityEntry {
	entry := o.ActivityEntry
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if o.scope != 0 {
		entry.Scope = model.Scope(o.scope).Ptr()
	}
	return &entry
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *model.CalculationResult) {
	fmt.Fprintf(w, "Entry:      %s\n", res.EntryID)
	fmt.Fprintf(w, "Method:     %s\n", res.Method)
	if !res.Succeeded() {
		fmt.Fprintf(w, "Error:      %s\n", res.Error)
		if res.FallbackReason != "" {
			fmt.Fprintf(w, "Fallback:   %s\n", res.FallbackReason)
		}
		return
	}

	fmt.Fprintf(w, "Emissions:  %s %s\n", res.TotalEmissions.String(), res.EmissionsUnit)
	fmt.Fprintf(w, "Factor:     %s %s\n", res.FactorValue.String(), res.FactorUnit)
	if res.Source != "" {
		fmt.Fprintf(w, "Source:     %s\n", res.Source)
	}
	fmt.Fprintf(w, "Confidence: %.2f\n", res.Confidence)
	if res.FallbackReason != "" {
		fmt.Fprintf(w, "Fallback:   %s\n", res.FallbackReason)
	}
	if res.RequiresReview {
		fmt.Fprintln(w, "Review:     required")
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning:    %s\n", warning)
	}
	if len(res.Alternates) > 0 {
		alts := make([]string, 0, len(res.Alternates))
		for _, a := range res.Alternates {
			alts = append(alts, fmt.Sprintf("%s (%.2f)", a.Description, a.Similarity))
		}
		fmt.Fprintf(w, "Also close: %s\n", strings.Join(alts, ", "))
	}
}
