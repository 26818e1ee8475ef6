// Package results lists stored calculations for a tenant.
package results

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-engine/internal/config"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/model"
)

type options struct {
	tenant        string
	method        string
	limit         int
	succeededOnly bool
	asJSON        bool
}

// Command creates the results command.
func Command(ctx *config.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored calculation results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repository.ResultFilter{
				TenantID:      opts.tenant,
				SucceededOnly: opts.succeededOnly,
				Limit:         opts.limit,
			}
			if opts.method != "" {
				filter.Method = model.Method(opts.method)
				if !filter.Method.Valid() {
					return errors.Newf("unknown method %q", opts.method).
						Component("cli").
						Category(errors.CategoryValidation).
						Build()
				}
			}

			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			rows, err := svc.Results(cmd.Context(), filter)
			if err != nil {
				return err
			}
			total, err := svc.TotalEmissions(cmd.Context(), opts.tenant)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"results":         rows,
					"total_emissions": total,
					"emissions_unit":  model.EmissionsUnit,
				})
			}
			if err := printTable(out, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal for %s: %s %s\n", opts.tenant, total.String(), model.EmissionsUnit)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant identifier (required)")
	cmd.Flags().StringVar(&opts.method, "method", "", "Only show RETRIEVAL, GENERATIVE or FAILED results")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "Maximum rows to list")
	cmd.Flags().BoolVar(&opts.succeededOnly, "succeeded-only", false, "Hide failed attempts")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print as JSON")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func printTable(w io.Writer, rows []model.CalculationResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tMETHOD\tEMISSIONS\tCONFIDENCE\tSOURCE\tREVIEW\tCREATED")
	for i := range rows {
		r := &rows[i]
		emissions := "-"
		if r.Succeeded() {
			emissions = r.TotalEmissions.StringFixed(3)
		}
		source := r.Source
		if r.Error != nil {
			source = string(r.Error.Kind)
		}
		review := ""
		if r.RequiresReview {
			review = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			r.EntryID, r.Method, emissions, r.Confidence, source, review, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
