// Package batch processes an entries file through the batch orchestrator or,
// for large files, as an asynchronous job.
package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	internalbatch "github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/config"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/jobs"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/service"
)

const pollInterval = 500 * time.Millisecond

type options struct {
	tenant string
	async  bool
	quiet  bool
}

// Command creates the batch command.
func Command(ctx *config.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "batch [entries.yaml|entries.json]",
		Short: "Calculate and store emissions for an entries file",
		Long: `Calculate emissions for every entry in a YAML or JSON file and store the
results. Entries that already have a stored result are skipped. Files larger
than the interactive limit are run as a chunked job.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(args[0], opts.tenant)
			if err != nil {
				return err
			}
			svc, err := ctx.Service()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.async || len(entries) > svc.MaxBatchEntries() {
				return runJob(cmd.Context(), svc, entries, opts, out, cmd.ErrOrStderr())
			}
			return runBatch(cmd.Context(), svc, entries, opts, out, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant for entries that do not name one")
	cmd.Flags().BoolVar(&opts.async, "async", false, "Run as a chunked job even when the file fits one batch")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print progress")

	return cmd
}

func runBatch(ctx context.Context, svc *service.Service, entries []model.ActivityEntry, opts *options, out, progress io.Writer) error {
	var onProgress internalbatch.ProgressFunc
	if !opts.quiet {
		onProgress = func(completed, total int) {
			fmt.Fprintf(progress, "\rProcessed %d/%d entries", completed, total)
			if completed == total {
				fmt.Fprintln(progress)
			}
		}
	}

	summary, err := svc.CalculateBatch(ctx, entries, onProgress)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

func runJob(ctx context.Context, svc *service.Service, entries []model.ActivityEntry, opts *options, out, progress io.Writer) error {
	tenant := opts.tenant
	if tenant == "" && len(entries) > 0 {
		tenant = entries[0].TenantID
	}

	svc.Start(ctx)
	job, err := svc.SubmitJob(tenant, entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Job %s submitted: %d entries in %d chunks\n", job.ID, job.Total, job.Chunks)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return errors.Newf("interrupted while job %s was %s", job.ID, job.Status).
				Component("cli").
				Category(errors.CategoryCancellation).
				Build()
		case <-ticker.C:
		}

		job, err = svc.Job(job.ID)
		if err != nil {
			return err
		}
		if !opts.quiet {
			fmt.Fprintf(progress, "\r%s: %d/%d entries, %d/%d chunks", job.Status, job.Processed, job.Total, job.ChunksDone, job.Chunks)
		}
		if job.Status.Terminal() {
			break
		}
	}
	if !opts.quiet {
		fmt.Fprintln(progress)
	}

	if job.Summary != nil {
		printSummary(out, job.Summary)
	}
	if job.Status != jobs.StatusCompleted {
		return errors.Newf("job %s %s: %s", job.ID, job.Status, job.Error).
			Component("cli").
			Category(errors.CategoryJobQueue).
			Build()
	}
	return nil
}

func printSummary(w io.Writer, s *model.BatchSummary) {
	fmt.Fprintln(w, internalbatch.FormatSummary(s))
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s: %s: %s\n", e.EntryID, e.Kind, e.Error)
	}
}
