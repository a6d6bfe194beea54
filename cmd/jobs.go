package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/runner"
	"github.com/willregister/admin-cli/internal/store"
	"github.com/willregister/admin-cli/internal/upload"
)

var (
	jobsStatus string
	jobsFirmID string
	jobsLimit  int
	jobsOut    string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage upload jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upload jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(jobsStatus),
			FirmID: jobsFirmID,
			Limit:  jobsLimit,
		})
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
			return nil
		}
		for _, j := range jobs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %s  %d/%d records  batch %d/%d  %s\n",
				j.ID, j.Status, j.FirmName, j.ProcessedRecords, j.TotalRecords,
				j.CurrentBatch, j.TotalBatches, j.FileName)
		}
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job with its activity log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Job %s (%s)\n", job.ID, job.Status)
		fmt.Fprintf(out, "  File: %s  Firm: %s  User: %s\n", job.FileName, job.FirmName, job.UserName)
		fmt.Fprintf(out, "  Records: %d total, %d processed, %d succeeded, %d failed\n",
			job.TotalRecords, job.ProcessedRecords, job.SuccessfulRecords, job.FailedRecords)
		fmt.Fprintf(out, "  Batch: %d/%d  CanCancel: %v  CanRetry: %v\n",
			job.CurrentBatch, job.TotalBatches, job.CanCancel, job.CanRetry)
		if job.Duration != "" {
			fmt.Fprintf(out, "  Duration: %s\n", job.Duration)
		}
		fmt.Fprintln(out, "Activity:")
		for _, entry := range job.ActivityLog {
			fmt.Fprintf(out, "  %s  %s\n", entry.Timestamp.Format(time.RFC3339), entry.Message)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.CancelJob(ctx, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("job cancelled",
			zap.String("job_id", job.ID),
			zap.Int("processed", job.ProcessedRecords),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled (%d/%d records processed)\n",
			job.ID, job.ProcessedRecords, job.TotalRecords)
		return nil
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Requeue and rerun a failed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := runner.NewWithRate(st, rate.Limit(cfg.Jobs.BatchesPerSec)).Retry(ctx, args[0]); err != nil {
			return eris.Wrap(err, "jobs: retry")
		}
		final, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s: %d succeeded, %d failed\n",
			final.ID, final.Status, final.SuccessfulRecords, final.FailedRecords)
		return nil
	},
}

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete finished jobs past the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		retention := time.Duration(cfg.Jobs.RetentionDays) * 24 * time.Hour
		n, err := st.CleanupJobs(ctx, retention)
		if err != nil {
			return err
		}
		zap.L().Info("job cleanup complete", zap.Int("deleted", n))
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d jobs older than %d days\n", n, cfg.Jobs.RetentionDays)
		return nil
	},
}

var jobsExportFailedCmd = &cobra.Command{
	Use:   "export-failed <job-id>",
	Short: "Export a job's failed records as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		if len(job.Errors) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Job has no failed records")
			return nil
		}

		out := jobsOut
		if out == "" {
			out = fmt.Sprintf("job_%s_failed.csv", job.ID)
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "jobs: create %s", out)
		}
		defer f.Close() //nolint:errcheck

		if err := upload.WriteFailedRecordsCSV(f, job.Errors); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d failed records to %s\n", len(job.Errors), out)
		return nil
	},
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsListCmd.Flags().StringVar(&jobsFirmID, "firm-id", "", "filter by firm")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 50, "max jobs to list")
	jobsExportFailedCmd.Flags().StringVar(&jobsOut, "out", "", "output path (default job_<id>_failed.csv)")

	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsCancelCmd, jobsRetryCmd, jobsCleanupCmd, jobsExportFailedCmd)
	rootCmd.AddCommand(jobsCmd)
}
