package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/runner"
	"github.com/willregister/admin-cli/internal/upload"
)

var (
	uploadFile      string
	uploadMapping   string
	uploadFirmID    string
	uploadFirmName  string
	uploadUserID    string
	uploadUserName  string
	uploadSkipErrs  bool
	uploadErrExport string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Validate and import a bulk will upload",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		parsed, err := parseUploadFile(uploadFile)
		if err != nil {
			return err
		}

		mappings := upload.DetectColumnMapping(parsed.Columns)
		if uploadMapping != "" {
			overrides, err := upload.LoadOverrides(uploadMapping)
			if err != nil {
				return err
			}
			mappings = upload.ApplyOverrides(mappings, overrides)
		}

		if problems := upload.CheckMappings(mappings); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "unmapped required field: %s (%s)\n", p.Label, p.Field)
			}
			return eris.Errorf("upload: %d required fields are unmapped; supply --mapping overrides", len(problems))
		}

		rows, summary := upload.ValidateRows(parsed.Rows, mappings)
		fmt.Fprintf(cmd.OutOrStdout(), "Validated %d rows: %d valid, %d warnings, %d errors\n",
			summary.Total, summary.Valid, summary.Warnings, summary.Errors)

		if summary.Errors > 0 {
			if !uploadSkipErrs {
				printRowIssues(cmd, rows)
				return eris.Errorf("upload: %d rows have blocking errors; fix them or rerun with --skip-errors", summary.Errors)
			}
			if err := exportErrorRows(cmd, rows); err != nil {
				return err
			}
		}

		records := upload.ImportableRecords(rows)
		if len(records) == 0 {
			return eris.New("upload: no importable rows")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job := model.NewUploadJob("bulk_will_upload", uploadFirmID, uploadFirmName,
			uploadUserID, uploadUserName, filepath.Base(uploadFile), records)
		created, err := st.CreateJob(ctx, job)
		if err != nil {
			return eris.Wrap(err, "upload: create job")
		}

		zap.L().Info("upload job created",
			zap.String("job_id", created.ID),
			zap.Int("records", created.TotalRecords),
			zap.Int("batches", created.TotalBatches),
		)

		if err := runner.NewWithRate(st, rate.Limit(cfg.Jobs.BatchesPerSec)).Run(ctx, created.ID); err != nil {
			return eris.Wrap(err, "upload: run job")
		}

		final, err := st.GetJob(ctx, created.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s: %d succeeded, %d failed\n",
			final.ID, final.Status, final.SuccessfulRecords, final.FailedRecords)
		return nil
	},
}

func parseUploadFile(path string) (*upload.ParseResult, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return upload.ParseXLSX(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "upload: read %s", path)
	}
	return upload.ParseCSV(data)
}

func printRowIssues(cmd *cobra.Command, rows []model.ValidatedRow) {
	for _, row := range rows {
		if row.Status != model.RowError {
			continue
		}
		for _, is := range row.Issues {
			if is.Type != model.IssueError {
				continue
			}
			line := fmt.Sprintf("row %d: %s", row.RowIndex+1, is.Message)
			if is.Suggestion != "" {
				line += " (" + is.Suggestion + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
}

func exportErrorRows(cmd *cobra.Command, rows []model.ValidatedRow) error {
	out := uploadErrExport
	if out == "" {
		out = strings.TrimSuffix(uploadFile, filepath.Ext(uploadFile)) + "_errors.csv"
	}
	f, err := os.Create(out)
	if err != nil {
		return eris.Wrapf(err, "upload: create error export %s", out)
	}
	defer f.Close() //nolint:errcheck

	n, err := upload.WriteErrorExportCSV(f, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rejected rows to %s\n", n, out)
	return nil
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "path to CSV or XLSX file (required)")
	uploadCmd.Flags().StringVar(&uploadMapping, "mapping", "", "path to YAML mapping overrides")
	uploadCmd.Flags().StringVar(&uploadFirmID, "firm-id", "", "owning firm ID (required)")
	uploadCmd.Flags().StringVar(&uploadFirmName, "firm-name", "", "owning firm name")
	uploadCmd.Flags().StringVar(&uploadUserID, "user-id", "", "acting user ID")
	uploadCmd.Flags().StringVar(&uploadUserName, "user-name", "", "acting user name")
	uploadCmd.Flags().BoolVar(&uploadSkipErrs, "skip-errors", false, "import valid rows and export error rows to CSV")
	uploadCmd.Flags().StringVar(&uploadErrExport, "export-errors", "", "path for the rejected-rows CSV (default <file>_errors.csv)")
	_ = uploadCmd.MarkFlagRequired("file")
	_ = uploadCmd.MarkFlagRequired("firm-id")
	rootCmd.AddCommand(uploadCmd)
}
