package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/upload"
)

var (
	fixFile      string
	fixMapping   string
	fixPostcodes bool
	fixDates     bool
	fixDryRun    bool
	fixOut       string
)

// fixCmd applies the bulk-fix engine to a file. The preview/confirm contract
// is kept as two invocations: --dry-run prints the before/after list and
// changes nothing; a second run without it applies the same fixes.
var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Preview and apply bulk fixes for postcode and date errors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !fixPostcodes && !fixDates {
			return eris.New("fix: nothing to do, pass --postcodes and/or --dates")
		}

		parsed, err := parseUploadFile(fixFile)
		if err != nil {
			return err
		}

		mappings := upload.DetectColumnMapping(parsed.Columns)
		if fixMapping != "" {
			overrides, err := upload.LoadOverrides(fixMapping)
			if err != nil {
				return err
			}
			mappings = upload.ApplyOverrides(mappings, overrides)
		}

		rows, _ := upload.ValidateRows(parsed.Rows, mappings)

		var previews []upload.FixPreview
		if fixPostcodes {
			previews = append(previews, upload.PreviewPostcodeFix(rows)...)
		}
		if fixDates {
			previews = append(previews, upload.PreviewDateFix(rows)...)
		}

		if len(previews) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No fixable rows found")
			return nil
		}

		for _, p := range previews {
			marker := "->"
			if p.Before == p.After {
				marker = "== (unchanged)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "row %d %s: %q %s %q\n", p.RowIndex+1, p.Field, p.Before, marker, p.After)
		}
		if fixDryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "%d fixes previewed; rerun without --dry-run to apply\n", len(previews))
			return nil
		}

		fixed := upload.ApplyFixes(rows, previews, mappings)
		out := fixOut
		if out == "" {
			out = strings.TrimSuffix(fixFile, filepath.Ext(fixFile)) + "_fixed.csv"
		}
		if err := writeFixedCSV(out, fixed); err != nil {
			return err
		}

		summary := countStatuses(fixed)
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d fixes, wrote %s (%d valid, %d warnings, %d errors)\n",
			len(previews), out, summary.Valid, summary.Warnings, summary.Errors)
		return nil
	},
}

func countStatuses(rows []model.ValidatedRow) upload.Summary {
	sum := upload.Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case model.RowValid:
			sum.Valid++
		case model.RowWarning:
			sum.Warnings++
		case model.RowError:
			sum.Errors++
		}
	}
	return sum
}

// writeFixedCSV writes the corrected rows back out with catalog field names
// as headers, ready for a clean upload pass.
func writeFixedCSV(path string, rows []model.ValidatedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "fix: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	cw := csv.NewWriter(f)
	fields := upload.Catalog()
	header := make([]string, 0, len(fields))
	for _, tf := range fields {
		header = append(header, tf.Field)
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "fix: write header")
	}
	for _, row := range rows {
		record := make([]string, 0, len(fields))
		for _, tf := range fields {
			record = append(record, row.Data[tf.Field])
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "fix: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "fix: flush")
}

func init() {
	fixCmd.Flags().StringVar(&fixFile, "file", "", "path to CSV or XLSX file (required)")
	fixCmd.Flags().StringVar(&fixMapping, "mapping", "", "path to YAML mapping overrides")
	fixCmd.Flags().BoolVar(&fixPostcodes, "postcodes", false, "fix incorrectly formatted postcodes")
	fixCmd.Flags().BoolVar(&fixDates, "dates", false, "swap unambiguous US-format dates to DD/MM")
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "preview fixes without writing anything")
	fixCmd.Flags().StringVar(&fixOut, "out", "", "path for the corrected CSV (default <file>_fixed.csv)")
	_ = fixCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(fixCmd)
}
