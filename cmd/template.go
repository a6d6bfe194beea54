package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/willregister/admin-cli/internal/upload"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the bulk-upload CSV template with sample rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := os.Create(templateOut)
		if err != nil {
			return eris.Wrapf(err, "template: create %s", templateOut)
		}
		defer f.Close() //nolint:errcheck

		if err := upload.WriteTemplateCSV(f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote template to %s\n", templateOut)
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateOut, "out", "will_upload_template.csv", "output path")
	rootCmd.AddCommand(templateCmd)
}
