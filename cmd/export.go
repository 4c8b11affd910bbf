package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sells-group/mailsentry/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an XLSX workbook of processed items, bills and transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := export.Collect(afero.NewOsFs(), cfg.Output.Directory)
		if err != nil {
			return err
		}
		if err := export.Save(exportOut, records); err != nil {
			return err
		}
		fmt.Printf("wrote %d items to %s\n", len(records), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "report.xlsx", "workbook path")
	rootCmd.AddCommand(exportCmd)
}
