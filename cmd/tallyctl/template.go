package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tally/internal/importer"
	gsheet "tally/internal/sheets/google"
)

func templateCmd() *cobra.Command {
	var (
		out   string
		sheet string
		tab   string
	)
	cmd := &cobra.Command{
		Use:   "template [csv|xlsx]",
		Short: "Write an import template to a file or a Google Sheet",
		Long: `Write the import template: the header row plus one example income and one
example expense.

Examples:
  # Save a spreadsheet template next to you
  tallyctl template xlsx --out tally-import.xlsx

  # Seed a Google Sheet the service account can edit
  tallyctl template --sheet https://docs.google.com/spreadsheets/d/<id>/edit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sheet != "" {
				id, err := gsheet.ParseSpreadsheetRef(sheet)
				if err != nil {
					return err
				}
				client, err := gsheet.New(cmd.Context(), gsheet.Credentials{
					JSON: cfg.GoogleServiceAccountJSON,
					File: cfg.GoogleServiceAccountFile,
				})
				if err != nil {
					return err
				}
				if err := importer.WriteSheetTemplate(cmd.Context(), client, id, tab); err != nil {
					return err
				}
				cmd.Printf("template written to spreadsheet %s\n", id)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("a format (csv or xlsx) is required unless --sheet is given")
			}
			format, err := importer.ParseFormat(args[0])
			if err != nil {
				return err
			}
			tpl, err := importer.BuildTemplate(format)
			if err != nil {
				return err
			}
			if out == "" {
				out = tpl.Filename
			}
			if err := os.WriteFile(out, tpl.Data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			cmd.Printf("template written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: tally-import.<format>)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "spreadsheet URL or ID to seed instead of writing a file")
	cmd.Flags().StringVar(&tab, "tab", "", "sheet tab to write (default: Transactions)")
	return cmd
}
