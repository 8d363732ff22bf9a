package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tally/internal/importer"
	gsheet "tally/internal/sheets/google"
)

func importCmd() *cobra.Command {
	var (
		ownerID int64
		actorID int64
		format  string
		sheet   string
		tab     string
	)
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import transactions into a ledger",
		Long: `Import a CSV, XLSX or OFX file (or a Google Sheet range) into a ledger.
The whole file is rejected when any row is invalid.

Examples:
  tallyctl import --owner 1 ~/Downloads/january.csv
  tallyctl import --owner 1 --actor 2 statement.qfx
  tallyctl import --owner 1 --sheet <spreadsheet-url> --tab January`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID <= 0 {
				return fmt.Errorf("--owner is required")
			}
			if actorID == 0 {
				actorID = ownerID
			}
			if sheet == "" && len(args) == 0 {
				return fmt.Errorf("a file or --sheet is required")
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Access.Authorize(ctx, actorID, ownerID, true); err != nil {
				return fmt.Errorf("user %d cannot write ledger %d: %w", actorID, ownerID, err)
			}

			var res importer.Result
			if sheet != "" {
				id, perr := gsheet.ParseSpreadsheetRef(sheet)
				if perr != nil {
					return perr
				}
				res, err = b.Importer.ImportSheet(ctx, ownerID, actorID, id, gsheet.ImportRange(tab))
			} else {
				path := args[0]
				name := format
				if name == "" {
					name = filepath.Base(path)
				}
				f, ferr := importer.ParseFormat(name)
				if ferr != nil {
					return ferr
				}
				file, oerr := os.Open(path)
				if oerr != nil {
					return fmt.Errorf("open %s: %w", path, oerr)
				}
				defer file.Close()
				res, err = b.Importer.Import(ctx, ownerID, actorID, f, file)
			}

			if ve, ok := importer.AsValidationError(err); ok {
				for _, re := range ve.Errors {
					cmd.PrintErrln(re.Error())
				}
				return fmt.Errorf("import rejected: %d invalid rows", len(ve.Errors))
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "ledger owner user ID")
	cmd.Flags().Int64Var(&actorID, "actor", 0, "user recorded as creator (default: the owner)")
	cmd.Flags().StringVar(&format, "format", "", "csv, xlsx or ofx (default: from the file extension)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "spreadsheet URL or ID to import instead of a file")
	cmd.Flags().StringVar(&tab, "tab", "", "sheet tab to read (default: first sheet)")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
