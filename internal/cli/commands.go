package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/export/excel"
)

// ErrConflict is returned by set-row when a row changed on the server after
// it was read.
var ErrConflict = errors.New("row changed on the server; rerun the command or pass --force")

func (a *app) spreadsheetsCmd() *cobra.Command {
	var query sheetfeed.SpreadsheetQuery

	cmd := &cobra.Command{
		Use:   "spreadsheets",
		Short: "List spreadsheets, optionally filtered by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, err := a.svc.Spreadsheets(cmd.Context(), query)
			if err != nil {
				return err
			}
			for sp, err := range cursor.Seq(cmd.Context()) {
				if err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), sp.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query.Title, "title", "", "title to search for")
	cmd.Flags().BoolVar(&query.Exact, "exact", false, "match the title exactly")
	return cmd
}

func (a *app) worksheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worksheets <spreadsheet>",
		Short: "List the worksheets of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := a.svc.Spreadsheet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cursor, err := sp.Worksheets(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TITLE\tROWS\tCOLS")
			for ws, err := range cursor.Seq(cmd.Context()) {
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\n", ws.Title, ws.RowCount, ws.ColCount)
			}
			return tw.Flush()
		},
	}
}

func (a *app) addWorksheetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-worksheet <spreadsheet> <title> <column>...",
		Short: "Create a worksheet and write its header row",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := a.svc.Spreadsheet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ws, err := sp.AddWorksheet(cmd.Context(), args[1], escapeAll(args[2:]))
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "created %s\n", ws.Title)
			return nil
		},
	}
}

func (a *app) rowsCmd() *cobra.Command {
	var query sheetfeed.RowQuery

	cmd := &cobra.Command{
		Use:   "rows <spreadsheet> <worksheet>",
		Short: "Print the rows of a worksheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.worksheet(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			cursor, err := ws.Rows(cmd.Context(), query)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			var columns []string
			for row, err := range cursor.Seq(cmd.Context()) {
				if err != nil {
					return err
				}
				if columns == nil {
					columns = row.Columns()
					fmt.Fprintln(tw, strings.Join(columns, "\t"))
				}
				values := make([]string, len(columns))
				for i, col := range columns {
					values[i] = row.Get(col)
				}
				fmt.Fprintln(tw, strings.Join(values, "\t"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&query.Query, "query", "", "structured query, e.g. 'age > 25'")
	cmd.Flags().StringVar(&query.OrderBy, "orderby", "", "column to sort by")
	cmd.Flags().BoolVar(&query.Reverse, "reverse", false, "reverse the sort order")
	return cmd
}

func (a *app) addRowCmd() *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:   "add-row <spreadsheet> <worksheet>",
		Short: "Append a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(set)
			if err != nil {
				return err
			}
			ws, err := a.worksheet(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if _, err := ws.AddRow(cmd.Context(), escapeValues(values)); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "added 1 row")
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "column=value to write (repeatable)")
	return cmd
}

func (a *app) setRowCmd() *cobra.Command {
	var match, set []string
	var force bool

	cmd := &cobra.Command{
		Use:   "set-row <spreadsheet> <worksheet>",
		Short: "Update the rows matching --match",
		Long: `Updates every row whose columns equal all --match values. Writes are
conditional on the row being unchanged since it was read; --force writes
unconditionally. Without --match every row is updated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := parseAssignments(match)
			if err != nil {
				return err
			}
			values, err := parseAssignments(set)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return sheetfeed.ErrNoColumns
			}

			rows, err := a.matchingRows(cmd.Context(), args[0], args[1], where)
			if err != nil {
				return err
			}

			updated, conflicts := 0, 0
			for _, row := range rows {
				setEscaped(row, values)
				if force {
					if err := row.Apply(cmd.Context()); err != nil {
						return err
					}
					updated++
					continue
				}

				outcome, err := row.Commit(cmd.Context())
				if err != nil {
					return err
				}
				if outcome == sheetfeed.Conflict {
					conflicts++
					a.logger.Warn("row not updated", zap.String("row", row.ID()), zap.Stringer("outcome", outcome))
					continue
				}
				updated++
			}

			fmt.Fprintf(out(cmd), "updated %d of %d rows\n", updated, len(rows))
			if conflicts > 0 {
				return fmt.Errorf("%d rows: %w", conflicts, ErrConflict)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&match, "match", nil, "column=value the row must hold (repeatable)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "column=value to write (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite concurrent changes")
	return cmd
}

func (a *app) setColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-columns <spreadsheet> <worksheet> <column>...",
		Short: "Write the header row of a worksheet",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.worksheet(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return ws.SetColumns(cmd.Context(), escapeAll(args[2:]))
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var file, sheet string

	cmd := &cobra.Command{
		Use:   "export <spreadsheet> <worksheet>",
		Short: "Copy a worksheet's rows into an .xlsx workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := sheet
			if name == "" {
				name = args[1]
			}
			exporter, err := excel.NewExporter(&excel.Config{FilePath: file, SheetName: name}, a.logger)
			if err != nil {
				return err
			}
			ws, err := a.worksheet(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			cursor, err := ws.Rows(cmd.Context(), sheetfeed.RowQuery{})
			if err != nil {
				return err
			}
			n, err := exporter.Export(cmd.Context(), cursor, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "exported %d rows to %s\n", n, file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "out", "", "workbook to write")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default: worksheet title)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var file, sheet string

	cmd := &cobra.Command{
		Use:   "import <spreadsheet> <worksheet>",
		Short: "Upload the cells of an .xlsx sheet into a worksheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := sheet
			if name == "" {
				name = args[1]
			}
			importer, err := excel.NewImporter(&excel.Config{FilePath: file, SheetName: name})
			if err != nil {
				return err
			}
			header, items, err := importer.Load(cmd.Context())
			if err != nil {
				return err
			}
			ws, err := a.worksheet(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if err := ws.SetColumns(cmd.Context(), header); err != nil {
				return err
			}
			if err := ws.Populate(cmd.Context(), items); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "imported %d rows from %s\n", len(items), file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "in", "", "workbook to read")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default: worksheet title)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (a *app) worksheet(ctx context.Context, spreadsheet, worksheet string) (*sheetfeed.Worksheet, error) {
	sp, err := a.svc.Spreadsheet(ctx, spreadsheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spreadsheet, err)
	}
	ws, err := sp.Worksheet(ctx, worksheet)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", spreadsheet, worksheet, err)
	}
	return ws, nil
}

// matchingRows reads every row whose columns equal all values in where.
func (a *app) matchingRows(ctx context.Context, spreadsheet, worksheet string, where map[string]string) ([]*sheetfeed.Row, error) {
	ws, err := a.worksheet(ctx, spreadsheet, worksheet)
	if err != nil {
		return nil, err
	}
	query := sheetfeed.RowQuery{}
	for _, col := range sortedColumns(where) {
		query.Conditions = append(query.Conditions, sheetfeed.Condition{Column: col, Operator: "==", Value: where[col]})
	}
	cursor, err := ws.Rows(ctx, query)
	if err != nil {
		return nil, err
	}
	return cursor.All(ctx)
}

// parseAssignments turns column=value pairs into a map.
func parseAssignments(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		col, value, ok := strings.Cut(pair, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid assignment %q, want column=value", pair)
		}
		values[col] = value
	}
	return values, nil
}

// escapeValues returns values with every cell XML-escaped for a payload.
func escapeValues(values map[string]string) map[string]string {
	escaped := make(map[string]string, len(values))
	for col, v := range values {
		escaped[col] = sheetfeed.EncodeXML(v)
	}
	return escaped
}

func escapeAll(values []string) []string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = sheetfeed.EncodeXML(v)
	}
	return escaped
}

// setEscaped applies values to row. A commit sends every cell, and cells read
// from the feed hold decoded text, so the untouched ones are escaped as well.
func setEscaped(row *sheetfeed.Row, values map[string]string) {
	merged := row.Values()
	for col, v := range values {
		merged[col] = v
	}
	for col, v := range merged {
		row.Set(col, sheetfeed.EncodeXML(v))
	}
}

func sortedColumns(m map[string]string) []string {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}
