package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/tablerest/core/catalog"
)

func newTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print the reflected tables and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cat, err := openCatalog(cmd.Context(), serviceFromCommand(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			renderCatalog(cmd.OutOrStdout(), cat)
			return nil
		},
	}
}

// renderCatalog prints one table per database table with a row per column
func renderCatalog(w io.Writer, cat *catalog.Catalog) {
	for _, t := range cat.Tables() {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetTitle(t.Name)
		tw.AppendHeader(table.Row{"Column", "Type", "DB Type", "Nullable", "Key", "References"})

		references := map[string]string{}
		for _, fk := range t.ForeignKeys {
			references[fk.Column] = fk.ReferencedTable + "." + fk.ReferencedColumn
		}
		for _, c := range t.Columns {
			var key []string
			if c.PrimaryKey {
				key = append(key, "PK")
			}
			if c.AutoIncrement {
				key = append(key, "auto")
			}
			tw.AppendRow(table.Row{c.Name, c.Type, c.DBType, c.Nullable, strings.Join(key, ","), references[c.Name]})
		}
		tw.SetStyle(table.StyleLight)
		tw.Render()
		fmt.Fprintln(w)
	}
}
