package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/trezcool/masomo-portal/services/apiclient"
)

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// printRecords prints one row per record. The id comes first, then the scalar fields by name.
func printRecords(w io.Writer, records []apiclient.Record) {
	cols := recordColumns(records)

	table := newTable(w)
	table.SetAutoFormatHeaders(true)
	table.SetColumnSeparator("")
	table.SetHeader(append([]string{"id"}, cols...))
	for _, rec := range records {
		row := make([]string, 0, len(cols)+1)
		row = append(row, rec.ID())
		for _, col := range cols {
			row = append(row, cellValue(rec[col]))
		}
		table.Append(row)
	}
	table.Render()
}

func printPairs(w io.Writer, pairs [][2]string) {
	table := newTable(w)
	table.SetAutoFormatHeaders(false)
	table.SetColumnSeparator(":")
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
}

func recordColumns(records []apiclient.Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k, v := range rec {
			switch k {
			case "_id", "id", "__v", "password":
				continue
			}
			switch v.(type) {
			case map[string]interface{}, []interface{}:
				continue
			}
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func cellValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
