// Package report renders bot results as wikitext fragments and CSV,
// the formats maintenance reports on a wiki are posted in.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// BulletList renders titles as a wikitext bullet list. Each entry is
// link-escaped with a leading colon so category and file pages render
// as links instead of being transcluded.
func BulletList(header string, titles []string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		if !strings.HasSuffix(header, "\n") {
			b.WriteByte('\n')
		}
	}
	for _, title := range titles {
		fmt.Fprintf(&b, "*[[:%s]]\n", title)
	}
	return b.String()
}

// DataTable is tabular report data with a fixed column order.
type DataTable struct {
	Columns []string
	rows    [][]string
}

// NewDataTable creates a table with the given column headers.
func NewDataTable(columns ...string) *DataTable {
	return &DataTable{Columns: columns}
}

// AddRow appends one row. Short rows are padded with empty cells;
// extra cells are dropped.
func (dt *DataTable) AddRow(cells ...string) {
	row := make([]string, len(dt.Columns))
	copy(row, cells)
	dt.rows = append(dt.rows, row)
}

// Len returns the number of data rows.
func (dt *DataTable) Len() int {
	return len(dt.rows)
}

// WriteCSV writes the table as CSV, headers first.
func (dt *DataTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dt.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range dt.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWikitext writes the table in wikitable markup.
func (dt *DataTable) WriteWikitext(w io.Writer) error {
	var b strings.Builder
	b.WriteString("{| class=\"wikitable sortable\"\n")
	b.WriteString("! ")
	b.WriteString(strings.Join(dt.Columns, " !! "))
	b.WriteByte('\n')
	for _, row := range dt.rows {
		b.WriteString("|-\n| ")
		b.WriteString(strings.Join(row, " || "))
		b.WriteByte('\n')
	}
	b.WriteString("|}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// PagerLinks renders the navigation line for a paginated report page:
// "Previous <limit> | Next <limit>", with each side present only when
// there are entries in that direction.
func PagerLinks(offset, limit, total int) string {
	var parts []string
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("Previous %d", limit))
	}
	if offset+limit < total {
		parts = append(parts, fmt.Sprintf("Next %d", limit))
	}
	return strings.Join(parts, " | ")
}
