package export

import "fmt"

// Table is a rendered-agnostic tabular document.
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// Column declares a header and its relative width in the PDF layout.
type Column struct {
	Header string
	Weight float64
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

func (t Table) headers() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Header
	}
	return out
}
