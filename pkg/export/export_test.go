package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Weekly digest",
		Columns: []Column{{Header: "ID", Weight: 1}, {Header: "Title", Weight: 4}, {Header: "Author"}},
		Rows: [][]string{
			{"1", "Hello, world", "alice"},
			{"2", strings.Repeat("long ", 40), "bob"},
		},
	}
}

func TestRenderCSVQuotesCells(t *testing.T) {
	out, err := RenderCSV(sampleTable())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Title,Author", lines[0])
	assert.Equal(t, `1,"Hello, world",alice`, lines[1])
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows = append(tbl.Rows, []string{"3"})
	_, err := RenderCSV(tbl)
	assert.Error(t, err)
	_, err = RenderPDF(tbl)
	assert.Error(t, err)
}

func TestRenderPDFProducesDocument(t *testing.T) {
	out, err := RenderPDF(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, pageWidth, sum, 0.001)
	assert.InDelta(t, pageWidth*4/6, widths[1], 0.001)
}
