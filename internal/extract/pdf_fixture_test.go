package extract_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tallyconv/internal/export"
	"github.com/sells-group/tallyconv/internal/extract"
	"github.com/sells-group/tallyconv/internal/normalize"
)

// buildPDF assembles a PDF from the numbered objects, computing the xref
// table from the actual byte offsets so the document is valid by
// construction.
func buildPDF(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	start := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, start)
	return buf.Bytes()
}

// voucherPDF renders a one-page PDF whose only content is a two-column text
// grid: a header line plus three data rows, columns at x=72 and x=300.
func voucherPDF() []byte {
	rows := [][2]string{
		{"Date", "Amount"},
		{"2024-01-15", "100"},
		{"2024-01-16", "250"},
		{"2024-01-17", "980"},
	}
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n")
	y := 700
	for _, row := range rows {
		fmt.Fprintf(&content, "1 0 0 1 72 %d Tm (%s) Tj\n", y, row[0])
		fmt.Fprintf(&content, "1 0 0 1 300 %d Tm (%s) Tj\n", y, row[1])
		y -= 20
	}
	content.WriteString("ET")
	stream := content.String()

	return buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	})
}

func TestPDFExtractor_DetectsTextGrid(t *testing.T) {
	t.Parallel()

	e := extract.NewPDFExtractor(extract.LayoutOptions{})
	tables, err := e.Extract(context.Background(), voucherPDF())
	require.NoError(t, err)
	require.Len(t, tables, 1)

	require.Len(t, tables[0], 4)
	assert.Equal(t, []string{"Date", "Amount"}, tables[0][0])
	assert.Equal(t, []string{"2024-01-15", "100"}, tables[0][1])
	assert.Equal(t, []string{"2024-01-17", "980"}, tables[0][3])
}

func TestPDFExtractor_TableExportsToTallyXML(t *testing.T) {
	t.Parallel()

	e := extract.NewPDFExtractor(extract.LayoutOptions{})
	tables, err := e.Extract(context.Background(), voucherPDF())
	require.NoError(t, err)

	table, findings, err := normalize.Normalize(tables)
	require.NoError(t, err)
	assert.Empty(t, findings)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"Date", "Amount"}, table.Headers)

	out, err := export.Render(table, export.FormatXML)
	require.NoError(t, err)

	doc := string(out)
	assert.Equal(t, 3, strings.Count(doc, "<TALLYMESSAGE>"), "one row-record per data row")
	assert.Equal(t, 3, strings.Count(doc, "<DATE>"))
	assert.Equal(t, 3, strings.Count(doc, "<AMOUNT>"))
	assert.Contains(t, doc, "<DATE>2024-01-15</DATE>")
	assert.Contains(t, doc, "<AMOUNT>980</AMOUNT>")
}
