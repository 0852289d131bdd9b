package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tallyconv/internal/model"
)

func sampleTable(t *testing.T) *model.TableData {
	t.Helper()
	table, err := model.NewTableData([]string{"Date", "Party Name", "Amount"})
	require.NoError(t, err)
	table.AppendRow([]model.CellValue{
		model.StringValue("2024-01-15"), model.StringValue("Acme"), model.NumberValue(1250),
	})
	table.AppendRow([]model.CellValue{
		model.StringValue("2024-01-16"), model.StringValue("Globex"), model.NumberValue(980.5),
	})
	table.AppendRow([]model.CellValue{
		model.StringValue("2024-01-17"), model.StringValue("Initech"), model.EmptyValue(),
	})
	return table
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"XLSX", FormatXLSX, false},
		{" xml ", FormatXML, false},
		{"pdf", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, model.IsKind(err, model.FailureUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := Render(sampleTable(t), Format("docx"))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.FailureUnsupportedFormat))
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "text/csv", FormatCSV.MediaType())
	assert.Equal(t, "application/xml", FormatXML.MediaType())
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FormatXLSX.MediaType())
}

func TestCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	table := sampleTable(t)
	data, err := Render(table, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Party Name,Amount", lines[0])
	assert.Equal(t, "2024-01-15,Acme,1250", lines[1])
	assert.Equal(t, "2024-01-17,Initech,", lines[3], "empty cell renders as empty field")

	parsed, err := ReadCSV(data)
	require.NoError(t, err)
	assert.Equal(t, table.Fingerprint(), parsed.Fingerprint())
}

func TestCSV_DeterministicAndMetadataBlind(t *testing.T) {
	t.Parallel()

	table := sampleTable(t)
	first, err := Render(table, FormatCSV)
	require.NoError(t, err)
	second, err := Render(table, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Same values, noisy metadata: must render byte-identically.
	noisy := table.Clone()
	cell, _ := noisy.Cell(0, "Amount")
	conf := 0.12
	cell.Metadata = model.CellMetadata{Error: true, Status: model.StatusError, Confidence: &conf}
	require.True(t, noisy.SetCell(0, "Amount", cell))

	third, err := Render(noisy, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, first, third, "metadata never reaches exported output")
}

func TestXLSX_RoundTrip(t *testing.T) {
	t.Parallel()

	table := sampleTable(t)
	data, err := Render(table, FormatXLSX)
	require.NoError(t, err)

	parsed, err := ReadXLSX(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Party Name", "Amount"}, parsed.Headers)
	require.Len(t, parsed.Rows, 3)

	amount, ok := parsed.Cell(1, "Amount")
	require.True(t, ok)
	assert.Equal(t, "980.5", amount.Value.String())
}

func TestTallyXML_Envelope(t *testing.T) {
	t.Parallel()

	table, err := model.NewTableData([]string{"Date", "Amount"})
	require.NoError(t, err)
	table.AppendRow([]model.CellValue{model.StringValue("2024-01-15"), model.NumberValue(100)})
	table.AppendRow([]model.CellValue{model.StringValue("2024-01-16"), model.NumberValue(200)})
	table.AppendRow([]model.CellValue{model.StringValue("2024-01-17"), model.NumberValue(300)})

	data, err := Render(table, FormatXML)
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Equal(t, 3, strings.Count(out, "<TALLYMESSAGE>"))
	assert.Equal(t, 3, strings.Count(out, "<DATE>"), "one leaf per header per row")
	assert.Equal(t, 3, strings.Count(out, "<AMOUNT>"))
	assert.Contains(t, out, "<VERSION>1</VERSION>")
	assert.Contains(t, out, "<TALLYREQUEST>Import Data</TALLYREQUEST>")
	assert.Contains(t, out, "<REPORTNAME>Custom</REPORTNAME>")
	assert.Contains(t, out, "<AMOUNT>100</AMOUNT>")

	second, err := Render(table, FormatXML)
	require.NoError(t, err)
	assert.Equal(t, data, second, "xml export is deterministic")
}

func TestTallyXML_RoundTrip(t *testing.T) {
	t.Parallel()

	table := sampleTable(t)
	data, err := Render(table, FormatXML)
	require.NoError(t, err)

	parsed, err := ReadTallyXML(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"DATE", "PARTY_NAME", "AMOUNT"}, parsed.Headers,
		"reparse sees normalized element names")
	require.Len(t, parsed.Rows, 3)

	party, ok := parsed.Cell(0, "PARTY_NAME")
	require.True(t, ok)
	assert.Equal(t, "Acme", party.Value.String())
}

func TestTallyElementName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Amount", "AMOUNT"},
		{"Party Name", "PARTY_NAME"},
		{"Dr/Cr", "DR_CR"},
		{"  Net  Total  ", "NET_TOTAL"},
		{"2024 Total", "F2024_TOTAL"},
		{"---", "FIELD"},
		{"", "FIELD"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TallyElementName(tt.header))
		})
	}
}

func TestReadCSV_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV([]byte(`"unclosed`))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.FailureDecode))
}

func TestReadTallyXML_NoMessages(t *testing.T) {
	t.Parallel()

	_, err := ReadTallyXML([]byte(`<?xml version="1.0"?><ENVELOPE></ENVELOPE>`))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.FailureDecode))
}
