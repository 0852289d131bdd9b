package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tallyconv/internal/extract"
	"github.com/sells-group/tallyconv/internal/model"
)

func TestNormalize_SingleTable(t *testing.T) {
	t.Parallel()

	table, findings, err := Normalize([]extract.RawTable{{
		{"Date", "Party", "Amount"},
		{"2024-01-15", "Acme", "1,250.00"},
		{"2024-01-16", "Globex", "980"},
	}})
	require.NoError(t, err)
	assert.Empty(t, findings)

	assert.Equal(t, []string{"Date", "Party", "Amount"}, table.Headers)
	require.Len(t, table.Rows, 2)
	require.NoError(t, table.Check())

	cell, ok := table.Cell(0, "Amount")
	require.True(t, ok)
	assert.Equal(t, "1,250.00", cell.Value.String(), "no coercion at normalization time")
	assert.Equal(t, "1,250.00", cell.Value.Raw)
}

func TestNormalize_MergesTablesInOrder(t *testing.T) {
	t.Parallel()

	table, findings, err := Normalize([]extract.RawTable{
		{{"A", "B"}, {"p1r1a", "p1r1b"}},
		{{"A", "B"}, {"p2r1a", "p2r1b"}, {"p2r2a", "p2r2b"}},
	})
	require.NoError(t, err)
	assert.Empty(t, findings, "matching headers merge silently")

	require.Len(t, table.Rows, 3)
	first, _ := table.Cell(0, "A")
	last, _ := table.Cell(2, "A")
	assert.Equal(t, "p1r1a", first.Value.String())
	assert.Equal(t, "p2r2a", last.Value.String(), "page order then in-page order is preserved")
}

func TestNormalize_HeaderDriftWarnsButMerges(t *testing.T) {
	t.Parallel()

	table, findings, err := Normalize([]extract.RawTable{
		{{"A", "B"}, {"1", "2"}},
		{{"X", "Y"}, {"3", "4"}},
	})
	require.NoError(t, err)

	require.Len(t, table.Rows, 2, "merge proceeds positionally")
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingWarning, findings[0].Kind)
	assert.Equal(t, model.SeverityWarning, findings[0].Severity)
	assert.Equal(t, 1, findings[0].Row, "flagged at the first row of the drifting table")
	assert.Contains(t, findings[0].Message, "header mismatch")

	cell, _ := table.Cell(1, "A")
	assert.Equal(t, "3", cell.Value.String())
}

func TestNormalize_HeaderOnlyDriftAnchorsAtTop(t *testing.T) {
	t.Parallel()

	table, findings, err := Normalize([]extract.RawTable{
		{{"A", "B"}, {"1", "2"}},
		{{"X", "Y"}},
		{{"A", "B"}, {"3", "4"}},
	})
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	require.Len(t, findings, 1)
	assert.Equal(t, 0, findings[0].Row, "a drifting table with no data rows anchors at row 0")
	assert.Equal(t, 0, findings[0].Col)
	assert.Contains(t, findings[0].Message, "table 2")
}

func TestNormalize_ShortRowsPadWideRowsWarn(t *testing.T) {
	t.Parallel()

	table, findings, err := Normalize([]extract.RawTable{{
		{"A", "B", "C"},
		{"1"},
		{"1", "2", "3", "4"},
	}})
	require.NoError(t, err)
	require.NoError(t, table.Check())

	padded, _ := table.Cell(0, "C")
	assert.True(t, padded.Value.IsEmpty())

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "extra cells dropped")
	assert.Equal(t, 1, findings[0].Row)
}

func TestNormalize_DuplicateHeadersDisambiguated(t *testing.T) {
	t.Parallel()

	table, findings, err := Normalize([]extract.RawTable{{
		{"Amount", "Amount"},
		{"1", "2"},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Amount", "Amount_2"}, table.Headers)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "duplicate header")
}

func TestNormalize_NoTablesIsConversionError(t *testing.T) {
	t.Parallel()

	_, _, err := Normalize(nil)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.FailureConversion))
}
