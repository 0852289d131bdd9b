package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frag builds a fragment with a width proportional to its text length, which
// is close enough to how real page content behaves for the detector.
func frag(s string, x, y float64) textFragment {
	return textFragment{S: s, X: x, Y: y, W: float64(len(s)) * 5}
}

func TestDetectTable_SimpleGrid(t *testing.T) {
	t.Parallel()

	fragments := []textFragment{
		frag("Date", 50, 700), frag("Party", 200, 700), frag("Amount", 350, 700),
		frag("2024-01-15", 50, 680), frag("Acme", 200, 680), frag("1250.00", 350, 680),
		frag("2024-01-16", 50, 660), frag("Globex", 200, 660), frag("980.00", 350, 660),
	}

	table, ok := detectTable(fragments, LayoutOptions{})
	require.True(t, ok)
	require.Len(t, table, 3)
	assert.Equal(t, []string{"Date", "Party", "Amount"}, table[0])
	assert.Equal(t, []string{"2024-01-15", "Acme", "1250.00"}, table[1])
	assert.Equal(t, []string{"2024-01-16", "Globex", "980.00"}, table[2])
}

func TestDetectTable_MergesAdjacentFragments(t *testing.T) {
	t.Parallel()

	// Writers often emit one fragment per glyph run; "Acme" then " Ltd"
	// with a sub-tolerance gap belong to one word, while the amount sits in
	// its own column far to the right.
	fragments := []textFragment{
		frag("Party", 50, 700), frag("Amount", 300, 700),
		frag("Acme", 50, 680), frag("Ltd", 71, 680), frag("500", 300, 680),
	}

	table, ok := detectTable(fragments, LayoutOptions{})
	require.True(t, ok)
	require.Len(t, table, 2)
	assert.Equal(t, "AcmeLtd", table[1][0])
	assert.Equal(t, "500", table[1][1])
}

func TestDetectTable_MultiWordCellStaysInColumn(t *testing.T) {
	t.Parallel()

	// Two words separated by more than the word gap but inside the same
	// covered column segment are joined with a space.
	fragments := []textFragment{
		frag("Description", 50, 700), frag("Amount", 300, 700),
		frag("Office", 50, 680), frag("rent", 90, 680), frag("1200", 300, 680),
	}

	table, ok := detectTable(fragments, LayoutOptions{})
	require.True(t, ok)
	assert.Equal(t, "Office rent", table[1][0])
}

func TestDetectTable_RejectsProse(t *testing.T) {
	t.Parallel()

	// A single column of flowing text is not a table.
	fragments := []textFragment{
		frag("This is a paragraph of text", 50, 700),
		frag("continuing on the next line", 50, 680),
		frag("and a third line of it", 50, 660),
	}

	_, ok := detectTable(fragments, LayoutOptions{})
	assert.False(t, ok)
}

func TestDetectTable_RejectsTooFewRows(t *testing.T) {
	t.Parallel()

	fragments := []textFragment{
		frag("Only", 50, 700), frag("Header", 300, 700),
	}

	_, ok := detectTable(fragments, LayoutOptions{})
	assert.False(t, ok)
}

func TestDetectTable_PadsMissingCells(t *testing.T) {
	t.Parallel()

	fragments := []textFragment{
		frag("Date", 50, 700), frag("Party", 200, 700), frag("Amount", 350, 700),
		frag("2024-01-15", 50, 680), frag("975.50", 350, 680),
	}

	table, ok := detectTable(fragments, LayoutOptions{})
	require.True(t, ok)
	require.Len(t, table[1], 3)
	assert.Equal(t, "", table[1][1], "missing cell stays empty instead of shifting columns")
	assert.Equal(t, "975.50", table[1][2])
}
