package extract

import (
	"sort"
	"strings"
)

// LayoutOptions tunes the text-strategy table detector. Tolerances are in PDF
// points.
type LayoutOptions struct {
	// RowTolerance groups text fragments into one row when their baselines
	// differ by at most this much.
	RowTolerance float64
	// WordGap merges adjacent fragments into one word when the horizontal
	// gap between them is at most this much.
	WordGap float64
	// ColumnGap is the minimum uncovered horizontal span that separates two
	// columns.
	ColumnGap float64
	// MinRows and MinColumns gate what counts as a table at all.
	MinRows    int
	MinColumns int
}

// DefaultLayoutOptions returns the tolerances that work for common
// machine-generated tabular PDFs.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		RowTolerance: 3.0,
		WordGap:      2.5,
		ColumnGap:    8.0,
		MinRows:      2,
		MinColumns:   2,
	}
}

func (o LayoutOptions) withDefaults() LayoutOptions {
	d := DefaultLayoutOptions()
	if o.RowTolerance <= 0 {
		o.RowTolerance = d.RowTolerance
	}
	if o.WordGap <= 0 {
		o.WordGap = d.WordGap
	}
	if o.ColumnGap <= 0 {
		o.ColumnGap = d.ColumnGap
	}
	if o.MinRows <= 0 {
		o.MinRows = d.MinRows
	}
	if o.MinColumns <= 0 {
		o.MinColumns = d.MinColumns
	}
	return o
}

// textFragment is one positioned piece of page text.
type textFragment struct {
	S string
	X float64
	Y float64
	W float64
}

// word is a run of fragments merged along the baseline.
type word struct {
	text string
	x0   float64
	x1   float64
}

// detectTable clusters positioned text fragments into a row/column grid.
// Rows come from baseline grouping, columns from maximal horizontal gaps in
// the projection of all words onto the x axis. Returns ok=false when the page
// does not hold a plausible grid.
func detectTable(fragments []textFragment, opts LayoutOptions) (RawTable, bool) {
	opts = opts.withDefaults()
	lines := groupLines(fragments, opts.RowTolerance)
	if len(lines) < opts.MinRows {
		return nil, false
	}

	var allWords [][]word
	for _, line := range lines {
		ws := mergeWords(line, opts.WordGap)
		if len(ws) > 0 {
			allWords = append(allWords, ws)
		}
	}
	if len(allWords) < opts.MinRows {
		return nil, false
	}

	columns := columnSegments(allWords, opts.ColumnGap)
	if len(columns) < opts.MinColumns {
		return nil, false
	}

	table := make(RawTable, 0, len(allWords))
	for _, ws := range allWords {
		row := make([]string, len(columns))
		for _, w := range ws {
			col := columnFor(columns, w)
			if row[col] == "" {
				row[col] = w.text
			} else {
				row[col] += " " + w.text
			}
		}
		table = append(table, row)
	}
	return table, true
}

// groupLines buckets fragments by baseline, top of page first.
func groupLines(fragments []textFragment, tolerance float64) [][]textFragment {
	sorted := append([]textFragment(nil), fragments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		// PDF y grows upward; read top-down.
		return sorted[i].Y > sorted[j].Y
	})

	var lines [][]textFragment
	for _, f := range sorted {
		if strings.TrimSpace(f.S) == "" {
			continue
		}
		if n := len(lines); n > 0 {
			last := lines[n-1]
			if last[0].Y-f.Y <= tolerance {
				lines[n-1] = append(last, f)
				continue
			}
		}
		lines = append(lines, []textFragment{f})
	}
	return lines
}

// mergeWords joins horizontally adjacent fragments of one line into words.
func mergeWords(line []textFragment, gap float64) []word {
	sorted := append([]textFragment(nil), line...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var words []word
	for _, f := range sorted {
		if n := len(words); n > 0 && f.X-words[n-1].x1 <= gap {
			words[n-1].text += f.S
			if end := f.X + f.W; end > words[n-1].x1 {
				words[n-1].x1 = end
			}
			continue
		}
		words = append(words, word{text: f.S, x0: f.X, x1: f.X + f.W})
	}

	out := words[:0]
	for _, w := range words {
		w.text = strings.TrimSpace(w.text)
		if w.text != "" {
			out = append(out, w)
		}
	}
	return out
}

// segment is a covered x-interval holding one column.
type segment struct {
	x0 float64
	x1 float64
}

// columnSegments projects every word onto the x axis and splits the covered
// span at gaps wider than minGap.
func columnSegments(rows [][]word, minGap float64) []segment {
	var intervals []segment
	for _, ws := range rows {
		for _, w := range ws {
			intervals = append(intervals, segment{x0: w.x0, x1: w.x1})
		}
	}
	if len(intervals) == 0 {
		return nil
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].x0 < intervals[j].x0 })

	merged := []segment{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.x0-last.x1 < minGap {
			if iv.x1 > last.x1 {
				last.x1 = iv.x1
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// columnFor assigns a word to the column whose segment contains its midpoint.
func columnFor(columns []segment, w word) int {
	mid := (w.x0 + w.x1) / 2
	for i, c := range columns {
		if mid <= c.x1 || i == len(columns)-1 {
			return i
		}
	}
	return len(columns) - 1
}
