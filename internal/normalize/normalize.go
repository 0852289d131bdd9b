// Package normalize merges raw extraction output into one canonical table.
package normalize

import (
	"fmt"

	"github.com/sells-group/tallyconv/internal/extract"
	"github.com/sells-group/tallyconv/internal/model"
)

// Normalize concatenates raw tables row-wise into one canonical TableData,
// preserving page/detection order. Headers come from the first table's first
// row; every table's row 0 is treated as its header row and dropped; the
// remaining rows map to headers by position, not by name.
//
// No type coercion happens here: every cell is the raw extracted string, and
// the canonical table retains exactly what was extracted until a human edit
// supersedes it. Shape anomalies (header drift between tables, rows wider
// than the header set) are reported as warning findings, not failures.
func Normalize(tables []extract.RawTable) (*model.TableData, []model.Finding, error) {
	if len(tables) == 0 {
		return nil, nil, model.ConversionError("no tables found")
	}
	if len(tables[0]) == 0 {
		return nil, nil, model.ConversionError("extracted table has no header row")
	}

	headers, findings := uniqueHeaders(tables[0][0])

	table, err := model.NewTableData(headers)
	if err != nil {
		return nil, nil, err
	}

	for i, raw := range tables {
		if len(raw) == 0 {
			continue
		}
		if i > 0 && !sameHeaderRow(tables[0][0], raw[0]) {
			// Anchored at the first row this table contributes. A header-only
			// table contributes none, so it anchors at row 0.
			row := len(table.Rows)
			if len(raw) < 2 {
				row = 0
			}
			findings = append(findings, model.Finding{
				Row:      row,
				Col:      0,
				Kind:     model.FindingWarning,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("header mismatch between extracted tables at table %d; merged positionally", i+1),
			})
		}
		for _, rawRow := range raw[1:] {
			if len(rawRow) > len(headers) {
				findings = append(findings, model.Finding{
					Row:      len(table.Rows),
					Col:      len(headers) - 1,
					Kind:     model.FindingWarning,
					Severity: model.SeverityWarning,
					Message:  fmt.Sprintf("row has %d cells, table has %d columns; extra cells dropped", len(rawRow), len(headers)),
				})
			}
			values := make([]model.CellValue, 0, len(rawRow))
			for _, cell := range rawRow {
				values = append(values, model.StringValue(cell))
			}
			table.AppendRow(values)
		}
	}

	return table, findings, nil
}

// uniqueHeaders disambiguates repeated header names positionally so the
// canonical uniqueness invariant holds, flagging each rename.
func uniqueHeaders(raw []string) ([]string, []model.Finding) {
	headers := make([]string, len(raw))
	var findings []model.Finding
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := h
		if n, dup := seen[h]; dup {
			name = fmt.Sprintf("%s_%d", h, n+1)
			findings = append(findings, model.Finding{
				Row:      0,
				Col:      i,
				Kind:     model.FindingWarning,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("duplicate header %q renamed to %q", h, name),
			})
		}
		seen[h]++
		headers[i] = name
	}
	return headers, findings
}

func sameHeaderRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
