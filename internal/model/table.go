package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// CellStatus is the advisory review state of a cell.
type CellStatus string

const (
	StatusOK      CellStatus = "ok"
	StatusWarning CellStatus = "warning"
	StatusError   CellStatus = "error"
)

// CellMetadata is per-cell provenance and validity bookkeeping. It is
// advisory only: exporters must never consult it when rendering output.
type CellMetadata struct {
	Error         bool       `json:"error,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty"`
	Status        CellStatus `json:"status,omitempty"`
	OriginalValue *CellValue `json:"originalValue,omitempty"`
}

// TableCell pairs an authoritative value with its metadata.
type TableCell struct {
	Value    CellValue    `json:"value"`
	Metadata CellMetadata `json:"metadata"`
}

// TableRow maps header names to cells. Every row in a table carries exactly
// the table's header key set; missing data is an empty CellValue, never a
// missing key.
type TableRow struct {
	Cells map[string]TableCell `json:"cells"`
}

// TableData is the canonical table every stage after extraction operates on.
// Header order and row order are significant and preserved end to end.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    []TableRow `json:"rows"`
}

// NewTableData creates an empty table with the given headers. Header names
// must be unique (case-sensitive).
func NewTableData(headers []string) (*TableData, error) {
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			return nil, eris.Errorf("model: duplicate header %q", h)
		}
		seen[h] = true
	}
	return &TableData{Headers: append([]string(nil), headers...)}, nil
}

// AppendRow adds a row from positional values. Short slices are padded with
// empty cells and long slices are truncated to the header width, keeping the
// row/header invariant intact.
func (t *TableData) AppendRow(values []CellValue) {
	cells := make(map[string]TableCell, len(t.Headers))
	for i, h := range t.Headers {
		v := EmptyValue()
		if i < len(values) {
			v = values[i]
		}
		cells[h] = TableCell{Value: v}
	}
	t.Rows = append(t.Rows, TableRow{Cells: cells})
}

// Cell returns the cell at the given row index and header name.
func (t *TableData) Cell(row int, header string) (TableCell, bool) {
	if row < 0 || row >= len(t.Rows) {
		return TableCell{}, false
	}
	c, ok := t.Rows[row].Cells[header]
	return c, ok
}

// SetCell replaces the cell at the given row index and header name.
func (t *TableData) SetCell(row int, header string, cell TableCell) bool {
	if row < 0 || row >= len(t.Rows) {
		return false
	}
	if _, ok := t.Rows[row].Cells[header]; !ok {
		return false
	}
	t.Rows[row].Cells[header] = cell
	return true
}

// RowIndexFromID resolves an edit rowId to a row index. The canonical form is
// "row-<index>"; a bare index string is also accepted.
func (t *TableData) RowIndexFromID(rowID string) (int, bool) {
	s := strings.TrimPrefix(rowID, "row-")
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 || idx >= len(t.Rows) {
		return 0, false
	}
	return idx, true
}

// RowID returns the canonical rowId for a row index.
func RowID(index int) string {
	return "row-" + strconv.Itoa(index)
}

// Clone returns a deep copy. Corrections always operate on a copy so the
// original and modified tables coexist.
func (t *TableData) Clone() *TableData {
	out := &TableData{
		Headers: append([]string(nil), t.Headers...),
		Rows:    make([]TableRow, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cells := make(map[string]TableCell, len(row.Cells))
		for k, c := range row.Cells {
			if c.Metadata.Confidence != nil {
				conf := *c.Metadata.Confidence
				c.Metadata.Confidence = &conf
			}
			if c.Metadata.OriginalValue != nil {
				orig := *c.Metadata.OriginalValue
				c.Metadata.OriginalValue = &orig
			}
			cells[k] = c
		}
		out.Rows[i] = TableRow{Cells: cells}
	}
	return out
}

// Fingerprint hashes the export-relevant content of the table: headers and
// canonical cell value strings, in order. Metadata never contributes, so two
// tables that export identically fingerprint identically.
func (t *TableData) Fingerprint() string {
	h := sha256.New()
	for _, header := range t.Headers {
		h.Write([]byte(header))
		h.Write([]byte{0x1f})
	}
	h.Write([]byte{0x1e})
	for _, row := range t.Rows {
		for _, header := range t.Headers {
			h.Write([]byte(row.Cells[header].Value.String()))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Check verifies the structural invariants: unique headers and every row
// carrying exactly the header key set.
func (t *TableData) Check() error {
	seen := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		if seen[h] {
			return eris.Errorf("model: duplicate header %q", h)
		}
		seen[h] = true
	}
	for i, row := range t.Rows {
		if len(row.Cells) != len(t.Headers) {
			return eris.Errorf("model: row %d has %d cells, table has %d headers", i, len(row.Cells), len(t.Headers))
		}
		for _, h := range t.Headers {
			if _, ok := row.Cells[h]; !ok {
				return eris.Errorf("model: row %d missing header %q", i, h)
			}
		}
	}
	return nil
}
