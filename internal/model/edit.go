package model

// EditRecord is one cell-level correction. Records are applied strictly in
// timestamp order; the timestamp is caller-supplied input, never generated by
// the ledger, so replaying the same records is deterministic.
type EditRecord struct {
	Timestamp int64     `json:"timestamp"`
	RowID     string    `json:"rowId"`
	ColumnKey string    `json:"columnKey"`
	OldValue  CellValue `json:"oldValue"`
	NewValue  CellValue `json:"newValue"`
}
