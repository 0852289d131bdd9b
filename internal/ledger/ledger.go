// Package ledger applies ordered cell-level corrections to a table.
package ledger

import (
	"sort"

	"github.com/sells-group/tallyconv/internal/model"
)

// Apply replays edits over a copy of base and returns the corrected table.
// Edits are applied strictly in ascending timestamp order regardless of slice
// order; ties keep their relative slice order so replays are deterministic.
//
// base is never mutated. If any edit names a row or column the table does not
// have, Apply fails with a reference error and no partial result: correction
// is all-or-nothing.
//
// Each applied edit moves the cell's prior value into metadata.originalValue
// (first edit wins; later edits to the same cell keep the oldest original)
// and resets the cell status to ok, since a human-entered value supersedes
// whatever the validator said about the extracted one.
func Apply(base *model.TableData, edits []model.EditRecord) (*model.TableData, error) {
	out := base.Clone()

	ordered := make([]model.EditRecord, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	for _, edit := range ordered {
		row, ok := out.RowIndexFromID(edit.RowID)
		if !ok {
			return nil, model.ReferenceErrorf("ledger: edit targets unknown row %q", edit.RowID)
		}
		cell, ok := out.Cell(row, edit.ColumnKey)
		if !ok {
			return nil, model.ReferenceErrorf("ledger: edit targets unknown column %q", edit.ColumnKey)
		}

		if cell.Metadata.OriginalValue == nil {
			prior := cell.Value
			cell.Metadata.OriginalValue = &prior
		}
		cell.Value = edit.NewValue
		cell.Metadata.Error = false
		cell.Metadata.Status = model.StatusOK
		out.SetCell(row, edit.ColumnKey, cell)
	}

	return out, nil
}
