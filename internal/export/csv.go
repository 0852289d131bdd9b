package export

import (
	"bytes"
	"encoding/csv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tallyconv/internal/model"
)

// renderCSV writes the header row followed by one record per table row, cells
// in header order, using canonical value strings.
func renderCSV(table *model.TableData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(table.Headers); err != nil {
		return nil, eris.Wrap(err, "export: write csv header")
	}
	record := make([]string, len(table.Headers))
	for _, row := range table.Rows {
		for i, h := range table.Headers {
			record[i] = row.Cells[h].Value.String()
		}
		if err := w.Write(record); err != nil {
			return nil, eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "export: flush csv")
	}
	return buf.Bytes(), nil
}
