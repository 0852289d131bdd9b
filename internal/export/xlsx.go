package export

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/tallyconv/internal/model"
)

// renderXLSX writes one sheet: a header row, then one row per table row.
// Numeric cells are written as spreadsheet numbers so downstream formulas
// work; everything else is a string cell.
func renderXLSX(table *model.TableData) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Sheet1")
	if err != nil {
		return nil, eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range table.Headers {
		header.AddCell().SetString(h)
	}

	for _, row := range table.Rows {
		out := sheet.AddRow()
		for _, h := range table.Headers {
			cell := out.AddCell()
			v := row.Cells[h].Value
			if v.Kind == model.KindNumber {
				cell.SetFloat(v.Num)
			} else {
				cell.SetString(v.String())
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "export: write xlsx")
	}
	return buf.Bytes(), nil
}
