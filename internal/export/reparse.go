package export

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/tallyconv/internal/model"
)

// ReadCSV parses exported CSV bytes back into a canonical table. The first
// record is the header row.
func ReadCSV(data []byte) (*model.TableData, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, model.DecodeError("failed to parse CSV", err)
	}
	if len(records) == 0 {
		return nil, model.DecodeError("CSV has no header row", nil)
	}
	return tableFromStrings(records[0], records[1:])
}

// ReadXLSX parses exported workbook bytes back into a canonical table, using
// the first sheet. The first row is the header row.
func ReadXLSX(data []byte) (*model.TableData, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, model.DecodeError("failed to parse workbook", err)
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) == 0 {
		return nil, model.DecodeError("workbook has no header row", nil)
	}
	sheet := file.Sheets[0]

	headers := make([]string, 0, len(sheet.Rows[0].Cells))
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.String())
	}
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		record := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			record = append(record, cell.String())
		}
		rows = append(rows, record)
	}
	return tableFromStrings(headers, rows)
}

// ReadTallyXML parses an exported Tally envelope back into a canonical table.
// Headers are the leaf element names of the first TALLYMESSAGE, so a
// render/reparse round trip preserves shape under the element naming
// contract. Non-UTF-8 declarations are honored via the IANA charset index.
func ReadTallyXML(data []byte) (*model.TableData, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "export: unknown charset %s", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var headers []string
	var rows [][]string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, model.DecodeError("failed to parse XML", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "TALLYMESSAGE" {
			continue
		}
		names, values, err := readMessage(dec)
		if err != nil {
			return nil, err
		}
		if headers == nil {
			headers = names
		}
		rows = append(rows, values)
	}

	if headers == nil {
		return nil, model.DecodeError("XML has no TALLYMESSAGE elements", nil)
	}
	return tableFromStrings(headers, rows)
}

// readMessage consumes one TALLYMESSAGE subtree and returns its leaf element
// names and text values in document order.
func readMessage(dec *xml.Decoder) ([]string, []string, error) {
	var names, values []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, model.DecodeError("truncated TALLYMESSAGE", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text strings.Builder
			if err := readLeaf(dec, t.Name.Local, &text); err != nil {
				return nil, nil, err
			}
			names = append(names, t.Name.Local)
			values = append(values, text.String())
		case xml.EndElement:
			if t.Name.Local == "TALLYMESSAGE" {
				return names, values, nil
			}
		}
	}
}

func readLeaf(dec *xml.Decoder, name string, text *strings.Builder) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return model.DecodeError("truncated XML element", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if t.Name.Local == name {
				return nil
			}
		case xml.StartElement:
			return model.DecodeError("unexpected nested element in TALLYMESSAGE", nil)
		}
	}
}

func tableFromStrings(headers []string, rows [][]string) (*model.TableData, error) {
	table, err := model.NewTableData(headers)
	if err != nil {
		return nil, model.DecodeError("invalid header row", err)
	}
	for _, record := range rows {
		values := make([]model.CellValue, 0, len(record))
		for _, cell := range record {
			values = append(values, model.StringValue(cell))
		}
		table.AppendRow(values)
	}
	return table, nil
}
