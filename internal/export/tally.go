package export

import (
	"bytes"
	"encoding/xml"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tallyconv/internal/model"
)

// renderTallyXML writes the Tally import envelope:
//
//	ENVELOPE > HEADER (VERSION, TALLYREQUEST) and BODY > IMPORTDATA >
//	REQUESTDESC (REPORTNAME) + REQUESTDATA, one TALLYMESSAGE per row with
//	one leaf element per column.
//
// Element names derive from headers through a single naming contract
// (TallyElementName), applied identically on render and reparse so exported
// files round-trip. Output is deterministic: same table, same bytes.
func renderTallyXML(table *model.TableData) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	names := make([]string, len(table.Headers))
	for i, h := range table.Headers {
		names[i] = TallyElementName(h)
	}

	if err := writeEnvelope(enc, table, names); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, eris.Wrap(err, "export: flush tally xml")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeEnvelope(enc *xml.Encoder, table *model.TableData, names []string) error {
	start := func(name string) error {
		return enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}})
	}
	end := func(name string) error {
		return enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
	}
	leaf := func(name, value string) error {
		if err := start(name); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(value)); err != nil {
			return err
		}
		return end(name)
	}

	if err := start("ENVELOPE"); err != nil {
		return eris.Wrap(err, "export: open envelope")
	}

	if err := start("HEADER"); err != nil {
		return eris.Wrap(err, "export: open header")
	}
	if err := leaf("VERSION", "1"); err != nil {
		return eris.Wrap(err, "export: write version")
	}
	if err := leaf("TALLYREQUEST", "Import Data"); err != nil {
		return eris.Wrap(err, "export: write tally request")
	}
	if err := end("HEADER"); err != nil {
		return eris.Wrap(err, "export: close header")
	}

	for _, name := range []string{"BODY", "IMPORTDATA"} {
		if err := start(name); err != nil {
			return eris.Wrapf(err, "export: open %s", name)
		}
	}

	if err := start("REQUESTDESC"); err != nil {
		return eris.Wrap(err, "export: open request desc")
	}
	if err := leaf("REPORTNAME", "Custom"); err != nil {
		return eris.Wrap(err, "export: write report name")
	}
	if err := end("REQUESTDESC"); err != nil {
		return eris.Wrap(err, "export: close request desc")
	}

	if err := start("REQUESTDATA"); err != nil {
		return eris.Wrap(err, "export: open request data")
	}
	for _, row := range table.Rows {
		if err := start("TALLYMESSAGE"); err != nil {
			return eris.Wrap(err, "export: open tally message")
		}
		for i, h := range table.Headers {
			if err := leaf(names[i], row.Cells[h].Value.String()); err != nil {
				return eris.Wrapf(err, "export: write field %s", names[i])
			}
		}
		if err := end("TALLYMESSAGE"); err != nil {
			return eris.Wrap(err, "export: close tally message")
		}
	}
	if err := end("REQUESTDATA"); err != nil {
		return eris.Wrap(err, "export: close request data")
	}

	for _, name := range []string{"IMPORTDATA", "BODY", "ENVELOPE"} {
		if err := end(name); err != nil {
			return eris.Wrapf(err, "export: close %s", name)
		}
	}
	return nil
}

// TallyElementName maps a header to its XML element name: uppercase, with
// every run of non-alphanumeric characters collapsed to one underscore. A
// name that would start with a digit gets an "F" prefix, and an empty header
// becomes "FIELD". Distinct headers can collide after normalization; the
// mapping is stable either way.
func TallyElementName(header string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(strings.TrimSpace(header)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		return "FIELD"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "F" + name
	}
	return name
}
