// Package export renders a canonical table into the supported output formats
// and parses those formats back into tables.
package export

import (
	"strings"

	"github.com/sells-group/tallyconv/internal/model"
)

// Format is a supported export format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXML:
		return FormatXML, nil
	default:
		return "", model.UnsupportedFormatErrorf("export: unknown format %q", s)
	}
}

// MediaType returns the content type served for a format.
func (f Format) MediaType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	case FormatXML:
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension for a format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Render serializes the table in the given format. Every exporter reads only
// headers and authoritative values; cell metadata never reaches the output,
// so two tables with equal fingerprints render byte-identically for the
// deterministic formats (csv, xml).
func Render(table *model.TableData, format Format) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return renderXLSX(table)
	case FormatCSV:
		return renderCSV(table)
	case FormatXML:
		return renderTallyXML(table)
	default:
		return nil, model.UnsupportedFormatErrorf("export: unknown format %q", format)
	}
}
