package extract

import (
	"bytes"
	"context"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tallyconv/internal/model"
)

// PDFExtractor walks pages in document order and runs the layout-based table
// detector on each page's positioned text.
type PDFExtractor struct {
	opts LayoutOptions
	conf *pdfcpumodel.Configuration
}

// NewPDFExtractor creates a PDFExtractor with the given layout tolerances.
func NewPDFExtractor(opts LayoutOptions) *PDFExtractor {
	conf := pdfcpumodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfcpumodel.ValidationRelaxed
	return &PDFExtractor{opts: opts.withDefaults(), conf: conf}
}

// Extract emits one RawTable per detected table, in page order. A page with
// no detected table contributes nothing; zero tables across the whole
// document is a conversion failure, not an empty success.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]RawTable, error) {
	if _, err := api.ReadValidateAndOptimize(bytes.NewReader(data), e.conf); err != nil {
		return nil, model.DecodeError("failed to read PDF document", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, model.DecodeError("failed to parse PDF document", err)
	}

	var tables []RawTable
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "extract: pdf cancelled")
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		fragments := pageFragments(page)
		if table, ok := detectTable(fragments, e.opts); ok {
			tables = append(tables, table)
		}
	}

	if len(tables) == 0 {
		return nil, model.ConversionError("no tables found in PDF")
	}
	return tables, nil
}

// pageFragments converts the page content into positioned fragments for the
// layout detector.
func pageFragments(page pdf.Page) []textFragment {
	content := page.Content()
	fragments := make([]textFragment, 0, len(content.Text))
	for _, t := range content.Text {
		fragments = append(fragments, textFragment{S: t.S, X: t.X, Y: t.Y, W: t.W})
	}
	return fragments
}
