package extract

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"github.com/rotisserie/eris"

	// Register the raster codecs the image modality accepts.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/sells-group/tallyconv/internal/model"
)

// Engine recognizes text in a PNG-encoded image. The production engine is
// tesseract; tests substitute a fake.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// ImageExtractor runs OCR over a rasterized table and rebuilds rows from the
// recognized text. Columns are inferred purely from whitespace-run
// boundaries, so a value containing internal whitespace splits incorrectly;
// that is a known limitation of the modality, surfaced to the reviewer by
// validation rather than silently repaired here.
type ImageExtractor struct {
	engine Engine
}

// NewImageExtractor creates an ImageExtractor backed by the given OCR engine.
func NewImageExtractor(engine Engine) *ImageExtractor {
	return &ImageExtractor{engine: engine}
}

// Extract decodes the image, converts it to grayscale, recognizes text, and
// splits it into a single raw table: first line headers, one line per row.
func (e *ImageExtractor) Extract(ctx context.Context, data []byte) ([]RawTable, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, model.DecodeError("failed to read image file", err)
	}

	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, eris.Wrap(err, "extract: encode grayscale image")
	}

	text, err := e.engine.Recognize(ctx, buf.Bytes())
	if err != nil {
		return nil, eris.Wrap(err, "extract: ocr")
	}

	table := tableFromText(text)
	if len(table) == 0 {
		return nil, model.ConversionError("no text detected in image")
	}
	return []RawTable{table}, nil
}

// tableFromText splits OCR output on line boundaries, then each line on
// whitespace runs into cells. Blank lines are skipped.
func tableFromText(text string) RawTable {
	var table RawTable
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		table = append(table, strings.Fields(line))
	}
	return table
}
