package extract

import (
	"context"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
)

// TesseractEngine implements Engine using the gosseract client. A fresh
// client per call keeps concurrent extractions independent.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
	language      string
}

// NewTesseractEngine constructs a tesseract-backed OCR engine. Language
// defaults to "eng" when empty.
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{clientFactory: gosseract.NewClient, language: language}
}

// Recognize runs tesseract over a PNG-encoded image and returns the
// recognized text block.
func (e *TesseractEngine) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "extract: tesseract cancelled")
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", eris.Wrapf(err, "extract: tesseract set language %q", e.language)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", eris.Wrap(err, "extract: tesseract set image")
	}

	text, err := client.Text()
	if err != nil {
		return "", eris.Wrap(err, "extract: tesseract recognize")
	}
	return text, nil
}
