package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/corpuslens/corpuslens/internal/config"
)

// PDFParser extracts each page's native text layer, falling back to
// rendering the page and running OCR when that layer is empty or
// whitespace-only (spec.md §4.1). The two extraction paths are decided
// per page, so a single PDF may mix native-text and OCR'd pages.
type PDFParser struct {
	OCR    OCREngine
	Render RenderConfig
}

// RenderConfig controls the resolution used when rasterizing a page for
// OCR fallback.
type RenderConfig struct {
	DPI float64
}

// NewPDFParser builds a parser with OCR fallback tuned per config.OCRConfig.
func NewPDFParser(ocr OCREngine, cfg config.OCRConfig) *PDFParser {
	dpi := float64(cfg.DPI)
	if dpi < 150 {
		dpi = 150
	}
	return &PDFParser{OCR: ocr, Render: RenderConfig{DPI: dpi}}
}

func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var doc *fitz.Document // opened lazily, only if a page needs OCR fallback
	defer func() {
		if doc != nil {
			doc.Close()
		}
	}()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, strings.TrimSpace(text))
			continue
		}

		if p.OCR == nil {
			continue
		}
		if doc == nil {
			doc, err = fitz.New(path)
			if err != nil {
				return "", fmt.Errorf("opening pdf for rasterization: %w", err)
			}
		}
		img, err := doc.Image(i - 1)
		if err != nil {
			continue
		}
		ocrText, err := p.OCR.Recognize(ctx, img)
		if err != nil {
			continue
		}
		if strings.TrimSpace(ocrText) != "" {
			pages = append(pages, strings.TrimSpace(ocrText))
		}
	}

	return strings.Join(pages, "\n\n"), nil
}
