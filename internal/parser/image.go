package parser

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/corpuslens/corpuslens/internal/apperr"
	"github.com/corpuslens/corpuslens/internal/config"
)

// OCREngine runs optical character recognition over a decoded image and
// returns the recognized, whitespace-normalized text (spec.md §4.1's OCR
// contract).
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// TesseractOCR wraps the Tesseract OCR engine via gosseract.
type TesseractOCR struct {
	dpi int
	psm int
}

// NewTesseractOCR builds an engine tuned per config.OCRConfig.
func NewTesseractOCR(cfg config.OCRConfig) *TesseractOCR {
	return &TesseractOCR{dpi: cfg.DPI, psm: cfg.PSM}
}

func (o *TesseractOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetVariable("user_defined_dpi", strconv.Itoa(o.dpi)); err != nil {
		return "", apperr.New(apperr.ErrCodeOCRFailure, "set ocr dpi", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(o.psm)); err != nil {
		return "", apperr.New(apperr.ErrCodeOCRFailure, "set ocr page segmentation mode", err)
	}
	if err := client.SetImageFromBytes(encodePNG(img)); err != nil {
		return "", apperr.New(apperr.ErrCodeOCRFailure, "load image into ocr engine", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", apperr.New(apperr.ErrCodeOCRFailure, "ocr recognition failed", err)
	}
	return normalizeOCRText(text), nil
}

var runsOfBlankLines = regexp.MustCompile(`\n{3,}`)
var runsOfSpaces = regexp.MustCompile(`[ \t]{2,}`)

// normalizeOCRText collapses runs of spaces and blank lines and trims the
// result, per spec.md §4.1's OCR contract.
func normalizeOCRText(text string) string {
	text = runsOfSpaces.ReplaceAllString(text, " ")
	text = runsOfBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ImageParser runs OCR on standalone image files.
type ImageParser struct {
	OCR OCREngine
}

func (p *ImageParser) Extensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff"}
}

func (p *ImageParser) Parse(ctx context.Context, path string) (string, error) {
	if p.OCR == nil {
		return "", fmt.Errorf("no OCR engine configured")
	}
	img, err := decodeImageFile(path)
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}
	return p.OCR.Recognize(ctx, img)
}
