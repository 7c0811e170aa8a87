// Package parser extracts plain text from the file formats spec.md §4.1
// names: plain text/markdown, PDF, DOCX, XLSX, and OCR'd images.
package parser

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/corpuslens/corpuslens/internal/apperr"
	"github.com/corpuslens/corpuslens/internal/config"
)

// Parser extracts the text content of a single file.
type Parser interface {
	// Parse reads path and returns its extracted text.
	Parse(ctx context.Context, path string) (string, error)
	// Extensions lists the lowercase, dot-prefixed extensions this parser handles.
	Extensions() []string
}

// Registry dispatches a file path to the parser registered for its
// extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry builds a registry with the built-in parsers for plain
// text/markdown, PDF, DOCX, XLSX, and OCR-backed image formats.
func NewRegistry(ocr OCREngine, ocrCfg config.OCRConfig) *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.register(&TextParser{})
	r.register(NewPDFParser(ocr, ocrCfg))
	r.register(&DOCXParser{})
	r.register(&XLSXParser{})
	r.register(&ImageParser{OCR: ocr})
	return r
}

func (r *Registry) register(p Parser) {
	for _, ext := range p.Extensions() {
		r.byExt[ext] = p
	}
}

// Register adds or overrides the parser for its declared extensions.
func (r *Registry) Register(p Parser) {
	r.register(p)
}

// Supports reports whether path's extension has a registered parser.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Parse dispatches path to its registered parser. An unsupported
// extension returns an UnsupportedFormat AppError; callers per spec.md
// §4.1/§4.6 treat that as a skip, not a failure.
func (r *Registry) Parse(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return "", apperr.New(apperr.ErrCodeUnsupportedFormat, "unsupported file extension: "+ext, nil)
	}
	text, err := p.Parse(ctx, path)
	if err != nil {
		return "", apperr.ParseError(path, err)
	}
	return text, nil
}
