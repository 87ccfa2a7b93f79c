// Package extractor turns fetched document bytes into plain text and splits
// that text into Q&A content units.
package extractor

import (
	"bytes"
	"context"
	"path"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

// Extractor returns the plain text of a document.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry selects an Extractor by file extension.
type Registry struct {
	byExt    map[string]Extractor
	fallback Extractor
}

// NewRegistry returns a Registry handling PDF, plain text and markdown.
func NewRegistry() *Registry {
	pdf := NewPDFExtractor()
	text := TextExtractor{}
	return &Registry{
		byExt: map[string]Extractor{
			".pdf":      pdf,
			".txt":      text,
			".text":     text,
			".md":       text,
			".markdown": text,
		},
		fallback: pdf,
	}
}

// Register binds ext (with leading dot) to e.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extract picks an extractor for filename and runs it. Files without a known
// extension are sniffed for a PDF header.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if e, ok := r.byExt[ext]; ok {
		return e.Extract(ctx, data)
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return r.fallback.Extract(ctx, data)
	}
	return "", apperrors.Newf(apperrors.ErrMalformedDocument, "unsupported document type %q", ext)
}
