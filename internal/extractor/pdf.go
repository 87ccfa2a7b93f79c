package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

// PDFExtractor reads a PDF with pdfcpu and concatenates the text shown by
// every page's content stream, translating fonts that carry a ToUnicode map.
type PDFExtractor struct {
	conf *model.Configuration
}

func NewPDFExtractor() *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Extract returns the page texts joined in page order. Unreadable or invalid
// files wrap ErrMalformedDocument.
func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	// pdfcpu panics on some corrupt cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Newf(apperrors.ErrMalformedDocument, "parsing pdf: %v", r)
		}
	}()

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), p.conf)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedDocument, err, "reading pdf")
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedDocument, err, "validating pdf")
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedDocument, err, "counting pdf pages")
	}

	var sb strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		_, _, attrs, err := pdfCtx.PageDict(page, false)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrMalformedDocument, err, fmt.Sprintf("reading page %d", page))
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrMalformedDocument, err, fmt.Sprintf("extracting page %d", page))
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrMalformedDocument, err, fmt.Sprintf("reading page %d content", page))
		}
		sb.WriteString(ContentText(content, pageFonts(pdfCtx.XRefTable, attrs.Resources)))
	}
	return sb.String(), nil
}

// pageFonts parses the ToUnicode map of every font in a page's resources.
// Fonts without one, or with one that cannot be read, are left out and fall
// back to their string bytes.
func pageFonts(xref *model.XRefTable, res types.Dict) map[string]*CMap {
	obj, ok := res.Find("Font")
	if !ok {
		return nil
	}
	fontDict, err := xref.DereferenceDict(obj)
	if err != nil || fontDict == nil {
		return nil
	}
	fonts := make(map[string]*CMap, len(fontDict))
	for name, ref := range fontDict {
		fd, err := xref.DereferenceDict(ref)
		if err != nil || fd == nil {
			continue
		}
		obj, ok := fd.Find("ToUnicode")
		if !ok {
			continue
		}
		// Identity-H names are legal here but carry no mapping.
		sd, _, err := xref.DereferenceStreamDict(obj)
		if err != nil || sd == nil {
			continue
		}
		if sd.Content == nil {
			if err := sd.Decode(); err != nil {
				continue
			}
		}
		fonts[name] = ParseCMap(sd.Content)
	}
	return fonts
}
