package extractor

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

// TextExtractor passes UTF-8 text through, normalising line endings.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", apperrors.New(apperrors.ErrMalformedDocument, "text document is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
