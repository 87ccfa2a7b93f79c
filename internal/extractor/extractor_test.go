package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

func TestSegmentSplitsOnQuestionMarkers(t *testing.T) {
	text := "Survey export\nQ: How satisfied are you with the onboarding flow?\n1) Very satisfied\n2) It was slow\n" +
		"Q: Short one?\n" +
		"Q: What should we improve in the reporting dashboard next quarter?\n1. Export to CSV"

	units := Segment(text, DefaultMinUnitLength)
	require.Len(t, units, 2)

	assert.Equal(t, 0, units[0].Index)
	assert.Equal(t, "How satisfied are you with the onboarding flow?", units[0].Title)
	assert.Equal(t, 2, units[0].ResponseCount)
	assert.True(t, strings.HasPrefix(units[0].Text, "Q: How satisfied"))
	assert.True(t, strings.HasSuffix(units[0].Text, "It was slow"))

	assert.Equal(t, 1, units[1].Index)
	assert.Equal(t, "What should we improve in the reporting dashboard next quarter?", units[1].Title)
	assert.Equal(t, 1, units[1].ResponseCount)
}

func TestSegmentFirstMarkerNeedNotStartALine(t *testing.T) {
	units := Segment("header text Q: does the first marker count anywhere in a line?", 30)
	require.Len(t, units, 1)
	assert.Equal(t, "does the first marker count anywhere in a line?", units[0].Title)
}

func TestSegmentMinimumLength(t *testing.T) {
	exactly30 := "Q: " + strings.Repeat("x", 27)
	require.Len(t, exactly30, 30)
	assert.Empty(t, Segment(exactly30, 30))
	assert.Len(t, Segment(exactly30+"y", 30), 1)
}

func TestSegmentWithoutMarkers(t *testing.T) {
	assert.Empty(t, Segment("no questions in this document at all, just prose", 30))
	assert.Empty(t, Segment("", 30))
}

func TestSegmentIsStable(t *testing.T) {
	text := "Q: first question that is long enough to keep\nQ: second question that is long enough to keep"
	assert.Equal(t, Segment(text, 30), Segment(text, 30))
}

func TestCountResponses(t *testing.T) {
	assert.Equal(t, 1, CountResponses("Q: nothing numbered here"))
	assert.Equal(t, 3, CountResponses("Q: x\n1) a\n2. b\n10 c"))
	assert.Equal(t, 1, CountResponses("Q: x\n123) too many digits"))
}

func TestContentTextOperators(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf 72 700 Td (Q: How was it?) Tj 0 -14 Td [(1\) Gr) 20 (eat)] TJ
T* (2\) Meh) Tj ET
BT 1 0 0 1 72 600 Tm <48656C6C6F> Tj 1 0 0 1 72 586 Tm (World) Tj ET`)

	got := ContentText(stream, nil)
	assert.Equal(t, "Q: How was it?\n1) Great\n2) Meh\nHello\nWorld\n", got)
}

func TestContentTextWordGapsAndEscapes(t *testing.T) {
	stream := []byte(`BT [(Hello) -300 (there)] TJ T* (a \(nested\) \101) Tj ' ET`)
	got := ContentText(stream, nil)
	assert.Equal(t, "Hello there\na (nested) A\n", got)
}

func TestContentTextSkipsInlineImages(t *testing.T) {
	stream := []byte("BI /W 1 /H 1 ID \x00\xff(junk)Tj EI BT (after) Tj ET")
	assert.Equal(t, "after\n", ContentText(stream, nil))
}

func TestContentTextUTF16(t *testing.T) {
	stream := []byte("BT <FEFF00E9007400E9> Tj ET")
	assert.Equal(t, "été\n", ContentText(stream, nil))
}

func TestTextExtractor(t *testing.T) {
	text, err := TextExtractor{}.Extract(context.Background(), []byte("\xef\xbb\xbfQ: one\r\nQ: two\r"))
	require.NoError(t, err)
	assert.Equal(t, "Q: one\nQ: two\n", text)

	_, err = TextExtractor{}.Extract(context.Background(), []byte{0xff, 0xfe, 0x00})
	assert.True(t, errors.Is(err, apperrors.ErrMalformedDocument))
}

func TestRegistryRejectsUnknownTypes(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(context.Background(), "notes.docx", []byte("PK\x03\x04"))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedDocument))

	text, err := r.Extract(context.Background(), "notes.MD", []byte("Q: markdown"))
	require.NoError(t, err)
	assert.Equal(t, "Q: markdown", text)
}

func TestPDFExtractorRejectsGarbage(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), []byte("%PDF-1.4\nthis is not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedDocument))
	assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
}
