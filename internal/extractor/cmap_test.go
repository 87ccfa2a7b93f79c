package extractor

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityCMap maps glyph ids the way subset embedders commonly do: glyph 3
// is the space and printable ASCII follows in order.
const identityCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0061> <00E9>
<0062> <D83DDE00>
endbfchar
1 beginbfrange
<0003> <0060> <0020>
endbfrange
1 beginbfrange
<0070> <0071> [<0066006C> <0041>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

// glyphHex encodes printable ASCII as the glyph ids identityCMap maps back.
func glyphHex(s string) string {
	var sb strings.Builder
	sb.WriteByte('<')
	for _, r := range s {
		fmt.Fprintf(&sb, "%04X", r-0x20+3)
	}
	sb.WriteByte('>')
	return sb.String()
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestCMapDecode(t *testing.T) {
	cm := ParseCMap([]byte(identityCMap))

	assert.Equal(t, "Q: H", cm.Decode(mustHex(t, "0034001D0003002B")))
	assert.Equal(t, "é😀", cm.Decode(mustHex(t, "00610062")))
	assert.Equal(t, "flA", cm.Decode(mustHex(t, "00700071")))
	assert.Equal(t, "ab", cm.Decode(mustHex(t, "0044099900450002")), "unmapped codes are dropped")
}

func TestCMapWithoutCodespaceUsesMappedWidth(t *testing.T) {
	cm := ParseCMap([]byte("1 beginbfchar <41> <0051> endbfchar 1 beginbfrange <42> <43> <003A> endbfrange"))
	assert.Equal(t, "Q:;", cm.Decode([]byte("ABC")))
}

func TestContentTextIdentityFont(t *testing.T) {
	fonts := map[string]*CMap{"F1": ParseCMap([]byte(identityCMap))}
	stream := []byte("BT /F1 11 Tf 72 700 Td " + glyphHex("Q: How satisfied are you with the service?") + " Tj\n" +
		"0 -14 Td " + glyphHex("1) Very") + " Tj\n" +
		"0 -14 Td " + glyphHex("Q: Would you recommend it to a colleague?") + " Tj\n" +
		"/F2 11 Tf 0 -14 Td (plain text) Tj ET")

	text := ContentText(stream, fonts)
	assert.Equal(t, "Q: How satisfied are you with the service?\n1) Very\nQ: Would you recommend it to a colleague?\nplain text\n", text)

	units := Segment(text, DefaultMinUnitLength)
	require.Len(t, units, 2)
	assert.Equal(t, "How satisfied are you with the service?", units[0].Title)
	assert.Equal(t, 2, units[0].ResponseCount)
}

func TestContentTextWithoutMapShowsRawGlyphs(t *testing.T) {
	// Without the font's map the glyph ids come out as unrelated bytes and
	// no question marker survives.
	text := ContentText([]byte("BT /F1 11 Tf 72 700 Td <00340003002B0052005A> Tj ET"), nil)
	assert.NotContains(t, text, "Q:")
}

// buildPDF lays out numbered objects with a correct cross-reference table.
func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pdfStream(data string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data)
}

func TestPDFExtractorDecodesToUnicodeFonts(t *testing.T) {
	content := "BT /F1 11 Tf 72 700 Td " + glyphHex("Q: How satisfied are you with the service?") + " Tj\n" +
		"0 -14 Td " + glyphHex("Q: Would you recommend it to a colleague?") + " Tj ET"
	doc := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /ToUnicode 6 0 R >>",
		pdfStream(content),
		pdfStream(identityCMap),
	)

	text, err := NewPDFExtractor().Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Q: How satisfied are you with the service?")

	units := Segment(text, DefaultMinUnitLength)
	require.Len(t, units, 2)
	assert.Equal(t, "Would you recommend it to a colleague?", units[1].Title)
}
