package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
)

const (
	questionMarker = "Q:"
	// DefaultMinUnitLength is the trimmed length a unit must exceed to be kept.
	DefaultMinUnitLength = 30
)

var responseLine = regexp.MustCompile(`\n\d{1,2}[). ]`)

// Segment splits text into content units. A unit starts at the first "Q:"
// in the text and at every "Q:" that begins a line, and runs until the next
// such marker. Units whose trimmed length is not above minLen are dropped;
// indexes count kept units only.
func Segment(text string, minLen int) []ingestion.ContentUnit {
	start := strings.Index(text, questionMarker)
	if start < 0 {
		return nil
	}
	rest := text[start:]
	var units []ingestion.ContentUnit
	for rest != "" {
		var block string
		if next := strings.Index(rest, "\n"+questionMarker); next >= 0 {
			block, rest = rest[:next], rest[next+1:]
		} else {
			block, rest = rest, ""
		}
		block = strings.TrimSpace(block)
		if utf8.RuneCountInString(block) <= minLen {
			continue
		}
		units = append(units, ingestion.ContentUnit{
			Index:         len(units),
			Text:          block,
			Title:         Title(block),
			ResponseCount: CountResponses(block),
		})
	}
	return units
}

// Title is the first line of a unit with the question marker removed.
func Title(unit string) string {
	line := unit
	if i := strings.IndexAny(unit, "\r\n"); i >= 0 {
		line = unit[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(line, questionMarker, ""))
}

// CountResponses counts numbered response lines such as "\n1) " or "\n12.".
// A unit without numbered lines counts as one response.
func CountResponses(unit string) int {
	if n := len(responseLine.FindAllStringIndex(unit, -1)); n > 0 {
		return n
	}
	return 1
}
