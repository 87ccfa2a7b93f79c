package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "Q: How was onboarding? 1) Smooth, the team was great",
	"medium": `Q: What should we improve about the support process?
1) Response times were slow during the holidays and nobody followed up.
2) The agents were friendly but could not resolve billing problems.
3) I would like a status page so I do not have to open a ticket.`,
	"long": strings.Repeat(`Q: How satisfied are you with the new dashboard?
1) The charts load quickly and the filters are easy to understand.
2) Exporting reports is still painful and the CSV is missing columns.
3) Great improvement overall, though mobile layout is broken. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"responses", "disappointed", "improving", "helpful",
		"frustrating", "recommended", "slowly", "billing",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = Stem(w)
		}
	}
}

func BenchmarkWordCounterTruncate(b *testing.B) {
	sizes := []int{10, 100, 1000}
	text := sampleTexts["long"]
	for _, size := range sizes {
		b.Run(fmt.Sprintf("max_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = WordCounter{}.Truncate(text, size)
			}
		})
	}
}
