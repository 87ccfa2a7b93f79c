package extractor

import (
	"fmt"
	"strings"
	"testing"
)

func BenchmarkSegment(b *testing.B) {
	unit := `Q: What would make you renew your subscription next year?
1) Lower pricing for small teams.
2) Better integrations with our ticketing tool.
`
	for _, n := range []int{10, 100, 1000} {
		text := "Survey export\n" + strings.Repeat(unit, n)
		b.Run(fmt.Sprintf("units_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Segment(text, DefaultMinUnitLength)
			}
		})
	}
}

func BenchmarkContentText(b *testing.B) {
	stream := []byte(strings.Repeat("BT /F1 12 Tf 72 700 Td (Q: How was the event?) Tj T* (1\\) Loved the talks) Tj ET\n", 200))
	b.ReportAllocs()
	b.SetBytes(int64(len(stream)))
	for i := 0; i < b.N; i++ {
		_ = ContentText(stream, nil)
	}
}
