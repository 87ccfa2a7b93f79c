package main

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// maxReportedFailures bounds how many failed object names the report lists.
const maxReportedFailures = 20

type Stats struct {
	published   atomic.Int64
	failed      atomic.Int64
	latencies   []time.Duration
	failures    []string
	latenciesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{latencies: make([]time.Duration, 0, 1024)}
}

func (s *Stats) Record(object string, duration time.Duration, err error) {
	s.latenciesMu.Lock()
	defer s.latenciesMu.Unlock()
	if err != nil {
		s.failed.Add(1)
		if len(s.failures) < maxReportedFailures {
			s.failures = append(s.failures, fmt.Sprintf("%s: %v", object, err))
		}
		return
	}
	s.published.Add(1)
	s.latencies = append(s.latencies, duration)
}

func printReport(stats *Stats, elapsed time.Duration) {
	published := stats.published.Load()
	failed := stats.failed.Load()
	total := published + failed

	fmt.Println("=== Results ===")
	fmt.Printf("Listed:      %d\n", total)
	fmt.Printf("Published:   %d\n", published)
	fmt.Printf("Failed:      %d\n", failed)
	if total > 0 && elapsed > 0 {
		fmt.Printf("Events/sec:  %.2f\n", float64(total)/elapsed.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	failures := append([]string(nil), stats.failures...)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		fmt.Println()
		fmt.Println("=== Publish Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	if len(failures) > 0 {
		fmt.Println()
		fmt.Println("=== Failures ===")
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
		if int(failed) > len(failures) {
			fmt.Printf("  ... and %d more\n", int(failed)-len(failures))
		}
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no documents matched the prefix.")
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
