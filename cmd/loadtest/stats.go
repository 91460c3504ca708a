package main

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// Stats collects per-endpoint latencies and status codes from all workers.
type Stats struct {
	mu          sync.Mutex
	total       int64
	errors      int64
	latencies   map[string][]time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

// Record adds one request. Transport errors count as errors without a
// latency sample.
func (s *Stats) Record(endpoint string, d time.Duration, statusCode int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if err != nil {
		s.errors++
		return
	}
	if statusCode < 200 || statusCode >= 300 {
		s.errors++
	}
	s.latencies[endpoint] = append(s.latencies[endpoint], d)
	s.statusCodes[statusCode]++
}

// Summary is the latency distribution of one endpoint.
type Summary struct {
	Count         int
	Min, Avg, Max time.Duration
	P50, P95, P99 time.Duration
}

func summarize(latencies []time.Duration) Summary {
	if len(latencies) == 0 {
		return Summary{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	return Summary{
		Count: len(sorted),
		Min:   sorted[0],
		Avg:   sum / time.Duration(len(sorted)),
		Max:   sorted[len(sorted)-1],
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
	}
}

// printReport writes the results and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", stats.total)
	fmt.Fprintf(w, "Errors:          %d\n", stats.errors)
	if stats.total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(stats.errors)/float64(stats.total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(stats.total)/duration.Seconds())
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency by endpoint ===")
	fmt.Fprintf(w, "%-10s %8s %10s %10s %10s %10s %10s\n", "endpoint", "count", "min", "p50", "p95", "p99", "max")
	for _, endpoint := range slices.Sorted(maps.Keys(stats.latencies)) {
		s := summarize(stats.latencies[endpoint])
		fmt.Fprintf(w, "%-10s %8d %10s %10s %10s %10s %10s\n", endpoint, s.Count,
			round(s.Min), round(s.P50), round(s.P95), round(s.P99), round(s.Max))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	for _, code := range slices.Sorted(maps.Keys(stats.statusCodes)) {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code])
	}

	if stats.total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
