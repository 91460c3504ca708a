package analytics

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// AggregatedStats is the analytics summary served over HTTP and snapshotted
// to PostgreSQL.
type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	ByOperation       map[string]int64 `json:"by_operation"`
	Errors            int64            `json:"errors"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopSearches       []QueryCount     `json:"top_searches"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	Since             time.Time        `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds QueryEvents into running totals.
type Aggregator struct {
	mu           sync.Mutex
	total        int64
	errors       int64
	cacheHits    int64
	cacheMisses  int64
	zeroResults  int64
	byOperation  map[string]int64
	latencies    []float64
	next         int
	searches     map[string]int64
	zeroSearches map[string]int64
	topN         int
	startTime    time.Time
	now          func() time.Time
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewAggregator creates an Aggregator reporting the topN most frequent
// searches. m may be nil.
func NewAggregator(topN int, m *metrics.Metrics) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		byOperation:  make(map[string]int64),
		latencies:    make([]float64, 0, 1024),
		searches:     make(map[string]int64),
		zeroSearches: make(map[string]int64),
		topN:         topN,
		startTime:    time.Now(),
		now:          time.Now,
		metrics:      m,
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka handler feeding this aggregator.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			return err
		}
		a.Record(event)
		if a.metrics != nil {
			a.metrics.AnalyticsEventsTotal.WithLabelValues("consumed").Inc()
		}
		return nil
	}
}

// Record adds one event to the totals.
func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byOperation[event.Operation]++
	if event.Status >= 400 {
		a.errors++
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.addLatency(event.LatencyMs)

	if event.Operation != OpSearch {
		if event.Results == 0 {
			a.zeroResults++
		}
		return
	}
	term := searchTerm(event)
	a.searches[term]++
	if event.Results == 0 {
		a.zeroResults++
		a.zeroSearches[term]++
	}
}

func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.next] = ms
	a.next = (a.next + 1) % maxLatencySamples
}

// searchTerm labels a search as "level:query" with the query folded to
// lower case, so "NCR" and "ncr" count together.
func searchTerm(event QueryEvent) string {
	return event.Level + ":" + strings.ToLower(event.Query)
}

// Stats returns a consistent snapshot of the totals.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		ByOperation:     make(map[string]int64, len(a.byOperation)),
		Errors:          a.errors,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		Since:           a.startTime.UTC(),
	}
	for op, n := range a.byOperation {
		stats.ByOperation[op] = n
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopSearches = topN(a.searches, a.topN)
	stats.ZeroResultQueries = topN(a.zeroSearches, a.topN)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then by query so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
