// Command loadtest drives concurrent HTTP load against the PSGC list and
// search endpoints and reports latency percentiles per endpoint.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 30s
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Targets     []Target
}

// Target is one request path, grouped under Endpoint in the report.
type Target struct {
	Endpoint string
	Path     string
}

// defaultTargets mixes list and search calls across all levels. Codes are
// from the PSA 10-digit datafile.
func defaultTargets() []Target {
	return []Target{
		{"regions", "/regions"},
		{"provinces", "/provinces?region_code=0100000000"},
		{"provinces", "/provinces/0400000000"},
		{"citi_muni", "/citi_muni?province_code=0102800000"},
		{"citi_muni", "/municipalities/0402100000"},
		{"barangays", "/barangays?municipality_code=0102805000"},
		{"barangays", "/barangays/1381300000"},
		{"search", "/search?level=barangays&q=pob"},
		{"search", "/search?level=citi_muni&q=san"},
		{"search", "/search/provinces?q=ilocos"},
		{"search", "/search/regions?q=ncr"},
		{"search", "/search/barangays?q=santo%20nino"},
		{"lookup", "/codes/1381300001"},
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the psgc api")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Targets:     defaultTargets(),
	}

	fmt.Println("=== PSGC API Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Paths:       %d unique\n", len(cfg.Targets))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			next := workerID

			for ctx.Err() == nil {
				target := cfg.Targets[next%len(cfg.Targets)]
				next++

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+target.Path, nil)
				if err != nil {
					stats.Record(target.Endpoint, 0, 0, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(target.Endpoint, elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.Record(target.Endpoint, elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}
