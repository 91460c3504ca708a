// Package dataset loads PSGC records from the PSA publication datafile
// (XLSX), a CSV export of it, or a PostgreSQL table, and normalises them into
// psgc.Records in datafile order.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/resilience"
)

// Dataset is the result of a load: the records in source order plus a tally
// of rows whose geographic level is outside the five indexed levels.
type Dataset struct {
	Source  string
	Records []psgc.Record
	Skipped map[string]int
}

// SkippedTotal returns the number of rows left out of Records.
func (d *Dataset) SkippedTotal() int {
	n := 0
	for _, c := range d.Skipped {
		n += c
	}
	return n
}

// Source produces a Dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Dataset, error)
}

// Open returns the Source selected by cfg. pg is only needed for the
// postgres source and may be nil otherwise.
func Open(cfg config.DatasetConfig, pg *postgres.Client) (Source, error) {
	switch cfg.Source {
	case config.SourceCSV:
		return &CSVSource{Path: cfg.Path}, nil
	case config.SourceXLSX:
		return &XLSXSource{Path: cfg.Path, Sheet: cfg.Sheet}, nil
	case config.SourcePostgres:
		if pg == nil {
			return nil, fmt.Errorf("dataset source postgres needs a database connection")
		}
		return NewStore(pg, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown dataset source %q", cfg.Source)
	}
}

// Load runs src under timeout and logs what was read.
func Load(ctx context.Context, src Source, timeout time.Duration) (*Dataset, error) {
	logger := slog.Default().With("component", "dataset", "source", src.Name())
	start := time.Now()
	var ds *Dataset
	err := resilience.WithTimeout(ctx, timeout, "dataset load", func(ctx context.Context) error {
		var err error
		ds, err = src.Load(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading dataset from %s: %w", src.Name(), err)
	}
	if ds.SkippedTotal() > 0 {
		for _, tag := range slices.Sorted(maps.Keys(ds.Skipped)) {
			logger.Info("skipped rows outside the indexed levels", "tag", tag, "rows", ds.Skipped[tag])
		}
	}
	logger.Info("dataset loaded",
		"records", len(ds.Records),
		"skipped", ds.SkippedTotal(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return ds, nil
}
