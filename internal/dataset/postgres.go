package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/resilience"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Store keeps the PSGC records in a PostgreSQL table. It is both a Source for
// the API and the import target for psgcctl. The seq column preserves the
// datafile order.
type Store struct {
	pg    *postgres.Client
	table string
	retry resilience.RetryConfig
}

func NewStore(pg *postgres.Client, table string) (*Store, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{
		pg:    pg,
		table: table,
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Retryable:    retryable,
		},
	}, nil
}

func (s *Store) Name() string {
	return "postgres:" + s.table
}

// EnsureSchema creates the records table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq       INTEGER     PRIMARY KEY,
	code      CHAR(10)    NOT NULL UNIQUE,
	name      TEXT        NOT NULL,
	level     TEXT        NOT NULL,
	loaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pq.QuoteIdentifier(s.table))
	return s.pg.EnsureTable(ctx, s.table, q)
}

// Load reads every record ordered by seq, retrying transient failures.
func (s *Store) Load(ctx context.Context) (*Dataset, error) {
	var ds *Dataset
	err := resilience.Retry(ctx, "load "+s.table, s.retry, func(ctx context.Context) error {
		var err error
		ds, err = s.load(ctx)
		return err
	})
	return ds, err
}

func (s *Store) load(ctx context.Context) (*Dataset, error) {
	q := fmt.Sprintf(`SELECT code, name, level FROM %s ORDER BY seq`, pq.QuoteIdentifier(s.table))
	rows, err := s.pg.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	ds := &Dataset{Source: s.Name(), Skipped: make(map[string]int)}
	for rows.Next() {
		var code, name, tag string
		if err := rows.Scan(&code, &name, &tag); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s.table, err)
		}
		level, ok := psgc.ParseLevel(tag)
		if !ok {
			ds.Skipped[tag]++
			continue
		}
		ds.Records = append(ds.Records, psgc.Record{Code: code, Name: name, Level: level})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", s.table, err)
	}
	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%w: table %s has no records", apperrors.ErrDatasetInvalid, s.table)
	}
	return ds, nil
}

// Import replaces the table contents with records in one transaction and
// returns the number of rows written.
func (s *Store) Import(ctx context.Context, records []psgc.Record) (int, error) {
	err := s.pg.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s`, pq.QuoteIdentifier(s.table))); err != nil {
			return fmt.Errorf("truncating %s: %w", s.table, err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table, "seq", "code", "name", "level"))
		if err != nil {
			return fmt.Errorf("preparing copy into %s: %w", s.table, err)
		}
		for i, rec := range records {
			if _, err := stmt.ExecContext(ctx, i+1, rec.Code, rec.Name, rec.Level.Tag()); err != nil {
				stmt.Close()
				return fmt.Errorf("copying record %s: %w", rec.Code, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy into %s: %w", s.table, err)
		}
		return stmt.Close()
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// retryable rejects failures another attempt cannot fix: bad data,
// cancellation and SQL errors of class 42 (missing table, bad column).
func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "42" {
		return false
	}
	return !errors.Is(err, apperrors.ErrDatasetInvalid) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
