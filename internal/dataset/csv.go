package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

// CSVSource reads a CSV export of the PSGC sheet. Columns are located by
// header name, so extra columns and any column order are accepted.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string {
	return "csv:" + s.Path
}

func (s *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	defer f.Close()
	return ReadCSV(ctx, s.Name(), f)
}

// ReadCSV parses PSGC rows from r.
func ReadCSV(ctx context.Context, source string, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", apperrors.ErrDatasetInvalid, source)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	b, err := newBuilder(source, header)
	if err != nil {
		return nil, err
	}

	for line := 2; ; line++ {
		if line%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", apperrors.ErrDatasetInvalid, line, err)
		}
		if err := b.add(line, row); err != nil {
			return nil, err
		}
	}
	return b.ds, nil
}
