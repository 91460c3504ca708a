package dataset

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

// DefaultSheet is the sheet holding the code list in the PSA datafile.
const DefaultSheet = "PSGC"

// XLSXSource reads the PSA publication datafile directly. Rows are streamed
// so the full workbook is never expanded in memory.
type XLSXSource struct {
	Path  string
	Sheet string
}

func (s *XLSXSource) Name() string {
	return "xlsx:" + s.Path
}

func (s *XLSXSource) Load(ctx context.Context) (*Dataset, error) {
	sheet := s.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	defer f.Close()

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q in %s: %v", apperrors.ErrDatasetInvalid, sheet, s.Path, err)
	}
	defer rows.Close()

	var b *builder
	line := 0
	for rows.Next() {
		line++
		if line%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Raw values keep numeric codes free of display formatting.
		row, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if b == nil {
			if b, err = newBuilder(s.Name(), row); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.add(line, row); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: sheet %q in %s is empty", apperrors.ErrDatasetInvalid, sheet, s.Path)
	}
	return b.ds, nil
}
