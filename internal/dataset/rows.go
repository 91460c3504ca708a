package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

// Column headers of the PSA publication datafile.
const (
	HeaderCode  = "10-digit PSGC"
	HeaderName  = "Name"
	HeaderLevel = "Geographic Level"
)

// RowError reports every problem found on one input row.
type RowError struct {
	Line   int
	Fields map[string]string
}

func (e *RowError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return fmt.Sprintf("line %d: %s", e.Line, strings.Join(parts, "; "))
}

func (e *RowError) Unwrap() error {
	return apperrors.ErrDatasetInvalid
}

// columns locates the three datafile columns in a header row.
type columns struct {
	code, name, level int
}

func newColumns(header []string) (columns, error) {
	cols := columns{code: -1, name: -1, level: -1}
	for i, h := range header {
		switch normalizeHeader(h) {
		case normalizeHeader(HeaderCode):
			cols.code = i
		case normalizeHeader(HeaderName):
			cols.name = i
		case normalizeHeader(HeaderLevel):
			cols.level = i
		}
	}
	var missing []string
	if cols.code < 0 {
		missing = append(missing, HeaderCode)
	}
	if cols.name < 0 {
		missing = append(missing, HeaderName)
	}
	if cols.level < 0 {
		missing = append(missing, HeaderLevel)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: header is missing %s", apperrors.ErrDatasetInvalid, strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// builder turns raw rows into records and keeps the skip tally.
type builder struct {
	cols columns
	ds   *Dataset
}

func newBuilder(source string, header []string) (*builder, error) {
	cols, err := newColumns(header)
	if err != nil {
		return nil, err
	}
	return &builder{
		cols: cols,
		ds:   &Dataset{Source: source, Skipped: make(map[string]int)},
	}, nil
}

// add parses one data row. Blank rows are ignored; rows tagged with a level
// outside the five indexed ones are counted and dropped.
func (b *builder) add(line int, row []string) error {
	rawCode, name, tag := cell(row, b.cols.code), cell(row, b.cols.name), cell(row, b.cols.level)
	if rawCode == "" && name == "" && tag == "" {
		return nil
	}
	level, ok := psgc.ParseLevel(tag)
	if !ok {
		if tag == "" {
			tag = "(blank)"
		}
		b.ds.Skipped[tag]++
		return nil
	}

	fields := make(map[string]string)
	code, err := NormalizeCode(rawCode)
	if err != nil {
		fields[HeaderCode] = err.Error()
	}
	if name == "" {
		fields[HeaderName] = "name is required"
	}
	if len(fields) > 0 {
		return &RowError{Line: line, Fields: fields}
	}
	b.ds.Records = append(b.ds.Records, psgc.Record{Code: code, Name: name, Level: level})
	return nil
}

// NormalizeCode accepts a PSGC code as text or as a spreadsheet number and
// returns it as exactly psgc.CodeLength digits, restoring leading zeros that
// numeric cells drop.
func NormalizeCode(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return "", fmt.Errorf("code is required")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("code %q is not numeric", raw)
		}
	}
	if len(s) > psgc.CodeLength {
		return "", fmt.Errorf("code %q is longer than %d digits", raw, psgc.CodeLength)
	}
	return strings.Repeat("0", psgc.CodeLength-len(s)) + s, nil
}
