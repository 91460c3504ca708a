package psgc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

// Index is the read-only lookup structure over the dataset. Codes resolve
// through a hash map; each level keeps its members both in dataset order
// (for deterministic listing) and in code order (for binary-search prefix
// ranges).
type Index struct {
	records     []Record
	folded      []string
	byCode      map[string]int
	levels      [len(levelNames)]levelIndex
	fingerprint string
}

type levelIndex struct {
	ordered []int
	sorted  []int
}

// NewIndex builds an Index from records in dataset order. Codes must be
// unique and every record must carry a known level.
func NewIndex(records []Record) (*Index, error) {
	idx := &Index{
		records: make([]Record, len(records)),
		folded:  make([]string, len(records)),
		byCode:  make(map[string]int, len(records)),
	}
	copy(idx.records, records)

	h := sha256.New()
	for pos, rec := range idx.records {
		if !rec.Level.Valid() {
			return nil, fmt.Errorf("record %s: %w", rec.Code, apperrors.ErrInvalidLevel)
		}
		if prev, dup := idx.byCode[rec.Code]; dup {
			return nil, fmt.Errorf("%w: %s (%q, %q)", apperrors.ErrDuplicateCode, rec.Code, idx.records[prev].Name, rec.Name)
		}
		idx.byCode[rec.Code] = pos
		idx.folded[pos] = strings.ToLower(rec.Name)
		li := &idx.levels[rec.Level]
		li.ordered = append(li.ordered, pos)
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", rec.Code, rec.Name, rec.Level.Tag())
	}
	for l := range idx.levels {
		li := &idx.levels[l]
		li.sorted = slices.Clone(li.ordered)
		slices.SortFunc(li.sorted, func(a, b int) int {
			return strings.Compare(idx.records[a].Code, idx.records[b].Code)
		})
	}
	idx.fingerprint = hex.EncodeToString(h.Sum(nil)[:8])
	return idx, nil
}

// Get returns the record with the given code.
func (idx *Index) Get(code string) (Record, bool) {
	pos, ok := idx.byCode[code]
	if !ok {
		return Record{}, false
	}
	return idx.records[pos], true
}

// ListByLevel returns every record at level in dataset order.
func (idx *Index) ListByLevel(level Level) []Record {
	return idx.Select("", level)
}

// ListByLevelAndPrefix returns the records at level whose code starts with
// prefix, in dataset order.
func (idx *Index) ListByLevelAndPrefix(level Level, prefix string) []Record {
	return idx.Select(prefix, level)
}

// Select returns the records at any of levels whose code starts with
// prefix, merged in dataset order. The result is never nil.
func (idx *Index) Select(prefix string, levels ...Level) []Record {
	positions := idx.positions(prefix, levels...)
	out := make([]Record, len(positions))
	for i, pos := range positions {
		out[i] = idx.records[pos]
	}
	return out
}

// FindAncestor returns the first record, in dataset order, at one of levels
// whose code starts with prefix. A well-formed dataset has at most one.
func (idx *Index) FindAncestor(prefix string, levels ...Level) (Record, bool) {
	best := -1
	for _, level := range levels {
		for _, pos := range idx.span(level, prefix) {
			if best < 0 || pos < best {
				best = pos
			}
		}
	}
	if best < 0 {
		return Record{}, false
	}
	return idx.records[best], true
}

// CountPrefix reports how many records at levels start with prefix.
func (idx *Index) CountPrefix(prefix string, levels ...Level) int {
	n := 0
	for _, level := range uniqueLevels(levels) {
		n += len(idx.span(level, prefix))
	}
	return n
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Count returns the number of records at level.
func (idx *Index) Count(level Level) int {
	if !level.Valid() {
		return 0
	}
	return len(idx.levels[level].ordered)
}

// Fingerprint identifies the dataset contents. Two indexes built from the
// same records in the same order share a fingerprint.
func (idx *Index) Fingerprint() string {
	return idx.fingerprint
}

// span returns the positions at level whose code starts with prefix, in
// code order. The returned slice aliases the index and must not be modified.
func (idx *Index) span(level Level, prefix string) []int {
	if !level.Valid() || len(prefix) > CodeLength {
		return nil
	}
	sorted := idx.levels[level].sorted
	if prefix == "" {
		return sorted
	}
	lo := sort.Search(len(sorted), func(i int) bool {
		return idx.records[sorted[i]].Code >= prefix
	})
	rest := sorted[lo:]
	hi := sort.Search(len(rest), func(i int) bool {
		return !strings.HasPrefix(idx.records[rest[i]].Code, prefix)
	})
	return rest[:hi]
}

// positions collects the matching positions of every level in dataset order.
func (idx *Index) positions(prefix string, levels ...Level) []int {
	levels = uniqueLevels(levels)
	var out []int
	for _, level := range levels {
		if !level.Valid() {
			continue
		}
		if prefix == "" {
			out = append(out, idx.levels[level].ordered...)
			continue
		}
		out = append(out, idx.span(level, prefix)...)
	}
	if prefix != "" || len(levels) > 1 {
		sort.Ints(out)
	}
	return out
}

func uniqueLevels(levels []Level) []Level {
	if len(levels) < 2 {
		return levels
	}
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
