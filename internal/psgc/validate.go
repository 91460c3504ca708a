package psgc

import (
	"fmt"
	"strings"
)

type IssueKind string

const (
	IssueCodeWidth         IssueKind = "code_width"
	IssueEmptyName         IssueKind = "empty_name"
	IssueUnknownLevel      IssueKind = "unknown_level"
	IssueDuplicateCode     IssueKind = "duplicate_code"
	IssueAmbiguousAncestor IssueKind = "ambiguous_ancestor"
)

type Issue struct {
	Code   string    `json:"code"`
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}

// Report summarises the data-quality problems found in a record set.
type Report struct {
	Scheme  string            `json:"scheme"`
	Records int               `json:"records"`
	Counts  map[IssueKind]int `json:"counts"`
	Issues  []Issue           `json:"issues"`
}

func (r *Report) OK() bool {
	return len(r.Issues) == 0
}

func (r *Report) add(code string, kind IssueKind, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Code: code, Kind: kind, Detail: fmt.Sprintf(format, args...)})
	r.Counts[kind]++
}

// Validate checks records against the shape rules and the hierarchy
// invariant under scheme: every code is CodeLength characters, names are
// non-empty, codes are unique, and each record has at most one candidate
// ancestor per level.
func Validate(records []Record, scheme Scheme) *Report {
	report := &Report{
		Scheme:  scheme.Name,
		Records: len(records),
		Counts:  make(map[IssueKind]int),
	}

	seen := make(map[string]struct{}, len(records))
	clean := make([]Record, 0, len(records))
	for _, rec := range records {
		if len(rec.Code) != CodeLength {
			report.add(rec.Code, IssueCodeWidth, "code has %d characters, want %d", len(rec.Code), CodeLength)
		}
		if strings.TrimSpace(rec.Name) == "" {
			report.add(rec.Code, IssueEmptyName, "name is empty")
		}
		if !rec.Level.Valid() {
			report.add(rec.Code, IssueUnknownLevel, "level %d is not a PSGC level", int(rec.Level))
			continue
		}
		if _, dup := seen[rec.Code]; dup {
			report.add(rec.Code, IssueDuplicateCode, "code appears more than once")
			continue
		}
		seen[rec.Code] = struct{}{}
		clean = append(clean, rec)
	}

	idx, err := NewIndex(clean)
	if err != nil {
		report.add("", IssueDuplicateCode, "index build failed: %v", err)
		return report
	}

	for _, rec := range clean {
		for _, anc := range ancestorLevels(rec.Level) {
			prefix := scheme.Prefix(rec.Code, anc[0])
			if n := idx.CountPrefix(prefix, anc...); n > 1 {
				report.add(rec.Code, IssueAmbiguousAncestor, "%d %s candidates share prefix %q", n, anc[0], prefix)
			}
		}
	}
	return report
}

// ancestorLevels lists the level groups that sit strictly above level.
func ancestorLevels(level Level) [][]Level {
	groups := [][]Level{{LevelRegion}, {LevelProvince}, {LevelCity, LevelMunicipality}}
	switch level {
	case LevelProvince:
		return groups[:1]
	case LevelCity, LevelMunicipality:
		return groups[:2]
	case LevelBarangay:
		return groups
	default:
		return nil
	}
}
