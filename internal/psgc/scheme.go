package psgc

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeLength is the width of a 10-digit PSGC code.
const CodeLength = 10

// Scheme holds the code prefix lengths that identify a record's region,
// province and city/municipality ancestors.
type Scheme struct {
	Name     string
	Region   int
	Province int
	City     int
}

var (
	// SchemeStandard follows the PSA 10-digit layout RR PPP MM BBB.
	SchemeStandard = Scheme{Name: "2-5-7", Region: 2, Province: 5, City: 7}
	// SchemeLegacy is the 2-4-6 split used by older revisions of the API.
	SchemeLegacy = Scheme{Name: "2-4-6", Region: 2, Province: 4, City: 6}
)

// ParseScheme accepts a named scheme ("standard", "legacy") or an explicit
// "R-P-C" triple such as "2-5-7".
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard", "psa", SchemeStandard.Name:
		return SchemeStandard, nil
	case "legacy", SchemeLegacy.Name:
		return SchemeLegacy, nil
	}
	parts := strings.Split(strings.TrimSpace(name), "-")
	if len(parts) != 3 {
		return Scheme{}, fmt.Errorf("segmentation %q: want R-P-C prefix lengths", name)
	}
	var lengths [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Scheme{}, fmt.Errorf("segmentation %q: %w", name, err)
		}
		lengths[i] = n
	}
	s := Scheme{
		Name:     fmt.Sprintf("%d-%d-%d", lengths[0], lengths[1], lengths[2]),
		Region:   lengths[0],
		Province: lengths[1],
		City:     lengths[2],
	}
	if err := s.Validate(); err != nil {
		return Scheme{}, err
	}
	return s, nil
}

// Validate checks that each boundary strictly extends the previous one and
// stays inside the code width.
func (s Scheme) Validate() error {
	if s.Region <= 0 || s.Province <= s.Region || s.City <= s.Province || s.City >= CodeLength {
		return fmt.Errorf("segmentation %s: boundaries must satisfy 0 < region < province < city < %d", s.Name, CodeLength)
	}
	return nil
}

// PrefixLen returns how many leading characters of a code identify the
// ancestor at level. Barangays use the whole code.
func (s Scheme) PrefixLen(level Level) int {
	switch level {
	case LevelRegion:
		return s.Region
	case LevelProvince:
		return s.Province
	case LevelCity, LevelMunicipality:
		return s.City
	case LevelBarangay:
		return CodeLength
	default:
		return 0
	}
}

// Prefix cuts code down to the segment that identifies its ancestor at
// level. Codes shorter than the boundary are returned whole.
func (s Scheme) Prefix(code string, level Level) string {
	n := s.PrefixLen(level)
	if n == 0 {
		return ""
	}
	if len(code) < n {
		return code
	}
	return code[:n]
}
