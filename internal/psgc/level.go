package psgc

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

// Level is the administrative tier of a PSGC record. Lower values sit higher
// in the hierarchy.
type Level int

const (
	LevelUnknown Level = iota
	LevelRegion
	LevelProvince
	LevelCity
	LevelMunicipality
	LevelBarangay
)

// Levels lists every known level from the top of the hierarchy down.
var Levels = []Level{LevelRegion, LevelProvince, LevelCity, LevelMunicipality, LevelBarangay}

var levelNames = [...]string{
	LevelUnknown:      "unknown",
	LevelRegion:       "region",
	LevelProvince:     "province",
	LevelCity:         "city",
	LevelMunicipality: "municipality",
	LevelBarangay:     "barangay",
}

// levelTags are the "Geographic Level" values used in the PSA datafile.
var levelTags = [...]string{
	LevelUnknown:      "",
	LevelRegion:       "Reg",
	LevelProvince:     "Prov",
	LevelCity:         "City",
	LevelMunicipality: "Mun",
	LevelBarangay:     "Bgy",
}

var levelAliases = map[string][]Level{
	"region":                {LevelRegion},
	"regions":               {LevelRegion},
	"reg":                   {LevelRegion},
	"province":              {LevelProvince},
	"provinces":             {LevelProvince},
	"prov":                  {LevelProvince},
	"city":                  {LevelCity},
	"cities":                {LevelCity},
	"municipality":          {LevelMunicipality},
	"mun":                   {LevelMunicipality},
	"barangay":              {LevelBarangay},
	"barangays":             {LevelBarangay},
	"bgy":                   {LevelBarangay},
	"citi_muni":             {LevelCity, LevelMunicipality},
	"city_municipality":     {LevelCity, LevelMunicipality},
	"cities_municipalities": {LevelCity, LevelMunicipality},
	"municipalities":        {LevelCity, LevelMunicipality},
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return levelNames[LevelUnknown]
	}
	return levelNames[l]
}

// Tag returns the datafile tag for the level ("Reg", "Prov", ...).
func (l Level) Tag() string {
	if l < 0 || int(l) >= len(levelTags) {
		return ""
	}
	return levelTags[l]
}

func (l Level) Valid() bool {
	return l > LevelUnknown && int(l) < len(levelNames)
}

// ParseLevel resolves a single level from its name or datafile tag,
// case-insensitively. Group aliases such as "citi_muni" are rejected here;
// use ParseScope for those.
func ParseLevel(s string) (Level, bool) {
	levels, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok || len(levels) != 1 {
		return LevelUnknown, false
	}
	return levels[0], true
}

// ParseScope resolves a level name, tag or group alias into the set of
// levels it covers. "citi_muni" covers both cities and municipalities.
func ParseScope(s string) ([]Level, error) {
	levels, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidLevel, s)
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return out, nil
}
