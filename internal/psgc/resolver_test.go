package psgc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStandardScheme(t *testing.T) {
	r := NewResolver(newSampleIndex(t), SchemeStandard)

	tests := []struct {
		code string
		want string
	}{
		{"0100000000", "Region I (Ilocos Region)"},
		{"0102800000", "Region I (Ilocos Region) > Ilocos Norte"},
		{"0102801000", "Region I (Ilocos Region) > Ilocos Norte > Adams"},
		{"0102801001", "Region I (Ilocos Region) > Ilocos Norte > Adams > Adams (Pob.)"},
		{"0102805000", "Region I (Ilocos Region) > Ilocos Norte > City of Batac"},
		{"0102805002", "Region I (Ilocos Region) > Ilocos Norte > City of Batac > Baay"},
		{"0102901001", "Region I (Ilocos Region) > Ilocos Sur > Alilem > Alilem Daya (Pob.)"},
		{"1381300000", "National Capital Region (NCR) > Quezon City"},
		{"1381300001", "National Capital Region (NCR) > Quezon City > Alicia"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.code))
		})
	}
}

func TestResolveScenarioUnderLegacyScheme(t *testing.T) {
	idx, err := NewIndex(scenarioRecords())
	require.NoError(t, err)
	r := NewResolver(idx, SchemeLegacy)

	assert.Equal(t, "National Capital Region > Quezon City > Barangay X", r.Resolve("1380601000"))
	assert.Equal(t, "National Capital Region > Quezon City", r.Resolve("1380600000"))
	assert.Equal(t, "National Capital Region", r.Resolve("1300000000"))
}

func TestResolveScenarioUnderStandardSchemeDropsCity(t *testing.T) {
	idx, err := NewIndex(scenarioRecords())
	require.NoError(t, err)
	r := NewResolver(idx, SchemeStandard)

	// "1380601" is not a prefix of "1380600000"; the city segment is skipped.
	assert.Equal(t, "National Capital Region > Barangay X", r.Resolve("1380601000"))
}

func TestResolveSkipsMissingAncestors(t *testing.T) {
	idx, err := NewIndex([]Record{
		{Code: "0100000000", Name: "Region I", Level: LevelRegion},
		{Code: "0102801001", Name: "Orphan", Level: LevelBarangay},
		{Code: "0400000000", Name: "Region IV-A", Level: LevelRegion},
		{Code: "0402100000", Name: "Cavite", Level: LevelProvince},
		{Code: "0402100001", Name: "Stray", Level: LevelBarangay},
	})
	require.NoError(t, err)
	r := NewResolver(idx, SchemeStandard)

	assert.Equal(t, "Region I > Orphan", r.Resolve("0102801001"))
	assert.Equal(t, "Region IV-A > Cavite > Stray", r.Resolve("0402100001"))
}

func TestResolveUnknownCodes(t *testing.T) {
	r := NewResolver(newSampleIndex(t), SchemeStandard)

	assert.Empty(t, r.Resolve(""))
	assert.Empty(t, r.Resolve("9900000000"))
	// Not in the dataset, so not a barangay, but its ancestors are.
	assert.Equal(t, "Region I (Ilocos Region) > Ilocos Norte > Adams", r.Resolve("0102801999"))
	// Too short to carry province or city segments.
	assert.Equal(t, "Region I (Ilocos Region)", r.Resolve("01"))
	assert.Equal(t, "Region I (Ilocos Region) > Ilocos Norte", r.Resolve("01028"))
}

func TestResolveEveryBarangayEndsWithItsName(t *testing.T) {
	idx := newSampleIndex(t)
	r := NewResolver(idx, SchemeStandard)

	for _, rec := range idx.ListByLevel(LevelBarangay) {
		names := r.Names(rec.Code)
		require.NotEmpty(t, names)
		assert.Equal(t, rec.Name, names[len(names)-1], rec.Code)

		region, ok := idx.FindAncestor(SchemeStandard.Prefix(rec.Code, LevelRegion), LevelRegion)
		if ok {
			assert.Equal(t, region.Name, names[0], rec.Code)
		}
	}
}

func TestResolveEveryRegionIsSingleSegment(t *testing.T) {
	idx := newSampleIndex(t)
	r := NewResolver(idx, SchemeStandard)

	for _, rec := range idx.ListByLevel(LevelRegion) {
		path := r.Resolve(rec.Code)
		assert.Equal(t, rec.Name, path)
		assert.False(t, strings.Contains(path, PathSeparator))
	}
}

func TestResolverEntry(t *testing.T) {
	idx := newSampleIndex(t)
	r := NewResolver(idx, SchemeStandard)
	rec, ok := idx.Get("1381300002")
	require.True(t, ok)

	assert.Equal(t, Entry{
		Code:     "1381300002",
		Name:     "Amihan",
		FullPath: "National Capital Region (NCR) > Quezon City > Amihan",
	}, r.Entry(rec))
}
