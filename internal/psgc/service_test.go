package psgc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

func TestListRegions(t *testing.T) {
	svc := newSampleService(t)

	got := svc.ListRegions()
	assert.Equal(t, []Entry{
		{Code: "0100000000", Name: "Region I (Ilocos Region)", FullPath: "Region I (Ilocos Region)"},
		{Code: "1300000000", Name: "National Capital Region (NCR)", FullPath: "National Capital Region (NCR)"},
	}, got)
}

func TestListProvinces(t *testing.T) {
	svc := newSampleService(t)

	all := svc.ListProvinces("")
	assert.Equal(t, []string{"0102800000", "0102900000"}, codes(all))

	filtered := svc.ListProvinces("0100000000")
	assert.Subset(t, all, filtered)
	for _, e := range filtered {
		assert.True(t, strings.HasPrefix(e.Code, "01"), e.Code)
	}
	assert.Equal(t, "Region I (Ilocos Region) > Ilocos Sur", filtered[1].FullPath)

	assert.Empty(t, svc.ListProvinces("1300000000"))
	assert.NotNil(t, svc.ListProvinces("1300000000"))
}

func TestListCitiesMunicipalities(t *testing.T) {
	svc := newSampleService(t)

	assert.Equal(t,
		[]string{"0102801000", "0102805000", "0102901000", "1381300000"},
		codes(svc.ListCitiesMunicipalities("")),
	)

	got := svc.ListCitiesMunicipalities("0102800000")
	assert.Equal(t, []Entry{
		{Code: "0102801000", Name: "Adams", FullPath: "Region I (Ilocos Region) > Ilocos Norte > Adams"},
		{Code: "0102805000", Name: "City of Batac", FullPath: "Region I (Ilocos Region) > Ilocos Norte > City of Batac"},
	}, got)
}

func TestListBarangays(t *testing.T) {
	svc := newSampleService(t)

	assert.Len(t, svc.ListBarangays(""), 6)
	assert.Equal(t, []string{"0102805001", "0102805002"}, codes(svc.ListBarangays("0102805000")))
	assert.Equal(t, []string{"1381300001", "1381300002"}, codes(svc.ListBarangays(" 1381300000 ")))
	assert.Empty(t, svc.ListBarangays("0102899000"))
}

func TestListBarangaysLegacyScheme(t *testing.T) {
	idx, err := NewIndex(scenarioRecords())
	require.NoError(t, err)
	svc := NewService(idx, SchemeLegacy)

	assert.Equal(t, []Entry{
		{Code: "1380601000", Name: "Barangay X", FullPath: "National Capital Region > Quezon City > Barangay X"},
	}, svc.ListBarangays("1380600000"))
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	svc := newSampleService(t)

	lower, err := svc.SearchByName("Reg", "ncr")
	require.NoError(t, err)
	upper, err := svc.SearchByName("Reg", "NCR")
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
	assert.Equal(t, []string{"1300000000"}, codes(lower))
}

func TestSearchEmptyQueryMatchesWholeLevel(t *testing.T) {
	svc := newSampleService(t)

	for _, level := range Levels {
		got := svc.Search("", level)
		assert.Len(t, got, svc.Index().Count(level), level.String())
	}
}

func TestSearchSubstringAndPaths(t *testing.T) {
	svc := newSampleService(t)

	got := svc.Search("POB", LevelBarangay)
	assert.Equal(t, []Entry{
		{Code: "0102801001", Name: "Adams (Pob.)", FullPath: "Region I (Ilocos Region) > Ilocos Norte > Adams > Adams (Pob.)"},
		{Code: "0102805001", Name: "Aglipay (Pob.)", FullPath: "Region I (Ilocos Region) > Ilocos Norte > City of Batac > Aglipay (Pob.)"},
		{Code: "0102901001", Name: "Alilem Daya (Pob.)", FullPath: "Region I (Ilocos Region) > Ilocos Sur > Alilem > Alilem Daya (Pob.)"},
	}, got)

	assert.Empty(t, svc.Search("manila", LevelCity))
	assert.NotNil(t, svc.Search("manila", LevelCity))
}

func TestSearchByNameScopes(t *testing.T) {
	svc := newSampleService(t)

	got, err := svc.SearchByName("citi_muni", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"0102801000", "0102805000", "0102901000"}, codes(got))

	got, err = svc.SearchByName("City", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"0102805000"}, codes(got))

	got, err = svc.SearchByName("Bgy", "ali")
	require.NoError(t, err)
	assert.Equal(t, []string{"0102901001", "1381300001"}, codes(got))
}

func TestSearchByNameUnknownLevel(t *testing.T) {
	strict := newSampleService(t)
	_, err := strict.SearchByName("Dist", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)
	assert.True(t, IsUnknownLevel(err))
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))

	permissive := newSampleService(t, WithStrictLevels(false))
	got, err := permissive.SearchByName("Dist", "x")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLookup(t *testing.T) {
	svc := newSampleService(t)

	got, err := svc.Lookup("0102805002")
	require.NoError(t, err)
	assert.Equal(t, "Region I (Ilocos Region) > Ilocos Norte > City of Batac > Baay", got.FullPath)

	_, err = svc.Lookup("0102805999")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))
}

func TestQueriesAreIdempotent(t *testing.T) {
	svc := newSampleService(t)

	ops := map[string]func() []Entry{
		"regions":   svc.ListRegions,
		"provinces": func() []Entry { return svc.ListProvinces("0100000000") },
		"cities":    func() []Entry { return svc.ListCitiesMunicipalities("0102800000") },
		"barangays": func() []Entry { return svc.ListBarangays("") },
		"search":    func() []Entry { return svc.Search("al", LevelBarangay, LevelMunicipality) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			first := op()
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, op())
			}
		})
	}
}

func TestCacheNamespaceSeparatesConfigurations(t *testing.T) {
	idx := newSampleIndex(t)
	standard := NewService(idx, SchemeStandard)

	assert.Equal(t, standard.CacheNamespace(), NewService(idx, SchemeStandard).CacheNamespace())
	assert.Contains(t, standard.CacheNamespace(), idx.Fingerprint())
	assert.NotEqual(t, standard.CacheNamespace(), NewService(idx, SchemeLegacy).CacheNamespace())
	assert.NotEqual(t, standard.CacheNamespace(), NewService(idx, SchemeStandard, WithStrictLevels(false)).CacheNamespace())
}
