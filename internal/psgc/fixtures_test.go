package psgc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sampleRecords is a slice of the PSA 2Q-2025 publication, in datafile order.
func sampleRecords() []Record {
	return []Record{
		{Code: "0100000000", Name: "Region I (Ilocos Region)", Level: LevelRegion},
		{Code: "0102800000", Name: "Ilocos Norte", Level: LevelProvince},
		{Code: "0102801000", Name: "Adams", Level: LevelMunicipality},
		{Code: "0102801001", Name: "Adams (Pob.)", Level: LevelBarangay},
		{Code: "0102805000", Name: "City of Batac", Level: LevelCity},
		{Code: "0102805001", Name: "Aglipay (Pob.)", Level: LevelBarangay},
		{Code: "0102805002", Name: "Baay", Level: LevelBarangay},
		{Code: "0102900000", Name: "Ilocos Sur", Level: LevelProvince},
		{Code: "0102901000", Name: "Alilem", Level: LevelMunicipality},
		{Code: "0102901001", Name: "Alilem Daya (Pob.)", Level: LevelBarangay},
		{Code: "1300000000", Name: "National Capital Region (NCR)", Level: LevelRegion},
		{Code: "1381300000", Name: "Quezon City", Level: LevelCity},
		{Code: "1381300001", Name: "Alicia", Level: LevelBarangay},
		{Code: "1381300002", Name: "Amihan", Level: LevelBarangay},
	}
}

// scenarioRecords are laid out on 2-4-6 boundaries.
func scenarioRecords() []Record {
	return []Record{
		{Code: "1300000000", Name: "National Capital Region", Level: LevelRegion},
		{Code: "1380600000", Name: "Quezon City", Level: LevelCity},
		{Code: "1380601000", Name: "Barangay X", Level: LevelBarangay},
	}
}

func newSampleIndex(t testing.TB) *Index {
	t.Helper()
	idx, err := NewIndex(sampleRecords())
	require.NoError(t, err)
	return idx
}

func newSampleService(t testing.TB, opts ...Option) *Service {
	t.Helper()
	return NewService(newSampleIndex(t), SchemeStandard, opts...)
}

func codes(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

func recordCodes(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Code
	}
	return out
}
