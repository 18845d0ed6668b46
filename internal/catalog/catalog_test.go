package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goesretrieval/internal/apperr"
)

func TestExpandBandsAllEqualsFullSet(t *testing.T) {
	expanded := ExpandBands([]string{AllBandsToken})
	assert.Equal(t, ValidBands, expanded)
}

func TestExpandBandsFullSetIsIdentity(t *testing.T) {
	expanded := ExpandBands(ValidBands)
	assert.Equal(t, ValidBands, expanded)
}

func TestValidateBandsRejectsUnknown(t *testing.T) {
	_, err := ValidateBands([]string{"17"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestValidateBandsTolerateEmpty(t *testing.T) {
	got, err := ValidateBands(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidateBandsCollapsesAll(t *testing.T) {
	got, err := ValidateBands([]string{"01", "ALL", "05"})
	require.NoError(t, err)
	assert.Equal(t, []string{AllBandsToken}, got)
}

func TestIsFullBandSet(t *testing.T) {
	assert.True(t, IsFullBandSet([]string{AllBandsToken}))
	assert.True(t, IsFullBandSet(ValidBands))
	assert.False(t, IsFullBandSet([]string{"01", "02"}))
}

func TestRequiresBands(t *testing.T) {
	assert.True(t, RequiresBands(LevelL1b, nil))
	assert.True(t, RequiresBands(LevelL2, []string{"CMIP"}))
	assert.True(t, RequiresBands(LevelL2, []string{AllBandsToken}))
	assert.False(t, RequiresBands(LevelL2, []string{"ACHA"}))
}

func TestEstimateFilesSummarySumsAcrossDaysRangesItems(t *testing.T) {
	req := Request{
		Nivel:   LevelL1b,
		Dominio: DomainFD,
		Bandas:  []string{AllBandsToken},
		Fechas:  map[string][]string{"20231026": {"12:00"}},
	}
	summary, err := EstimateFilesSummary(req)
	require.NoError(t, err)
	// 12:00 = minute 720; 720 % 10 == 0, one hit per band, 16 bands.
	assert.Equal(t, 16, summary.FileCount)
	assert.InDelta(t, 16*14.0, summary.TotalSizeMB, 0.001)
}

func TestEstimateFilesSummaryZeroMinutesIsZero(t *testing.T) {
	req := Request{
		Nivel:   LevelL1b,
		Dominio: DomainFD,
		Bandas:  []string{"01"},
		Fechas:  map[string][]string{"20231026": {"12:01-12:01"}},
	}
	summary, err := EstimateFilesSummary(req)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FileCount)
	assert.Equal(t, 0.0, summary.AverageFileSizeMB)
}

func TestEstimateFilesSummaryCMIPExpandsPerBand(t *testing.T) {
	req := Request{
		Nivel:     LevelL2,
		Dominio:   DomainCONUS,
		Productos: []string{"CMIP"},
		Bandas:    []string{"13"},
		Fechas:    map[string][]string{"20210501": {"19:00-19:17"}},
	}
	summary, err := EstimateFilesSummary(req)
	require.NoError(t, err)
	assert.Greater(t, summary.FileCount, 0)
}

func TestEstimateFilesSummaryRejectsMissingL2Products(t *testing.T) {
	req := Request{
		Nivel:   LevelL2,
		Dominio: DomainCONUS,
		Fechas:  map[string][]string{"20210501": {"19:00"}},
	}
	_, err := EstimateFilesSummary(req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestSatelliteBucketNumber(t *testing.T) {
	cutover := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	n, err := SatelliteBucketNumber("GOES-EAST", cutover.AddDate(0, 0, -1), cutover)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	n, err = SatelliteBucketNumber("GOES-EAST", cutover, cutover)
	require.NoError(t, err)
	assert.Equal(t, 19, n)

	n, err = SatelliteBucketNumber("GOES-WEST", cutover, cutover)
	require.NoError(t, err)
	assert.Equal(t, 18, n)

	n, err = SatelliteBucketNumber("GOES-16", cutover, cutover)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	_, err = SatelliteBucketNumber("GOES-99", cutover, cutover)
	require.Error(t, err)
}
