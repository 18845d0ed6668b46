package remotestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goesretrieval/internal/query"
)

func TestProductPathsL1b(t *testing.T) {
	req := query.Request{Nivel: "L1b", Dominio: "fd", Sensor: "abi", Bandas: []string{"ALL"},
		Fechas: map[string][]string{"20231026": {"12:00"}}}
	cq, err := query.Normalize(req)
	require.NoError(t, err)

	paths := ProductPaths(cq)
	require.Len(t, paths, 1)
	assert.Equal(t, "ABI-L1b-RadF", paths[0])
}

func TestProductPathsL2MultipleProducts(t *testing.T) {
	req := query.Request{Nivel: "L2", Dominio: "conus", Sensor: "abi",
		Productos: []string{"CMIP", "ACHA"}, Bandas: []string{"13"},
		Fechas: map[string][]string{"20231026": {"12:00"}}}
	cq, err := query.Normalize(req)
	require.NoError(t, err)

	paths := ProductPaths(cq)
	assert.ElementsMatch(t, []string{"ABI-L2-CMIPC", "ABI-L2-ACHAC"}, paths)
}

func TestBucketNameGOESEastCutover(t *testing.T) {
	c, err := NewClient(Options{CutoverDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	before := query.Request{Nivel: "L1b", Dominio: "fd", Satellite: "GOES-EAST", Bandas: []string{"ALL"},
		Fechas: map[string][]string{"20240101": {"12:00"}}}
	cqBefore, err := query.Normalize(before)
	require.NoError(t, err)
	bucket, err := c.bucketName(cqBefore)
	require.NoError(t, err)
	assert.Equal(t, "noaa-goes16", bucket)
}

func TestBucketNameGOESWest(t *testing.T) {
	c, err := NewClient(Options{})
	require.NoError(t, err)
	req := query.Request{Nivel: "L1b", Dominio: "fd", Satellite: "GOES-WEST", Bandas: []string{"ALL"},
		Fechas: map[string][]string{"20231026": {"12:00"}}}
	cq, err := query.Normalize(req)
	require.NoError(t, err)
	bucket, err := c.bucketName(cq)
	require.NoError(t, err)
	assert.Equal(t, "noaa-goes18", bucket)
}

func TestPreScanSkipsNonzeroExistingFiles(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "present.nc"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "empty.nc"), nil, 0o644))

	keys := map[string]string{
		"present.nc": "bucket/path/present.nc",
		"empty.nc":   "bucket/path/empty.nc",
		"missing.nc": "bucket/path/missing.nc",
	}
	pending, done := PreScan(keys, dest)
	assert.Len(t, done, 1)
	assert.Len(t, pending, 2)
	_, stillPending := pending["empty.nc"]
	assert.True(t, stillPending)
}

func TestMatchesAnyBand(t *testing.T) {
	assert.True(t, matchesAnyBand("OR_ABI-L2-CMIPC-M6C13_G16.nc", []string{"13"}))
	assert.False(t, matchesAnyBand("OR_ABI-L2-CMIPC-M6C08_G16.nc", []string{"13"}))
}
