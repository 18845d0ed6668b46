package localstore

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goesretrieval/internal/query"
)

func writeArchive(t *testing.T, path string, members map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range members {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func TestDiscoverAndFilterFindsMatchingArchive(t *testing.T) {
	root := t.TempDir()
	// week for day-of-year 299 (2023299 -> 2023-10-26): (299-1)/7+1 = 43
	archiveDir := filepath.Join(root, "abi", "l1b", "fd", "2023", "43")
	writeArchive(t, filepath.Join(archiveDir, "ABI-L1b-RadF-M6_G16-s20232991200.tgz"), map[string]string{
		"OR_ABI-L1b-RadF-M6C13_G16_s20232991200215.nc": "data",
	})

	req := query.Request{Nivel: "L1b", Dominio: "fd", Bandas: []string{"ALL"},
		Fechas: map[string][]string{"20231026": {"12:00"}}}
	cq, err := query.Normalize(req)
	require.NoError(t, err)

	d := NewDiscoverer(root)
	found, err := d.DiscoverAndFilter(cq)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, found[0], "ABI-L1b-RadF-M6_G16-s20232991200.tgz")
}

func TestDiscoverAndFilterExcludesOutsideHourWindow(t *testing.T) {
	root := t.TempDir()
	archiveDir := filepath.Join(root, "abi", "l1b", "fd", "2023", "43")
	writeArchive(t, filepath.Join(archiveDir, "ABI-L1b-RadF-M6_G16-s20232990500.tgz"), map[string]string{
		"whatever.nc": "data",
	})

	req := query.Request{Nivel: "L1b", Dominio: "fd", Bandas: []string{"ALL"},
		Fechas: map[string][]string{"20231026": {"12:00"}}}
	cq, err := query.Normalize(req)
	require.NoError(t, err)

	d := NewDiscoverer(root)
	found, err := d.DiscoverAndFilter(cq)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanExistingDropsAlreadyPresentTimestamps(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "ABI-L1b-RadF-M6_G16-s20232991200.tgz"), []byte("x"), 0o644))

	d := NewDiscoverer(t.TempDir())
	candidates := []string{
		"/src/ABI-L1b-RadF-M6_G16-s20232991200.tgz",
		"/src/ABI-L1b-RadF-M6_G16-s20232991300.tgz",
	}
	pending, err := d.ScanExisting(candidates, dest)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0], "1300")
}

func TestScanExistingDropsTimestampsPresentAsExtractedMembers(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dest, "OR_ABI-L1b-RadF-M6C13_G16_s20232991200215.nc"), []byte("x"), 0o644))

	d := NewDiscoverer(t.TempDir())
	candidates := []string{
		"/src/ABI-L1b-RadF-M6_G16-s20232991200.tgz",
		"/src/ABI-L1b-RadF-M6_G16-s20232991300.tgz",
	}
	pending, err := d.ScanExisting(candidates, dest)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0], "1300")
}

func TestScanExistingMissingDestReturnsAllCandidates(t *testing.T) {
	d := NewDiscoverer(t.TempDir())
	candidates := []string{"/src/a.tgz", "/src/b.tgz"}
	pending, err := d.ScanExisting(candidates, filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, candidates, pending)
}

func TestProcessArchiveWholeCopyWhenAllBands(t *testing.T) {
	srcDir := t.TempDir()
	archivePath := filepath.Join(srcDir, "arch.tgz")
	writeArchive(t, archivePath, map[string]string{"member.nc": "payload"})

	dest := t.TempDir()
	out, err := ProcessArchive(archivePath, dest, "L1b", []string{"ALL"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, filepath.Join(dest, "arch.tgz"), out[0])
}

func TestProcessArchiveSelectiveExtractionL1b(t *testing.T) {
	srcDir := t.TempDir()
	archivePath := filepath.Join(srcDir, "arch.tgz")
	writeArchive(t, archivePath, map[string]string{
		"OR_ABI-L1b-RadF-M6C13_G16_s1.nc": "band13",
		"OR_ABI-L1b-RadF-M6C14_G16_s1.nc": "band14",
	})

	dest := t.TempDir()
	out, err := ProcessArchive(archivePath, dest, "L1b", []string{"13"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "C13_")
}

func TestProcessArchiveL2CMIRequiresBandMatch(t *testing.T) {
	srcDir := t.TempDir()
	archivePath := filepath.Join(srcDir, "arch.tgz")
	writeArchive(t, archivePath, map[string]string{
		"OR_ABI-L2-CMIPC-M6C13_G16_s1.nc": "band13",
		"OR_ABI-L2-CMIPC-M6C08_G16_s1.nc": "band08",
	})

	dest := t.TempDir()
	out, err := ProcessArchive(archivePath, dest, "L2", []string{"13"}, []string{"CMIP"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "C13_")
}

func TestProcessArchiveL2NonCMIIgnoresBands(t *testing.T) {
	srcDir := t.TempDir()
	archivePath := filepath.Join(srcDir, "arch.tgz")
	writeArchive(t, archivePath, map[string]string{
		"OR_ABI-L2-ACHAC-M6_G16_s1.nc": "acha",
	})

	dest := t.TempDir()
	out, err := ProcessArchive(archivePath, dest, "L2", nil, []string{"ACHA"})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestProcessArchiveNoMatchFails(t *testing.T) {
	srcDir := t.TempDir()
	archivePath := filepath.Join(srcDir, "arch.tgz")
	writeArchive(t, archivePath, map[string]string{
		"OR_ABI-L1b-RadF-M6C01_G16_s1.nc": "band01",
	})

	dest := t.TempDir()
	_, err := ProcessArchive(archivePath, dest, "L1b", []string{"13"}, nil)
	require.Error(t, err)
}

func TestProcessArchiveCorruptFails(t *testing.T) {
	dest := t.TempDir()
	badPath := filepath.Join(t.TempDir(), "bad.tgz")
	require.NoError(t, os.WriteFile(badPath, []byte("not a gzip"), 0o644))

	_, err := ProcessArchive(badPath, dest, "L1b", []string{"13"}, nil)
	require.Error(t, err)
}
