// Package localstore implements the §4.3 local discoverer and §4.4
// archive processor: locating per-observation tar archives under the
// local (Lustre-style) source tree and materializing either a whole
// archive copy or a selective extraction into a query's destination
// directory.
package localstore

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goesretrieval/internal/apperr"
	"goesretrieval/internal/catalog"
	"goesretrieval/internal/query"
	"goesretrieval/internal/timeutil"
)

// Discoverer locates candidate archives for a canonical query under a
// local source root.
type Discoverer struct {
	Root string
}

// NewDiscoverer builds a Discoverer rooted at root.
func NewDiscoverer(root string) *Discoverer {
	return &Discoverer{Root: root}
}

// weekDir builds <root>/<sensor>/<level>/[<domain>/]<YYYY>/<WW> for a
// YYYYJJJ day key, per §4.3 "Path construction".
func (d *Discoverer) weekDir(q query.CanonicalQuery, dayKey string) (string, error) {
	ts, ok := timeutil.ParseEmbeddedTimestamp(dayKey + "0000")
	if !ok {
		return "", fmt.Errorf("invalid day key %q", dayKey)
	}
	week := timeutil.WeekOfYear(ts.DayOfYear)

	parts := []string{d.Root, strings.ToLower(q.Sensor), strings.ToLower(q.Nivel)}
	if q.Dominio != "" {
		parts = append(parts, strings.ToLower(q.Dominio))
	}
	parts = append(parts, fmt.Sprintf("%04d", ts.Year), fmt.Sprintf("%02d", week))
	return filepath.Join(parts...), nil
}

// DiscoverAndFilter implements discover_and_filter: for each day key, glob
// the week directory for archives whose filename contains the day key,
// then keep only those whose embedded start timestamp falls in any
// requested range for that day (widened to whole covering hours). The
// result is deduplicated by path and sorted.
func (d *Discoverer) DiscoverAndFilter(q query.CanonicalQuery) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, dayKey := range q.SortedDayKeys() {
		ts, ok := timeutil.ParseEmbeddedTimestamp(dayKey + "0000")
		if !ok {
			continue
		}
		dir, err := d.weekDir(q, dayKey)
		if err != nil {
			continue
		}
		ranges, err := parseRanges(q.Fechas[dayKey])
		if err != nil {
			return nil, err
		}

		pattern := filepath.Join(dir, fmt.Sprintf("*%04d%03d*.tgz", ts.Year, ts.DayOfYear))
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, apperr.TargetFailure(err, "globbing %s", pattern)
		}

		for _, m := range matches {
			candTS, ok := timeutil.ExtractLocalTimestamp(filepath.Base(m))
			if !ok {
				continue // invalid names are silently skipped
			}
			if !matchesAnyHourWindow(candTS.Hour, ranges) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

func parseRanges(raw []string) ([]timeutil.TimeRange, error) {
	ranges := make([]timeutil.TimeRange, 0, len(raw))
	for _, r := range raw {
		tr, err := timeutil.ParseTimeRange(r)
		if err != nil {
			return nil, apperr.BusinessRule("bad time range %q: %v", r, err)
		}
		ranges = append(ranges, tr)
	}
	return ranges, nil
}

func matchesAnyHourWindow(hour int, ranges []timeutil.TimeRange) bool {
	for _, r := range ranges {
		if r.ContainsHour(hour) {
			return true
		}
	}
	return false
}

// ScanExisting implements scan_existing: drop any candidate archive whose
// embedded timestamp is already represented among files in dest. Files in
// dest without a parseable timestamp do not block anything. A destination
// populated by a whole-archive copy carries the timestamp in the "-s" form
// on the .tgz itself; one populated by selective extraction carries it in
// the "_s" form on each extracted member — both are recognized so a
// restart resumes correctly regardless of which path populated dest.
func (d *Discoverer) ScanExisting(candidates []string, dest string) ([]string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return candidates, nil
		}
		return nil, apperr.FatalQuery(err, "reading destination %s", dest)
	}

	present := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ts, ok := timeutil.ExtractLocalTimestamp(e.Name()); ok {
			present[tsKey(ts)] = true
			continue
		}
		if ts, ok := timeutil.ExtractMemberTimestamp(e.Name()); ok {
			present[tsKey(ts)] = true
		}
	}

	var pending []string
	for _, c := range candidates {
		ts, ok := timeutil.ExtractLocalTimestamp(filepath.Base(c))
		if ok && present[tsKey(ts)] {
			continue
		}
		pending = append(pending, c)
	}
	return pending, nil
}

func tsKey(ts timeutil.Timestamp) string {
	return fmt.Sprintf("%04d%03d%02d%02d", ts.Year, ts.DayOfYear, ts.Hour, ts.Minute)
}

// ProcessArchive implements the §4.4 archive processor contract: given one
// local archive path, the destination directory, and the query's level and
// original (pre-expansion) product/band lists, either copy the archive
// whole or extract a matching subset of members. Safe to call concurrently
// from a worker pool; it holds no shared mutable state.
func ProcessArchive(archivePath, dest, nivel string, originalBands, originalProducts []string) ([]string, error) {
	if shouldCopyWhole(nivel, originalBands, originalProducts) {
		return copyWhole(archivePath, dest)
	}
	return extractSelective(archivePath, dest, nivel, originalBands, originalProducts)
}

// shouldCopyWhole implements the §4.4 whole-copy condition.
func shouldCopyWhole(nivel string, bands, products []string) bool {
	switch nivel {
	case catalog.LevelL1b:
		return catalog.IsFullBandSet(bands)
	case catalog.LevelL2:
		return catalog.IsFullBandSet(bands) && catalog.IsFullProductSet(products)
	default:
		return false
	}
}

func copyWhole(archivePath, dest string) ([]string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, apperr.FatalQuery(err, "creating destination %s", dest)
	}
	src, err := os.Open(archivePath)
	if err != nil {
		return nil, apperr.TargetFailure(err, "opening %s", archivePath)
	}
	defer src.Close()

	destPath := filepath.Join(dest, filepath.Base(archivePath))
	out, err := os.Create(destPath)
	if err != nil {
		return nil, apperr.TargetFailure(err, "creating %s", destPath)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return nil, apperr.TargetFailure(err, "copying %s", archivePath)
	}
	return []string{destPath}, nil
}

// extractSelective opens the archive as gzip-compressed tar and extracts
// only members matching the requested bands/products, per §4.4.
func extractSelective(archivePath, dest, nivel string, bands, products []string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, apperr.TargetFailure(err, "opening %s", archivePath)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, apperr.TargetFailure(err, "archive %s: gzip: %v", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var extracted []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.TargetFailure(err, "archive %s: corrupt tar", archivePath)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !matchesMember(hdr.Name, nivel, bands, products) {
			continue
		}

		outPath := filepath.Join(dest, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return nil, apperr.FatalQuery(err, "creating %s", filepath.Dir(outPath))
		}
		out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode&0o777|0o200))
		if err != nil {
			return nil, apperr.TargetFailure(err, "creating %s", outPath)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, apperr.TargetFailure(err, "extracting %s", outPath)
		}
		out.Close()
		extracted = append(extracted, outPath)
	}

	if len(extracted) == 0 {
		return nil, apperr.TargetFailure(nil, "no members in %s matched the request", filepath.Base(archivePath))
	}
	return extracted, nil
}

// matchesMember implements the §4.4 selective-extraction member predicate.
func matchesMember(name, nivel string, bands, products []string) bool {
	switch nivel {
	case catalog.LevelL1b:
		for _, b := range catalog.ExpandBands(bands) {
			if strings.Contains(name, "C"+b+"_") {
				return true
			}
		}
		return false

	case catalog.LevelL2:
		expandedProducts := products
		if catalog.IsFullProductSet(products) {
			expandedProducts = catalog.ValidProducts
		}
		for _, p := range expandedProducts {
			if !strings.Contains(name, "-L2-"+p) {
				continue
			}
			if !catalog.IsCMIFamily(p) {
				return true
			}
			if catalog.IsFullBandSet(bands) {
				return true
			}
			for _, b := range catalog.ExpandBands(bands) {
				if strings.Contains(name, "C"+b+"_") {
					return true
				}
			}
		}
		return false

	default:
		return false
	}
}
