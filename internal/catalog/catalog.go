// Package catalog holds the static GOES satellite/sensor/level/domain/
// product/band catalog together with the periodicity/weight tables and the
// file-count/size estimator that backs the submission acceptance gate.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"goesretrieval/internal/apperr"
	"goesretrieval/internal/timeutil"
)

// Processing levels.
const (
	LevelL1b = "L1b"
	LevelL2  = "L2"
)

// Geographic domains.
const (
	DomainFD    = "fd"
	DomainCONUS = "conus"
)

// AllBandsToken is the request-level sentinel meaning "every valid band".
const AllBandsToken = "ALL"

// ValidSatellites lists the literal and operational-alias satellite names
// the catalog accepts.
var ValidSatellites = []string{"GOES-EAST", "GOES-WEST", "GOES-16", "GOES-18", "GOES-19"}

// DefaultSatellite is applied when a request omits sat.
const DefaultSatellite = "GOES-EAST"

// ValidSensors lists the accepted sensor ids.
var ValidSensors = []string{"abi", "suvi", "glm"}

// DefaultSensor is applied when a request omits sensor.
const DefaultSensor = "abi"

// ValidLevels lists the accepted processing levels.
var ValidLevels = []string{LevelL1b, LevelL2}

// DefaultLevel is applied when a request omits nivel.
const DefaultLevel = LevelL1b

// ValidDomains lists the accepted geographic domains.
var ValidDomains = []string{DomainFD, DomainCONUS}

// ValidProducts lists every L2 product code the catalog recognizes.
var ValidProducts = []string{
	"ADP", "AOD", "ACM", "CMIP", "CODD", "CODN", "CPSD", "CPSN",
	"ACHA", "ACTP", "CTP", "ACHT", "Rainfall", "SST", "TPW",
	"DMW", "DMWV", "LST", "AVIATION_FOG", "VAA",
}

// ValidBands lists every two-digit ABI band code.
var ValidBands = func() []string {
	bands := make([]string, 16)
	for i := range bands {
		bands[i] = fmt.Sprintf("%02d", i+1)
	}
	return bands
}()

// DefaultBands is applied when a band-requiring request omits bandas.
var DefaultBands = []string{AllBandsToken}

func IsValidSatellite(s string) bool { return contains(ValidSatellites, s) }
func IsValidSensor(s string) bool    { return contains(ValidSensors, s) }
func IsValidLevel(s string) bool     { return contains(ValidLevels, s) }
func IsValidDomain(s string) bool    { return contains(ValidDomains, s) }
func IsValidProduct(p string) bool   { return contains(ValidProducts, strings.ToUpper(p)) }
func IsValidBand(b string) bool      { return contains(ValidBands, b) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ValidateBands tolerates a nil/empty list (bands not required for this
// query) and accepts the literal "ALL" sentinel, collapsing any list that
// contains it to ["ALL"]. Any other unrecognized element is a BusinessRuleError.
func ValidateBands(bands []string) ([]string, error) {
	if len(bands) == 0 {
		return bands, nil
	}
	for _, b := range bands {
		if strings.EqualFold(b, AllBandsToken) {
			return []string{AllBandsToken}, nil
		}
	}
	var invalid []string
	for _, b := range bands {
		if !IsValidBand(b) {
			invalid = append(invalid, b)
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.BusinessRule("invalid bands %v (valid: %v)", invalid, ValidBands)
	}
	return bands, nil
}

// ExpandBands maps the "ALL" sentinel to the 16-element full set; any other
// list is returned unchanged (ExpandBands(fullSet) is the identity).
func ExpandBands(bands []string) []string {
	for _, b := range bands {
		if strings.EqualFold(b, AllBandsToken) {
			full := make([]string, len(ValidBands))
			copy(full, ValidBands)
			return full
		}
	}
	return bands
}

// ValidateProducts mirrors ValidateBands for the product catalog.
func ValidateProducts(products []string) ([]string, error) {
	if len(products) == 0 {
		return products, nil
	}
	for _, p := range products {
		if strings.EqualFold(p, AllBandsToken) {
			return []string{AllBandsToken}, nil
		}
	}
	var invalid []string
	for _, p := range products {
		if !IsValidProduct(p) {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.BusinessRule("invalid products %v (valid: %v)", invalid, ValidProducts)
	}
	return upperAll(products), nil
}

// ExpandProducts maps the "ALL" sentinel to the full product catalog;
// otherwise returns the (uppercased) list unchanged.
func ExpandProducts(products []string) []string {
	for _, p := range products {
		if strings.EqualFold(p, AllBandsToken) {
			full := make([]string, len(ValidProducts))
			copy(full, ValidProducts)
			return full
		}
	}
	return upperAll(products)
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// IsCMIFamily reports whether a product code is one of the CMI-derived
// products whose file count depends on the requested bands.
func IsCMIFamily(product string) bool {
	return strings.HasPrefix(strings.ToUpper(product), "CMI")
}

// RequiresBands reports whether bands are semantically relevant for a
// query at the given level with the given (expanded) product list.
func RequiresBands(level string, products []string) bool {
	if level == LevelL1b {
		return true
	}
	for _, p := range products {
		if strings.EqualFold(p, AllBandsToken) || IsCMIFamily(p) {
			return true
		}
	}
	return false
}

// IsFullBandSet reports whether bands contains the literal "ALL" sentinel
// or is (order-independent) equal to the complete 16-element band set.
func IsFullBandSet(bands []string) bool {
	return containsToken(bands, AllBandsToken) || sameSet(bands, ValidBands)
}

// IsFullProductSet reports whether products contains the literal "ALL"
// sentinel or is equal to the complete product catalog.
func IsFullProductSet(products []string) bool {
	return containsToken(products, AllBandsToken) || sameSet(upperAll(products), ValidProducts)
}

func containsToken(list []string, token string) bool {
	for _, v := range list {
		if strings.EqualFold(v, token) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(b))
	for _, v := range b {
		seen[strings.ToUpper(v)] = true
	}
	for _, v := range a {
		if !seen[strings.ToUpper(v)] {
			return false
		}
	}
	return true
}

// DomainLetter maps a lowercase domain id to the single-character filename
// token used by both local archive members and remote object paths.
func DomainLetter(domain string) string {
	switch domain {
	case DomainCONUS:
		return "C"
	case DomainFD:
		return "F"
	default:
		return ""
	}
}

// defaultPeriodicityMinutes returns the nominal observation cadence when no
// per-item override exists: FD=10, CONUS=5 for L1b; FD=20, CONUS=5 for L2.
func defaultPeriodicityMinutes(level, domain string) int {
	switch level {
	case LevelL1b:
		if domain == DomainCONUS {
			return 5
		}
		return 10
	case LevelL2:
		if domain == DomainCONUS {
			return 5
		}
		return 20
	default:
		return 10
	}
}

// defaultWeightMB returns the nominal per-file size when no per-item
// override exists: FD=14MB/CONUS=2.5MB for L1b; FD=20MB/CONUS=10MB for L2.
func defaultWeightMB(level, domain string) float64 {
	switch level {
	case LevelL1b:
		if domain == DomainCONUS {
			return 2.5
		}
		return 14
	case LevelL2:
		if domain == DomainCONUS {
			return 10
		}
		return 20
	default:
		return 14
	}
}

// periodicityOverrides and weightOverrides hold per-(level,domain,item)
// exceptions to the defaults above. None are specified beyond the defaults
// today; the table exists so a future catalog refinement has a concrete
// home instead of hardcoding exceptions into the estimator loop.
var periodicityOverrides = map[tableKey]int{}
var weightOverrides = map[tableKey]float64{}

type tableKey struct {
	Level  string
	Domain string
	Item   string
}

func periodicityFor(level, domain, item string) int {
	if v, ok := periodicityOverrides[tableKey{level, domain, item}]; ok {
		return v
	}
	return defaultPeriodicityMinutes(level, domain)
}

func weightFor(level, domain, item string) float64 {
	if v, ok := weightOverrides[tableKey{level, domain, item}]; ok {
		return v
	}
	return defaultWeightMB(level, domain)
}

// Request is the wire shape of a historic-file request, shared by the
// acceptance-gate estimator and the query normalizer so both operate on an
// identical definition of "what was submitted".
type Request struct {
	Satellite string              `json:"sat,omitempty"`
	Sensor    string              `json:"sensor,omitempty"`
	Nivel     string              `json:"nivel,omitempty"`
	Dominio   string              `json:"dominio"`
	Productos []string            `json:"productos,omitempty"`
	Bandas    []string            `json:"bandas,omitempty"`
	Fechas    map[string][]string `json:"fechas"`
	CreadoPor string              `json:"creado_por,omitempty"`
}

// ApplyDefaults fills in satellite/sensor/level when the request omits
// them, per the catalog defaults. bandas is left as given.
func ApplyDefaults(req Request) Request {
	if req.Satellite == "" {
		req.Satellite = DefaultSatellite
	}
	if req.Sensor == "" {
		req.Sensor = DefaultSensor
	}
	if req.Nivel == "" {
		req.Nivel = DefaultLevel
	}
	return req
}

// EstimateSummary is the acceptance-gate estimate of how much work a
// request represents.
type EstimateSummary struct {
	FileCount         int     `json:"file_count"`
	TotalSizeMB       float64 `json:"total_size_mb"`
	AverageFileSizeMB float64 `json:"average_file_size_mb"`
	TotalSizeGB       float64 `json:"total_size_gb"`
}

type estimatorItem struct {
	name        string
	periodicity int
	weight      float64
}

// EstimateFilesSummary implements the §4.1 file-count/size algorithm: for
// every expanded day, every requested time range, and every requested item
// (band for L1b, product for L2, with CMI-family products expanding to one
// item per requested band), count the minutes at which an observation is
// produced and sum counts/weights across items, ranges and days.
func EstimateFilesSummary(req Request) (EstimateSummary, error) {
	req = ApplyDefaults(req)
	if !IsValidDomain(req.Dominio) {
		return EstimateSummary{}, apperr.BusinessRule("invalid domain %q", req.Dominio)
	}

	items, err := resolveItems(req)
	if err != nil {
		return EstimateSummary{}, err
	}

	var fileCount int
	var totalMB float64
	for dateKey, ranges := range req.Fechas {
		days, err := timeutil.ExpandDateKey(dateKey)
		if err != nil {
			return EstimateSummary{}, apperr.BusinessRule("bad date key %q: %v", dateKey, err)
		}
		for _, rangeStr := range ranges {
			tr, err := timeutil.ParseTimeRange(rangeStr)
			if err != nil {
				return EstimateSummary{}, apperr.BusinessRule("bad time range %q: %v", rangeStr, err)
			}
			for range days {
				for _, it := range items {
					n := countOccurrences(req.Dominio, tr, it.periodicity)
					fileCount += n
					totalMB += float64(n) * it.weight
				}
			}
		}
	}

	summary := EstimateSummary{FileCount: fileCount, TotalSizeMB: totalMB, TotalSizeGB: totalMB / 1024.0}
	if fileCount > 0 {
		summary.AverageFileSizeMB = totalMB / float64(fileCount)
	}
	return summary, nil
}

// countOccurrences counts minutes in [start,end] (both inclusive) at which
// an observation is produced. Midnight-wrap arithmetic is not implemented:
// the query normalizer rejects start>end, so that branch is unreachable.
func countOccurrences(domain string, tr timeutil.TimeRange, periodicity int) int {
	count := 0
	for m := tr.StartMin; m <= tr.EndMin; m++ {
		switch domain {
		case DomainCONUS:
			if mod := m % 10; mod == 1 || mod == 6 {
				count++
			}
		default:
			if periodicity > 0 && m%periodicity == 0 {
				count++
			}
		}
	}
	return count
}

func resolveItems(req Request) ([]estimatorItem, error) {
	switch req.Nivel {
	case LevelL1b:
		bands := req.Bandas
		if len(bands) == 0 {
			bands = DefaultBands
		}
		bands, err := ValidateBands(bands)
		if err != nil {
			return nil, err
		}
		expanded := ExpandBands(bands)
		weight := weightFor(LevelL1b, req.Dominio, "")
		periodicity := periodicityFor(LevelL1b, req.Dominio, "")
		items := make([]estimatorItem, 0, len(expanded))
		for _, b := range expanded {
			items = append(items, estimatorItem{name: "C" + b, periodicity: periodicity, weight: weight})
		}
		return items, nil

	case LevelL2:
		if len(req.Productos) == 0 {
			return nil, apperr.BusinessRule("L2 requests require at least one product")
		}
		products, err := ValidateProducts(req.Productos)
		if err != nil {
			return nil, err
		}
		expandedProducts := ExpandProducts(products)

		bands := req.Bandas
		if len(bands) == 0 {
			bands = DefaultBands
		}
		bands, err = ValidateBands(bands)
		if err != nil {
			return nil, err
		}
		expandedBands := ExpandBands(bands)

		var items []estimatorItem
		for _, p := range expandedProducts {
			if IsCMIFamily(p) {
				weight := weightFor(LevelL2, req.Dominio, "CMIP")
				periodicity := periodicityFor(LevelL2, req.Dominio, "CMIP")
				for _, b := range expandedBands {
					items = append(items, estimatorItem{name: p + "_C" + b, periodicity: periodicity, weight: weight})
				}
				continue
			}
			items = append(items, estimatorItem{
				name:        p,
				periodicity: periodicityFor(LevelL2, req.Dominio, p),
				weight:      weightFor(LevelL2, req.Dominio, p),
			})
		}
		return items, nil

	default:
		return nil, apperr.BusinessRule("invalid nivel %q", req.Nivel)
	}
}

// SatelliteBucketNumber resolves a satellite name to its noaa-goesNN
// bucket number. Operational aliases depend on firstDay (the date of the
// first requested day key): GOES-EAST resolves to 19 once firstDay is on
// or after cutover, else 16; GOES-WEST always resolves to 18.
func SatelliteBucketNumber(satellite string, firstDay, cutover time.Time) (int, error) {
	switch strings.ToUpper(satellite) {
	case "GOES-16":
		return 16, nil
	case "GOES-18":
		return 18, nil
	case "GOES-19":
		return 19, nil
	case "GOES-EAST":
		if !firstDay.Before(cutover) {
			return 19, nil
		}
		return 16, nil
	case "GOES-WEST":
		return 18, nil
	default:
		return 0, apperr.BusinessRule("invalid satellite %q", satellite)
	}
}
