// Package query implements the §3/§4.2 data model: the external request
// shape, its normalized canonical form, and the normalizer that validates
// and expands one into the other.
package query

import (
	"sort"
	"strings"
	"time"

	"goesretrieval/internal/apperr"
	"goesretrieval/internal/catalog"
	"goesretrieval/internal/timeutil"
)

// Request is an alias of catalog.Request: the normalizer and the
// estimator operate on the identical wire shape.
type Request = catalog.Request

// CanonicalQuery is the normalized internal form of a Request: bands
// expanded, dates converted to YYYYJJJ day keys, and totals computed.
type CanonicalQuery struct {
	Satellite             string              `json:"sat"`
	Sensor                string              `json:"sensor"`
	Nivel                 string              `json:"nivel"`
	Dominio               string              `json:"dominio"`
	Productos             []string            `json:"productos,omitempty"`
	Bandas                []string            `json:"bandas,omitempty"`
	Fechas                map[string][]string `json:"fechas"`
	TotalHoras            float64             `json:"total_horas"`
	TotalFechasExpandidas int                 `json:"total_fechas_expandidas"`
	OriginalRequest       Request             `json:"original_request"`
}

// RequiresBands reports whether this query's band list is semantically
// meaningful given its level and products.
func (q CanonicalQuery) RequiresBands() bool {
	return catalog.RequiresBands(q.Nivel, q.Productos)
}

// RequestedAllBands reports whether bands was submitted as (or expands to)
// the full 16-element set.
func (q CanonicalQuery) RequestedAllBands() bool {
	return catalog.IsFullBandSet(q.Bandas)
}

// RequestedAllProducts reports whether productos was submitted as (or
// expands to) the full product catalog.
func (q CanonicalQuery) RequestedAllProducts() bool {
	return catalog.IsFullProductSet(q.Productos)
}

// SortedDayKeys returns the query's YYYYJJJ day keys in ascending order.
func (q CanonicalQuery) SortedDayKeys() []string {
	keys := make([]string, 0, len(q.Fechas))
	for k := range q.Fechas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize implements the §4.2 contract: apply catalog defaults, validate
// dates/times, expand date ranges day-by-day into YYYYJJJ keys, expand
// bands, and compute totals, while preserving the original YYYYMMDD-keyed
// request for recovery reconstruction.
func Normalize(req Request) (CanonicalQuery, error) {
	original := req
	req = catalog.ApplyDefaults(req)

	if !catalog.IsValidSatellite(req.Satellite) {
		return CanonicalQuery{}, apperr.BusinessRule("invalid satellite %q", req.Satellite)
	}
	if !catalog.IsValidSensor(req.Sensor) {
		return CanonicalQuery{}, apperr.BusinessRule("invalid sensor %q", req.Sensor)
	}
	if !catalog.IsValidLevel(req.Nivel) {
		return CanonicalQuery{}, apperr.BusinessRule("invalid level %q", req.Nivel)
	}
	if !catalog.IsValidDomain(req.Dominio) {
		return CanonicalQuery{}, apperr.BusinessRule("invalid domain %q", req.Dominio)
	}

	products, err := catalog.ValidateProducts(req.Productos)
	if err != nil {
		return CanonicalQuery{}, err
	}

	bands := req.Bandas
	if len(bands) == 0 && catalog.RequiresBands(req.Nivel, catalog.ExpandProducts(products)) {
		bands = catalog.DefaultBands
	}
	bands, err = catalog.ValidateBands(bands)
	if err != nil {
		return CanonicalQuery{}, err
	}
	expandedBands := catalog.ExpandBands(bands)

	if len(req.Fechas) == 0 {
		return CanonicalQuery{}, apperr.Validation("fechas must not be empty")
	}

	fechas := make(map[string][]string)
	originalFechas := make(map[string][]string)
	for k, v := range req.Fechas {
		originalFechas[k] = append([]string{}, v...)
	}
	var totalHoras float64

	for dateKey, ranges := range req.Fechas {
		last, err := timeutil.LastDayOfKey(dateKey)
		if err != nil {
			return CanonicalQuery{}, apperr.BusinessRule("malformed date key %q: %v", dateKey, err)
		}
		if last.After(time.Now().UTC().Truncate(24 * time.Hour)) {
			return CanonicalQuery{}, apperr.BusinessRule("date key %q is in the future", dateKey)
		}

		days, err := timeutil.ExpandDateKey(dateKey)
		if err != nil {
			return CanonicalQuery{}, apperr.BusinessRule("malformed date key %q: %v", dateKey, err)
		}

		var parsedRanges []timeutil.TimeRange
		for _, r := range ranges {
			tr, err := timeutil.ParseTimeRange(r)
			if err != nil {
				return CanonicalQuery{}, apperr.BusinessRule("bad time range %q: %v", r, err)
			}
			parsedRanges = append(parsedRanges, tr)
			totalHoras += tr.DurationHours() * float64(len(days))
		}

		for _, day := range days {
			julian, err := timeutil.YMDToJulian(day)
			if err != nil {
				return CanonicalQuery{}, apperr.BusinessRule("malformed date %q: %v", day, err)
			}
			fechas[julian] = append(fechas[julian], ranges...)
		}
	}

	canonical := CanonicalQuery{
		Satellite:             req.Satellite,
		Sensor:                strings.ToLower(req.Sensor),
		Nivel:                 req.Nivel,
		Dominio:               strings.ToLower(req.Dominio),
		Productos:             products,
		Bandas:                expandedBands,
		Fechas:                fechas,
		TotalHoras:            totalHoras,
		TotalFechasExpandidas: len(fechas),
		OriginalRequest: Request{
			Satellite: original.Satellite,
			Sensor:    original.Sensor,
			Nivel:     original.Nivel,
			Dominio:   original.Dominio,
			Productos: original.Productos,
			Bandas:    original.Bandas,
			Fechas:    originalFechas,
			CreadoPor: original.CreadoPor,
		},
	}
	return canonical, nil
}
