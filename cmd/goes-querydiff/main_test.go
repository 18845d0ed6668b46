package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubtractRemovesPointWithinRange(t *testing.T) {
	base := []interval{{a: 600, b: 720}} // 10:00-12:00
	excl := []interval{{a: 660, b: 660}} // 11:00
	got := subtract(base, excl)
	assert.Equal(t, []interval{{a: 600, b: 659}, {a: 661, b: 720}}, got)
}

func TestSubtractRemovesFullOverlap(t *testing.T) {
	base := []interval{{a: 600, b: 720}}
	excl := []interval{{a: 500, b: 800}}
	got := subtract(base, excl)
	assert.Empty(t, got)
}

func TestSubtractDisjointLeavesBaseUntouched(t *testing.T) {
	base := []interval{{a: 600, b: 660}}
	excl := []interval{{a: 700, b: 720}}
	got := subtract(base, excl)
	assert.Equal(t, []interval{{a: 600, b: 660}}, got)
}

func TestFormatIntervalsPrefersPoints(t *testing.T) {
	out := formatIntervals([]interval{{a: 720, b: 720}, {a: 600, b: 660}})
	assert.Equal(t, []string{"12:00", "10:00-11:00"}, out)
}

func TestBuildRemainingCopiesCarriedFieldsAndComputesFechas(t *testing.T) {
	base := map[string]any{
		"sat":     "GOES-16",
		"nivel":   "L1b",
		"dominio": "fd",
		"fechas": map[string]any{
			"20231026": []any{"10:00-12:00"},
		},
	}
	excl := map[string]any{
		"fechas": map[string]any{
			"20231026": []any{"11:00"},
		},
	}

	out := buildRemaining(base, excl)
	assert.Equal(t, "GOES-16", out["sat"])
	assert.Equal(t, "L1b", out["nivel"])

	fechas := out["fechas"].(map[string][]string)
	assert.Equal(t, []string{"10:00-10:59", "11:01-12:00"}, fechas["20231026"])
}
