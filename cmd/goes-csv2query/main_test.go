package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVSkipsHeaderRow(t *testing.T) {
	input := "Fecha,Horarios\n10/26/2023,12:00;14:00-15:00\n"
	fechas, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"12:00", "14:00-15:00"}, fechas["20231026"])
}

func TestParseCSVAcceptsDataOnlyFirstRow(t *testing.T) {
	input := "10/26/2023,12:00\n11/1/2023,06:30-09:30:12:00-15:00\n"
	fechas, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"12:00"}, fechas["20231026"])
	assert.Equal(t, []string{"06:30-09:30", "12:00-15:00"}, fechas["20231101"])
}

func TestParseCSVRejectsMalformedDate(t *testing.T) {
	input := "notadate,12:00\ngarbage,14:00\n"
	_, err := parseCSV(strings.NewReader(input))
	require.Error(t, err)
}

func TestParseDateMMDDYYYY(t *testing.T) {
	ymd, err := parseDateMMDDYYYY("7/4/2019")
	require.NoError(t, err)
	assert.Equal(t, "20190704", ymd)

	_, err = parseDateMMDDYYYY("13/40/2019")
	assert.Error(t, err)
}

func TestNormalizeNivel(t *testing.T) {
	n, err := normalizeNivel("l1b")
	require.NoError(t, err)
	assert.Equal(t, "L1b", n)

	n, err = normalizeNivel("Level2")
	require.NoError(t, err)
	assert.Equal(t, "L2", n)

	_, err = normalizeNivel("L3")
	assert.Error(t, err)
}

func TestSplitNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"ACHA", "CMIP"}, splitNonEmpty("ACHA, CMIP ,"))
	assert.Nil(t, splitNonEmpty(""))
}
