// Command goes-csv2query converts a two-column CSV (date, semicolon
// separated time ranges) into a request JSON document accepted by
// internal/query.Normalize, for batch-submitting recovery work.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

var timePattern = regexp.MustCompile(`(\d{1,2}:\d{2})(?:\s*-\s*(\d{1,2}:\d{2}))?`)

func main() {
	app := &cli.App{
		Name:  "goes-csv2query",
		Usage: "Convert a date/time-range CSV into a historic-query request JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sat", Value: "GOES-16"},
			&cli.StringFlag{Name: "nivel", Required: true, Usage: "L1b or L2"},
			&cli.StringFlag{Name: "dominio", Required: true, Usage: "fd or conus"},
			&cli.StringFlag{Name: "productos", Usage: "comma-separated product codes, e.g. ACHA,CMIP"},
			&cli.StringFlag{Name: "bandas", Usage: "comma-separated band codes, e.g. 13,02 or ALL"},
			&cli.StringFlag{Name: "creado-por", Required: true, Usage: "requesting user's email or handle"},
			&cli.StringFlag{Name: "out", Value: "historic_request.json"},
		},
		Action: run,
		ArgsUsage: "<csv-path>",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required <csv-path> argument")
	}
	csvPath := c.Args().Get(0)

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", csvPath, err)
	}
	defer f.Close()

	fechas, err := parseCSV(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", csvPath, err)
	}

	nivel, err := normalizeNivel(c.String("nivel"))
	if err != nil {
		return err
	}

	req := map[string]any{
		"sat":         c.String("sat"),
		"nivel":       nivel,
		"dominio":     c.String("dominio"),
		"fechas":      fechas,
		"creado_por":  c.String("creado-por"),
	}
	if productos := splitNonEmpty(c.String("productos")); len(productos) > 0 {
		req["productos"] = productos
	}
	if bandas := splitNonEmpty(c.String("bandas")); len(bandas) > 0 {
		req["bandas"] = bandas
	}

	out, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding request JSON: %w", err)
	}
	if err := os.WriteFile(c.String("out"), out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.String("out"), err)
	}

	fmt.Printf("wrote %s\n", c.String("out"))
	return nil
}

// parseCSV reads rows of (MM/DD/YYYY, time-ranges) and accumulates a
// YYYYMMDD -> []time-range map. A first row that fails to parse as a date
// is treated as a header and skipped.
func parseCSV(r io.Reader) (map[string][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	fechas := make(map[string][]string)
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rowNum++
		if len(row) == 0 {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected at least 2 columns (date, time ranges)", rowNum)
		}

		ymd, dateErr := parseDateMMDDYYYY(row[0])
		if rowNum == 1 && dateErr != nil {
			continue // header row
		}
		if dateErr != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, dateErr)
		}

		times, err := parseTimesCell(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if len(times) == 0 {
			continue
		}
		fechas[ymd] = append(fechas[ymd], times...)
	}
	return fechas, nil
}

func parseDateMMDDYYYY(s string) (string, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid date %q", s)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return "", fmt.Errorf("invalid date %q", s)
		}
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	dt := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if int(dt.Month()) != m || dt.Day() != d {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return dt.Format("20060102"), nil
}

// parseTimesCell extracts every HH:MM or HH:MM-HH:MM token from a free-form
// cell (tokens may run together without separators), deduplicating order of
// first appearance.
func parseTimesCell(cell string) ([]string, error) {
	if cell == "" {
		return nil, nil
	}
	matches := timePattern.FindAllStringSubmatch(cell, -1)
	var times []string
	seen := make(map[string]bool)
	for _, m := range matches {
		start, end := m[1], m[2]
		if _, err := time.Parse("15:04", padTime(start)); err != nil {
			return nil, fmt.Errorf("invalid time %q", start)
		}
		token := start
		if end != "" {
			if _, err := time.Parse("15:04", padTime(end)); err != nil {
				return nil, fmt.Errorf("invalid time %q", end)
			}
			token = start + "-" + end
		}
		if !seen[token] {
			seen[token] = true
			times = append(times, token)
		}
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("no valid time tokens in %q", cell)
	}
	return times, nil
}

// padTime zero-pads a single-digit hour so time.Parse accepts "6:30".
func padTime(s string) string {
	if idx := strings.Index(s, ":"); idx == 1 {
		return "0" + s
	}
	return s
}

func normalizeNivel(n string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(n)) {
	case "L1B", "L1BLEVEL", "LEVEL1B":
		return "L1b", nil
	case "L2", "LEVEL2":
		return "L2", nil
	default:
		return "", fmt.Errorf("invalid nivel %q, expected L1b or L2", n)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
