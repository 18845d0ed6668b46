// Command goes-querydiff computes the outstanding time ranges in a base
// request JSON once a second (already-satisfied) request JSON's fechas are
// subtracted from it, by discrete inclusive minute. Useful for building a
// recovery request from a partially-completed one.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "goes-querydiff",
		Usage: "Subtract one query's fechas from another, by discrete minute",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Required: true, Usage: "request JSON to subtract from"},
			&cli.StringFlag{Name: "excluir", Required: true, Usage: "request JSON whose time ranges are already satisfied"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output request JSON"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	base, err := loadRequest(c.String("base"))
	if err != nil {
		return fmt.Errorf("reading base query: %w", err)
	}
	excl, err := loadRequest(c.String("excluir"))
	if err != nil {
		return fmt.Errorf("reading exclude query: %w", err)
	}

	remaining := buildRemaining(base, excl)

	out, err := json.MarshalIndent(remaining, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding remaining query: %w", err)
	}
	if err := os.WriteFile(c.String("out"), out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.String("out"), err)
	}

	fmt.Printf("OK: wrote %s\n", c.String("out"))
	return nil
}

func loadRequest(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req map[string]any
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// carriedFields are copied verbatim from the base query into the result;
// fechas is recomputed separately.
var carriedFields = []string{"sat", "nivel", "dominio", "bandas", "creado_por", "productos"}

func buildRemaining(base, excl map[string]any) map[string]any {
	out := make(map[string]any)
	for _, key := range carriedFields {
		if v, ok := base[key]; ok && v != nil {
			out[key] = v
		}
	}

	baseFechas := fechasOf(base)
	exclFechas := fechasOf(excl)

	result := make(map[string][]string)
	for fecha, rangos := range baseFechas {
		baseInts := make([]interval, 0, len(rangos))
		for _, s := range rangos {
			baseInts = append(baseInts, parseInterval(s))
		}
		exclInts := make([]interval, 0, len(exclFechas[fecha]))
		for _, s := range exclFechas[fecha] {
			exclInts = append(exclInts, parseInterval(s))
		}

		remaining := subtract(baseInts, exclInts)
		if len(remaining) > 0 {
			result[fecha] = formatIntervals(remaining)
		}
	}

	out["fechas"] = result
	return out
}

func fechasOf(req map[string]any) map[string][]string {
	raw, ok := req["fechas"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		strs := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				strs = append(strs, s)
			}
		}
		out[k] = strs
	}
	return out
}

type interval struct{ a, b int } // minute offsets within a day, inclusive

func parseMinutes(s string) int {
	parts := strings.Split(s, ":")
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

func parseInterval(s string) interval {
	if idx := strings.Index(s, "-"); idx >= 0 {
		return interval{a: parseMinutes(s[:idx]), b: parseMinutes(s[idx+1:])}
	}
	t := parseMinutes(s)
	return interval{a: t, b: t}
}

func formatMinutes(t int) string {
	return fmt.Sprintf("%02d:%02d", t/60, t%60)
}

func formatIntervals(ints []interval) []string {
	out := make([]string, 0, len(ints))
	for _, iv := range ints {
		if iv.a == iv.b {
			out = append(out, formatMinutes(iv.a))
		} else {
			out = append(out, formatMinutes(iv.a)+"-"+formatMinutes(iv.b))
		}
	}
	return out
}

func mergeIntervals(ints []interval) []interval {
	if len(ints) == 0 {
		return nil
	}
	sorted := make([]interval, len(ints))
	copy(sorted, ints)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].a != sorted[j].a {
			return sorted[i].a < sorted[j].a
		}
		return sorted[i].b < sorted[j].b
	})

	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.a <= last.b {
			if iv.b > last.b {
				last.b = iv.b
			}
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

// subtract removes every minute covered by excl from base, both endpoints
// inclusive, returning the remaining disjoint segments.
func subtract(base, excl []interval) []interval {
	if len(base) == 0 {
		return nil
	}
	base = mergeIntervals(base)
	excl = mergeIntervals(excl)

	var result []interval
	for _, b := range base {
		segments := []interval{b}
		for _, e := range excl {
			var next []interval
			for _, s := range segments {
				if e.b < s.a || e.a > s.b {
					next = append(next, s)
					continue
				}
				if leftEnd := e.a - 1; leftEnd >= s.a {
					next = append(next, interval{a: s.a, b: leftEnd})
				}
				if rightStart := e.b + 1; rightStart <= s.b {
					next = append(next, interval{a: rightStart, b: s.b})
				}
			}
			segments = next
			if len(segments) == 0 {
				break
			}
		}
		result = append(result, segments...)
	}
	return mergeIntervals(result)
}
