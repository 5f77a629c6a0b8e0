package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func formatTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			width := 0
			if i < len(widths) && i < len(cells)-1 {
				width = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", width, cell)
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// table is a named result set rendered in the selected output format. In
// json and yaml each row becomes an object keyed by header under the table
// name; quiet prints only the keys.
type table struct {
	name    string
	headers []string
	rows    [][]string
	keys    []string
}

func newTable(name string, headers ...string) *table {
	return &table{name: name, headers: headers}
}

func (t *table) add(key string, cells ...string) {
	t.keys = append(t.keys, key)
	t.rows = append(t.rows, cells)
}

func (t *table) records() map[string][]map[string]string {
	recs := make([]map[string]string, len(t.rows))
	for i, row := range t.rows {
		rec := make(map[string]string, len(t.headers))
		for j, h := range t.headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		recs[i] = rec
	}
	return map[string][]map[string]string{t.name: recs}
}

func (t *table) render(w io.Writer, format string) error {
	switch format {
	case "json":
		return formatJSON(w, t.records())
	case "yaml":
		return formatYAML(w, t.records())
	case "csv":
		return formatCSV(w, t.headers, t.rows)
	case "quiet":
		for _, k := range t.keys {
			fmt.Fprintln(w, k)
		}
		return nil
	case "table", "":
		formatTable(w, t.headers, t.rows)
		return nil
	default:
		return fmt.Errorf("unknown format %q (use table, json, csv, yaml or quiet)", format)
	}
}

// output renders a single object: structured formats encode v, quiet prints
// quietVal, and table falls back to JSON.
func output(w io.Writer, v any, quietVal string) error {
	switch flagFmt {
	case "quiet":
		fmt.Fprintln(w, quietVal)
		return nil
	case "yaml":
		return formatYAML(w, v)
	default:
		return formatJSON(w, v)
	}
}
