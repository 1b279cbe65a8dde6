package search

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// maxCellWidth truncates table cells so one long note does not blow
// out the terminal.
const maxCellWidth = 40

// Headers returns the column headers: display names normally, raw
// keys with useKeys.
func Headers(sch *schema.Schema, cols []string, useKeys bool) []string {
	headers := make([]string, len(cols))
	for i, key := range cols {
		headers[i] = key
		if !useKeys {
			if f, ok := sch.ByKey(key); ok && f.Name != "" {
				headers[i] = f.Name
			}
		}
	}
	return headers
}

// Rows renders records as display cells for the selected columns:
// enum/set ids become "label (id)", and HTML-looking cells are
// stripped to their text for table output.
func Rows(sch *schema.Schema, cols []string, records []map[string]string, stripHTML bool) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, key := range cols {
			cell := sch.FormatOptionValue(key, rec[key])
			if stripHTML && looksLikeHTML(cell) {
				cell = StripHTML(cell)
			}
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteTable writes an aligned text table. Column widths follow
// display width (East Asian wide runes count as two cells) so aligned
// output stays aligned for accented and CJK names.
func WriteTable(w io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = displayWidth(h)
	}
	clipped := make([][]string, len(rows))
	for r, row := range rows {
		clipped[r] = make([]string, len(row))
		for i, cell := range row {
			cell = strings.ReplaceAll(cell, "\n", " ")
			if displayWidth(cell) > maxCellWidth {
				cell = truncate(cell, maxCellWidth-1) + "…"
			}
			clipped[r][i] = cell
			if i < len(widths) && displayWidth(cell) > widths[i] {
				widths[i] = displayWidth(cell)
			}
		}
	}

	if err := writeRow(w, headers, widths); err != nil {
		return err
	}
	rule := make([]string, len(headers))
	for i := range rule {
		rule[i] = strings.Repeat("-", widths[i])
	}
	if err := writeRow(w, rule, widths); err != nil {
		return err
	}
	for _, row := range clipped {
		if err := writeRow(w, row, widths); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, cells []string, widths []int) error {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := 0
		if i < len(widths) {
			pad = widths[i] - displayWidth(cell)
			if pad < 0 {
				pad = 0
			}
		}
		if i == len(cells)-1 {
			parts[i] = cell
		} else {
			parts[i] = cell + strings.Repeat(" ", pad)
		}
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	return err
}

// displayWidth counts terminal cells, honoring East Asian wide and
// fullwidth runes.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func truncate(s string, maxCells int) string {
	n := 0
	for i, r := range s {
		w := 1
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w = 2
		}
		if n+w > maxCells {
			return s[:i]
		}
		n += w
	}
	return s
}

// WriteJSON writes records as a JSON array of objects with keys in
// column order.
func WriteJSON(w io.Writer, sch *schema.Schema, cols []string, useKeys bool, records []map[string]string) error {
	headers := Headers(sch, cols, useKeys)

	var sb strings.Builder
	sb.WriteString("[")
	for r, rec := range records {
		if r > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n  {")
		for i, key := range cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			name, err := json.Marshal(headers[i])
			if err != nil {
				return err
			}
			value, err := json.Marshal(rec[key])
			if err != nil {
				return err
			}
			sb.Write(name)
			sb.WriteString(": ")
			sb.Write(value)
		}
		sb.WriteString("}")
	}
	if len(records) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("]\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteCSV writes records as RFC 4180 CSV with a header row.
func WriteCSV(w io.Writer, sch *schema.Schema, cols []string, useKeys bool, records []map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers(sch, cols, useKeys)); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, key := range cols {
			row[i] = rec[key]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
