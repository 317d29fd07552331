// package formatter renders book, holding, author and movie rows as CSV, JSON, terminal tables, XLSX files and Google Sheets
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Sheet is a titled grid of rows under a header line.
type Sheet struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewSheet renders records under the given column names.
func NewSheet[T models.Record](title string, columns []string, records []T) Sheet {
	return Sheet{Title: title, Headers: columns, Rows: models.Rows(records, columns)}
}

// Empty reports whether the sheet has no data rows.
func (s Sheet) Empty() bool {
	return len(s.Rows) == 0
}

// Grid returns the capitalized headers followed by the rows.
func (s Sheet) Grid() [][]string {
	grid := make([][]string, 0, len(s.Rows)+1)
	headers := make([]string, len(s.Headers))
	for i, h := range s.Headers {
		headers[i] = Capitalize(h)
	}
	grid = append(grid, headers)
	return append(grid, s.Rows...)
}

// Capitalize upper-cases the first letter and lower-cases the rest, turning underscores into spaces.
func Capitalize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ExportToCSV converts a sheet to CSV with a header line.
func ExportToCSV(sheet Sheet) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	for _, record := range sheet.Grid() {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a sheet to a JSON array of objects keyed by header.
func ExportToJSON(sheet Sheet) ([]byte, error) {
	objects := make([]map[string]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		obj := make(map[string]string, len(sheet.Headers))
		for i, h := range sheet.Headers {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		objects = append(objects, obj)
	}
	return shared.MarshalJSON(objects, true)
}

// RenderTable writes the sheet as a rounded terminal table.
func RenderTable(w io.Writer, sheet Sheet) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	if sheet.Title != "" {
		t.SetTitle(sheet.Title)
	}

	grid := sheet.Grid()
	t.AppendHeader(tableRow(grid[0]))
	for _, row := range grid[1:] {
		t.AppendRow(tableRow(row))
	}
	t.Render()
}

func tableRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// WriteCSVFile writes the sheet to path, creating parent directories.
func WriteCSVFile(sheet Sheet, path string) (string, error) {
	data, err := ExportToCSV(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}
	return path, writeFile(path, data)
}

// WriteJSONFile writes the sheet to path as JSON objects.
func WriteJSONFile(sheet Sheet, path string) (string, error) {
	data, err := ExportToJSON(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}
	return path, writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
