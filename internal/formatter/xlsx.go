package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/desertthunder/shelfx/internal/shared"
)

const (
	minColumnWidth = 10
	maxSheetName   = 31
)

var sheetNameReplacer = strings.NewReplacer(":", "-", `\`, "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

// SheetName makes name usable as an XLSX worksheet title.
func SheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if utf8.RuneCountInString(name) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

// ColumnWidths sizes each column to its longest line, never below ten characters.
func ColumnWidths(sheet Sheet) []float64 {
	widths := make([]float64, len(sheet.Headers))
	for i := range widths {
		widths[i] = minColumnWidth
	}
	for _, row := range sheet.Rows {
		for i, value := range row {
			if i >= len(widths) {
				break
			}
			for line := range strings.SplitSeq(value, "\n") {
				if n := float64(utf8.RuneCountInString(line)); n > widths[i] {
					widths[i] = n
				}
			}
		}
	}
	return widths
}

// WriteXLSX saves the sheet as a single-worksheet workbook at path.
//
// Nothing is written for an empty sheet; [shared.ErrNothingToExport] is returned instead.
func WriteXLSX(sheet Sheet, path string) (string, error) {
	if sheet.Empty() {
		return "", shared.ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet.Title)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return "", fmt.Errorf("failed to name worksheet: %w", err)
	}

	for i, record := range sheet.Grid() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", err
		}
		row := make([]any, len(record))
		for j, v := range record {
			row[j] = v
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	for i, width := range ColumnWidths(sheet) {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return "", err
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return "", fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

// ReadXLSX loads a worksheet written by [WriteXLSX]. The first row becomes the lower-cased headers.
// An empty worksheet name reads the first worksheet.
func ReadXLSX(path, worksheet string) (Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	defer f.Close()

	if worksheet == "" {
		worksheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(worksheet)
	if err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sheet := Sheet{Title: worksheet}
	if len(rows) == 0 {
		return sheet, nil
	}
	for _, h := range rows[0] {
		sheet.Headers = append(sheet.Headers, strings.ReplaceAll(strings.ToLower(h), " ", "_"))
	}
	for _, row := range rows[1:] {
		padded := make([]string, len(sheet.Headers))
		copy(padded, row)
		sheet.Rows = append(sheet.Rows, padded)
	}
	return sheet, nil
}
