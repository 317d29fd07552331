package formatter

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Target names where a report goes. Google Sheets exports use Workbook and Worksheet,
// file exports use File (without extension) and FileSheet under the exporter's directory.
type Target struct {
	Workbook  string
	Worksheet string
	File      string
	FileSheet string
}

// Exporter writes a sheet to a target and returns where it ended up.
type Exporter interface {
	Export(ctx context.Context, target Target, sheet Sheet) (string, error)
}

// SheetsExporter exports to Google Sheets.
type SheetsExporter struct {
	Writer *SheetsWriter
}

func (e SheetsExporter) Export(ctx context.Context, target Target, sheet Sheet) (string, error) {
	return e.Writer.Write(ctx, target.Workbook, target.Worksheet, sheet)
}

// Format is a local file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FileExporter exports to {Dir}/{File}.{Format}.
type FileExporter struct {
	Dir    string
	Format Format
}

func (e FileExporter) Export(ctx context.Context, target Target, sheet Sheet) (string, error) {
	if target.FileSheet != "" {
		sheet.Title = target.FileSheet
	}
	format := e.Format
	if format == "" {
		format = FormatXLSX
	}
	path := filepath.Join(e.Dir, target.File+"."+string(format))

	switch format {
	case FormatCSV:
		return WriteCSVFile(sheet, path)
	case FormatJSON:
		return WriteJSONFile(sheet, path)
	default:
		return WriteXLSX(sheet, path)
	}
}

// Dated replaces {date} in title with the day of t.
func Dated(title string, t time.Time) string {
	return strings.ReplaceAll(title, "{date}", t.Format(time.DateOnly))
}
