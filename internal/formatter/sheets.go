package formatter

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/desertthunder/shelfx/internal/shared"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// SheetsScopes are the OAuth scopes needed to find, create and write spreadsheets.
var SheetsScopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// SheetsWriter writes sheets into Google Sheets workbooks found by title.
type SheetsWriter struct {
	sheets *sheets.Service
	drive  *drive.Service
	logger *log.Logger
}

// NewSheetsWriter wraps already built Sheets and Drive clients.
func NewSheetsWriter(sheetsSvc *sheets.Service, driveSvc *drive.Service, logger *log.Logger) *SheetsWriter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SheetsWriter{sheets: sheetsSvc, drive: driveSvc, logger: shared.WithLogger(logger, "service", "sheets")}
}

// DialSheets builds both API clients with the same client options, e.g. option.WithHTTPClient for an OAuth
// token or option.WithCredentialsFile for a service account.
func DialSheets(ctx context.Context, logger *log.Logger, opts ...option.ClientOption) (*SheetsWriter, error) {
	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %v", shared.ErrServiceUnavailable, err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: drive client: %v", shared.ErrServiceUnavailable, err)
	}
	return NewSheetsWriter(sheetsSvc, driveSvc, logger), nil
}

// Write replaces the contents of worksheet in workbook with the sheet, creating both when missing.
// It returns the spreadsheet URL.
func (w *SheetsWriter) Write(ctx context.Context, workbook, worksheet string, sheet Sheet) (string, error) {
	if sheet.Empty() {
		return "", shared.ErrNothingToExport
	}

	grid := sheet.Grid()
	rows, cols := int64(len(grid)), int64(len(grid[0]))

	id, err := w.workbook(ctx, workbook)
	if err != nil {
		return "", err
	}
	if err := w.worksheet(ctx, id, worksheet, rows, cols); err != nil {
		return "", err
	}

	values := make([][]any, len(grid))
	for i, record := range grid {
		values[i] = make([]any, len(record))
		for j, v := range record {
			values[i][j] = v
		}
	}

	_, err = w.sheets.Spreadsheets.Values.BatchUpdate(id, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             []*sheets.ValueRange{{Range: a1(worksheet), Values: values}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: write %s: %v", shared.ErrAPIRequest, worksheet, err)
	}

	w.logger.Info("worksheet written", "workbook", workbook, "worksheet", worksheet, "rows", rows)
	return "https://docs.google.com/spreadsheets/d/" + id, nil
}

// workbook finds a spreadsheet by exact title or creates it.
func (w *SheetsWriter) workbook(ctx context.Context, title string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(title, "'", `\'`), spreadsheetMimeType)
	list, err := w.drive.Files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: find workbook %q: %v", shared.ErrAPIRequest, title, err)
	}
	for _, f := range list.Files {
		if f.Name == title {
			return f.Id, nil
		}
	}

	created, err := w.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: create workbook %q: %v", shared.ErrAPIRequest, title, err)
	}
	w.logger.Info("workbook created", "workbook", title, "id", created.SpreadsheetId)
	return created.SpreadsheetId, nil
}

// worksheet makes an empty worksheet of exactly rows x cols available.
func (w *SheetsWriter) worksheet(ctx context.Context, id, title string, rows, cols int64) error {
	book, err := w.sheets.Spreadsheets.Get(id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: open workbook: %v", shared.ErrAPIRequest, err)
	}

	var existing *sheets.SheetProperties
	for _, s := range book.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			existing = s.Properties
			break
		}
	}

	if existing == nil {
		return w.update(ctx, id, &sheets.Request{AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{
				Title:          title,
				GridProperties: &sheets.GridProperties{RowCount: rows, ColumnCount: cols},
			},
		}})
	}

	if _, err := w.sheets.Spreadsheets.Values.Clear(id, quoteSheet(title), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear %s: %v", shared.ErrAPIRequest, title, err)
	}

	grid := existing.GridProperties
	if grid != nil && grid.RowCount == rows && grid.ColumnCount == cols {
		return nil
	}
	return w.update(ctx, id, &sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
		Properties: &sheets.SheetProperties{
			SheetId:        existing.SheetId,
			GridProperties: &sheets.GridProperties{RowCount: rows, ColumnCount: cols},
			// the first worksheet has id 0, which omitempty would drop
			ForceSendFields: []string{"SheetId"},
		},
		Fields: "gridProperties(rowCount,columnCount)",
	}})
}

func (w *SheetsWriter) update(ctx context.Context, id string, req *sheets.Request) error {
	_, err := w.sheets.Spreadsheets.BatchUpdate(id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{req},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: update workbook: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func quoteSheet(worksheet string) string {
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'"
}

func a1(worksheet string) string {
	return quoteSheet(worksheet) + "!A1"
}
