// Package gsheets implements ports.TableStore on a Google Sheets spreadsheet.
// Each table is a worksheet; row 1 holds the header.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/googleauth"
	"orderbot/internal/ports"
)

const valueInputRaw = "RAW"

type Config struct {
	SpreadsheetID string
	Credentials   googleauth.Credentials
}

type TableStore struct {
	svc           *sheets.Service
	spreadsheetID string
}

var _ ports.TableStore = (*TableStore)(nil)

// New authorizes with the configured service account. Extra options are
// appended after the credentials, so tests can point the client elsewhere.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*TableStore, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if !cfg.Credentials.IsZero() {
		creds, err := cfg.Credentials.Resolve(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "create sheets service")
	}
	return NewWithService(svc, spreadsheetID), nil
}

func NewWithService(svc *sheets.Service, spreadsheetID string) *TableStore {
	return &TableStore{svc: svc, spreadsheetID: spreadsheetID}
}

func (s *TableStore) EnsureTable(ctx context.Context, name string, header []string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("table name is required")
	}

	exists, err := s.hasSheet(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			}},
		}
		if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return errs.Wrapf(err, "add worksheet %q", name)
		}
	}

	current, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, cellRange(name, 1, 1)).Context(ctx).Do()
	if err != nil {
		return errs.Wrapf(err, "read header of %q", name)
	}
	if len(current.Values) > 0 || len(header) == 0 {
		return nil
	}

	body := &sheets.ValueRange{Values: [][]interface{}{toValues(header)}}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cellRange(name, 1, 1), body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do(); err != nil {
		return errs.Wrapf(err, "write header of %q", name)
	}
	return nil
}

func (s *TableStore) ReadAllRows(ctx context.Context, table string) ([]ports.Row, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange(table)).Context(ctx).Do()
	if err != nil {
		return nil, s.mapError(err, table, "read rows")
	}
	return rowsFromValues(resp.Values), nil
}

func (s *TableStore) AppendRow(ctx context.Context, table string, cells []string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	body := &sheets.ValueRange{Values: [][]interface{}{toValues(cells)}}
	if _, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, cellRange(table, 1, 1), body).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return s.mapError(err, table, "append row")
	}
	return nil
}

func (s *TableStore) UpdateCell(ctx context.Context, table string, rowIndex int, column int, value string) error {
	if rowIndex < 2 {
		return fmt.Errorf("row index %d is outside data rows", rowIndex)
	}
	if column < 1 {
		return fmt.Errorf("column %d is invalid", column)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	body := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cellRange(table, rowIndex, column), body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do(); err != nil {
		return s.mapError(err, table, "update cell")
	}
	return nil
}

func (s *TableStore) hasSheet(ctx context.Context, name string) (bool, error) {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return false, errs.Wrap(err, "get spreadsheet")
	}
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == name {
			return true, nil
		}
	}
	return false, nil
}

// mapError turns the "Unable to parse range" reply for a missing worksheet
// into ports.ErrTableNotFound.
func (s *TableStore) mapError(err error, table string, action string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %q", ports.ErrTableNotFound, table)
	}
	return errs.Wrapf(err, "%s of %q", action, table)
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func rowsFromValues(values [][]interface{}) []ports.Row {
	if len(values) <= 1 {
		return []ports.Row{}
	}
	rows := make([]ports.Row, 0, len(values)-1)
	for i, raw := range values[1:] {
		cells := make([]string, len(raw))
		for j, value := range raw {
			cells[j] = fmt.Sprint(value)
		}
		rows = append(rows, ports.Row{Index: i + 2, Cells: cells})
	}
	return rows
}

func toValues(cells []string) []interface{} {
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		values[i] = cell
	}
	return values
}

// ColumnLetter converts a 1-based column number to its A1 letters.
func ColumnLetter(column int) string {
	if column < 1 {
		return ""
	}
	var letters []byte
	for column > 0 {
		column--
		letters = append([]byte{byte('A' + column%26)}, letters...)
		column /= 26
	}
	return string(letters)
}

func sheetRange(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func cellRange(name string, row int, column int) string {
	return fmt.Sprintf("%s!%s%d", sheetRange(name), ColumnLetter(column), row)
}
