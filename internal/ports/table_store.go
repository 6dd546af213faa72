package ports

import (
	"context"
	"errors"
)

var ErrTableNotFound = errors.New("table not found")

// Row is one data row of a table. Index is the 1-based sheet row number; the
// header occupies row 1, so data rows start at 2.
type Row struct {
	Index int
	Cells []string
}

// Cell returns the 1-based column value, or "" when the row is shorter.
func (r Row) Cell(column int) string {
	if column < 1 || column > len(r.Cells) {
		return ""
	}
	return r.Cells[column-1]
}

// TableStore is a spreadsheet-like store. Each call is atomic on its own;
// calls do not compose into transactions.
type TableStore interface {
	EnsureTable(ctx context.Context, name string, header []string) error
	ReadAllRows(ctx context.Context, table string) ([]Row, error)
	AppendRow(ctx context.Context, table string, cells []string) error
	UpdateCell(ctx context.Context, table string, rowIndex int, column int, value string) error
}
