package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/persistence/sqlite/model"
	"orderbot/internal/ports"
)

const firstDataRow = 2

var errRowNotFound = errors.New("row not found")

// TableStore keeps spreadsheet-like worksheets in a SQL database. Each
// worksheet is a header plus rows of string cells addressed by row index.
type TableStore struct {
	db  *gorm.DB
	uow ports.UnitOfWork
}

var _ ports.TableStore = (*TableStore)(nil)

func NewTableStore(db *gorm.DB, uow ports.UnitOfWork) *TableStore {
	return &TableStore{db: db, uow: uow}
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

func (s *TableStore) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return s.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (s *TableStore) EnsureTable(ctx context.Context, name string, header []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("table name is required")
	}

	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	headerJSON, err := encodeCells(header)
	if err != nil {
		return errs.Wrap(err, "encode header")
	}

	row := model.Worksheet{
		Name:       name,
		HeaderJSON: headerJSON,
		CreatedAt:  nowUTCString(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "create worksheet %q", name)
	}
	return nil
}

func (s *TableStore) ReadAllRows(ctx context.Context, table string) ([]ports.Row, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireWorksheet(db, table); err != nil {
		return nil, err
	}

	var rows []model.SheetRow
	if err := db.
		Where("worksheet = ?", table).
		Order("row_index asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrapf(err, "query rows of %q", table)
	}

	items := make([]ports.Row, 0, len(rows))
	for _, row := range rows {
		cells, err := decodeCells(row.CellsJSON)
		if err != nil {
			return nil, errs.Wrapf(err, "decode row %d of %q", row.RowIndex, table)
		}
		items = append(items, ports.Row{Index: row.RowIndex, Cells: cells})
	}
	return items, nil
}

func (s *TableStore) AppendRow(ctx context.Context, table string, cells []string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	cellsJSON, err := encodeCells(cells)
	if err != nil {
		return errs.Wrap(err, "encode cells")
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		db, err := s.dbFromContext(txCtx)
		if err != nil {
			return err
		}
		if err := requireWorksheet(db, table); err != nil {
			return err
		}

		var last int
		if err := db.Model(&model.SheetRow{}).
			Where("worksheet = ?", table).
			Select("COALESCE(MAX(row_index), ?)", firstDataRow-1).
			Scan(&last).Error; err != nil {
			return errs.Wrapf(err, "query last row of %q", table)
		}

		row := model.SheetRow{
			Worksheet: table,
			RowIndex:  last + 1,
			CellsJSON: cellsJSON,
			UpdatedAt: nowUTCString(),
		}
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrapf(err, "insert row into %q", table)
		}
		return nil
	})
}

func (s *TableStore) UpdateCell(ctx context.Context, table string, rowIndex int, column int, value string) error {
	if rowIndex < firstDataRow {
		return fmt.Errorf("row index %d is outside data rows", rowIndex)
	}
	if column < 1 {
		return fmt.Errorf("column %d is invalid", column)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		db, err := s.dbFromContext(txCtx)
		if err != nil {
			return err
		}
		if err := requireWorksheet(db, table); err != nil {
			return err
		}

		var row model.SheetRow
		if err := db.
			Where("worksheet = ? AND row_index = ?", table, rowIndex).
			Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %q row %d", errRowNotFound, table, rowIndex)
			}
			return errs.Wrapf(err, "query row %d of %q", rowIndex, table)
		}

		cells, err := decodeCells(row.CellsJSON)
		if err != nil {
			return errs.Wrapf(err, "decode row %d of %q", rowIndex, table)
		}
		for len(cells) < column {
			cells = append(cells, "")
		}
		cells[column-1] = value

		cellsJSON, err := encodeCells(cells)
		if err != nil {
			return errs.Wrap(err, "encode cells")
		}
		if err := db.Model(&model.SheetRow{}).
			Where("row_id = ?", row.RowID).
			Updates(map[string]any{
				"cells_json": cellsJSON,
				"updated_at": nowUTCString(),
			}).Error; err != nil {
			return errs.Wrapf(err, "update row %d of %q", rowIndex, table)
		}
		return nil
	})
}

// Header returns the header row stored by EnsureTable.
func (s *TableStore) Header(ctx context.Context, table string) ([]string, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var sheet model.Worksheet
	if err := db.Where("name = ?", table).Take(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ports.ErrTableNotFound, table)
		}
		return nil, errs.Wrapf(err, "query worksheet %q", table)
	}
	return decodeCells(sheet.HeaderJSON)
}

func requireWorksheet(db *gorm.DB, table string) error {
	var count int64
	if err := db.Model(&model.Worksheet{}).Where("name = ?", table).Count(&count).Error; err != nil {
		return errs.Wrapf(err, "query worksheet %q", table)
	}
	if count == 0 {
		return fmt.Errorf("%w: %q", ports.ErrTableNotFound, table)
	}
	return nil
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if strings.TrimSpace(raw) == "" {
		return cells, nil
	}
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
