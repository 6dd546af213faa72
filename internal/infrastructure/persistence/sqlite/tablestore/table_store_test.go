package tablestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"orderbot/internal/infrastructure/persistence/sqlite/model"
	"orderbot/internal/infrastructure/persistence/sqlite/uow"
	"orderbot/internal/ports"
)

func setupTableStore(t *testing.T) *TableStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tables.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewTableStore(db, uow.NewUnitOfWork(db))
}

func TestTableStoreAppendAndRead(t *testing.T) {
	store := setupTableStore(t)
	ctx := context.Background()

	if err := store.EnsureTable(ctx, "Utro", []string{"Номер заказа", "Объект"}); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if err := store.AppendRow(ctx, "Utro", []string{"1", "Site A"}); err != nil {
		t.Fatalf("AppendRow(1) error = %v", err)
	}
	if err := store.AppendRow(ctx, "Utro", []string{"2", "Site B"}); err != nil {
		t.Fatalf("AppendRow(2) error = %v", err)
	}

	rows, err := store.ReadAllRows(ctx, "Utro")
	if err != nil {
		t.Fatalf("ReadAllRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ReadAllRows() len = %d", len(rows))
	}
	if rows[0].Index != 2 || rows[1].Index != 3 {
		t.Fatalf("row indexes = %d,%d, want 2,3", rows[0].Index, rows[1].Index)
	}
	if rows[1].Cell(2) != "Site B" {
		t.Fatalf("rows[1].Cell(2) = %q", rows[1].Cell(2))
	}
}

func TestTableStoreEnsureTableKeepsExistingHeader(t *testing.T) {
	store := setupTableStore(t)
	ctx := context.Background()

	if err := store.EnsureTable(ctx, "Сообщения", []string{"Текст"}); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if err := store.EnsureTable(ctx, "Сообщения", []string{"Другой"}); err != nil {
		t.Fatalf("EnsureTable(again) error = %v", err)
	}

	header, err := store.Header(ctx, "Сообщения")
	if err != nil {
		t.Fatalf("Header() error = %v", err)
	}
	if len(header) != 1 || header[0] != "Текст" {
		t.Fatalf("Header() = %v", header)
	}
}

func TestTableStoreUpdateCellExtendsRow(t *testing.T) {
	store := setupTableStore(t)
	ctx := context.Background()

	if err := store.EnsureTable(ctx, "Сообщения", []string{"Текст", "Отметка"}); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if err := store.AppendRow(ctx, "Сообщения", []string{"hello"}); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	if err := store.UpdateCell(ctx, "Сообщения", 2, 4, "#checked"); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}

	rows, err := store.ReadAllRows(ctx, "Сообщения")
	if err != nil {
		t.Fatalf("ReadAllRows() error = %v", err)
	}
	if len(rows[0].Cells) != 4 {
		t.Fatalf("cells = %v", rows[0].Cells)
	}
	if rows[0].Cell(1) != "hello" || rows[0].Cell(4) != "#checked" {
		t.Fatalf("cells = %v", rows[0].Cells)
	}
}

func TestTableStoreUpdateCellRejectsHeaderAndMissingRows(t *testing.T) {
	store := setupTableStore(t)
	ctx := context.Background()

	if err := store.EnsureTable(ctx, "Utro", nil); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if err := store.UpdateCell(ctx, "Utro", 1, 1, "x"); err == nil {
		t.Fatalf("UpdateCell(header) expected error")
	}
	if err := store.UpdateCell(ctx, "Utro", 2, 0, "x"); err == nil {
		t.Fatalf("UpdateCell(column 0) expected error")
	}
	err := store.UpdateCell(ctx, "Utro", 7, 1, "x")
	if !errors.Is(err, errRowNotFound) {
		t.Fatalf("UpdateCell(missing) error = %v", err)
	}
}

func TestTableStoreUnknownTable(t *testing.T) {
	store := setupTableStore(t)
	ctx := context.Background()

	if _, err := store.ReadAllRows(ctx, "missing"); !errors.Is(err, ports.ErrTableNotFound) {
		t.Fatalf("ReadAllRows() error = %v", err)
	}
	if err := store.AppendRow(ctx, "missing", []string{"x"}); !errors.Is(err, ports.ErrTableNotFound) {
		t.Fatalf("AppendRow() error = %v", err)
	}
}

func TestTableStoreCanceledContext(t *testing.T) {
	store := setupTableStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.ReadAllRows(ctx, "Utro"); !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadAllRows() error = %v", err)
	}
	if err := store.AppendRow(ctx, "Utro", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("AppendRow() error = %v", err)
	}
}
