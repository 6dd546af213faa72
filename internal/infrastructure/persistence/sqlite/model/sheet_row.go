package model

type SheetRow struct {
	RowID     uint64 `gorm:"column:row_id;primaryKey;autoIncrement"`
	Worksheet string `gorm:"column:worksheet;type:text;not null;uniqueIndex:idx_sheet_rows_position,priority:1"`
	RowIndex  int    `gorm:"column:row_index;not null;uniqueIndex:idx_sheet_rows_position,priority:2"`
	CellsJSON string `gorm:"column:cells_json;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (SheetRow) TableName() string {
	return "sheet_rows"
}
