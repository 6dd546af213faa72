package model

// All lists every model migrated by init-db.
func All() []any {
	return []any{
		&Worksheet{},
		&SheetRow{},
		&StateKV{},
	}
}
