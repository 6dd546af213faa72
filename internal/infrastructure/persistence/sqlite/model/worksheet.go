package model

type Worksheet struct {
	Name       string `gorm:"column:name;type:text;primaryKey"`
	HeaderJSON string `gorm:"column:header_json;type:text;not null"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null"`
}

func (Worksheet) TableName() string {
	return "worksheets"
}
