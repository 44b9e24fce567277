package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	BaseModel
	UserID   uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Unit     string          `json:"unit"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"price"`
	ImageURL string          `json:"image_url"`
}

// RestockItem is one line of a RestockHistory entry.
type RestockItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Unit      string    `json:"unit"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note,omitempty"`
}

// RestockHistory is append-only; rows are never updated.
type RestockHistory struct {
	BaseModel
	UserID uuid.UUID                        `gorm:"type:uuid;index" json:"user_id"`
	Items  datatypes.JSONSlice[RestockItem] `json:"items"`
}

// TableName keeps the singular audit table name.
func (RestockHistory) TableName() string {
	return "restock_history"
}
