package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Customer struct {
	BaseModel
	UserID      uuid.UUID                   `gorm:"type:uuid;index" json:"user_id"`
	Name        string                      `json:"name"`
	Contacts    datatypes.JSONSlice[string] `json:"contacts"`
	ShopName    string                      `json:"shop_name"`
	ShopAddress string                      `json:"shop_address"`
	Latitude    *float64                    `json:"latitude"`
	Longitude   *float64                    `json:"longitude"`
	Credit      decimal.Decimal             `gorm:"type:numeric(14,2);default:0" json:"credit"`
	Debit       decimal.Decimal             `gorm:"type:numeric(14,2);default:0" json:"debit"`
	TotalSales  decimal.Decimal             `gorm:"type:numeric(14,2);default:0" json:"total_sales"`
	Remarks     string                      `json:"remarks"`
}
