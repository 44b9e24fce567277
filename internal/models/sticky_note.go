package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StickyNoteItem struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// StickyNote is an informal order request jotted down by the shop or a partner.
type StickyNote struct {
	BaseModel
	UserID            uuid.UUID                           `gorm:"type:uuid;index" json:"user_id"`
	DeliveryPartnerID *uuid.UUID                          `gorm:"type:uuid;index" json:"delivery_partner_id"`
	CustomerID        *uuid.UUID                          `gorm:"type:uuid" json:"customer_id"`
	CustomerName      string                              `json:"customer_name"`
	ShopName          string                              `json:"shop_name"`
	Items             datatypes.JSONSlice[StickyNoteItem] `json:"items"`
	TotalQuantity     float64                             `json:"total_quantity"`
}

// BeforeSave keeps TotalQuantity equal to the sum of item quantities.
func (n *StickyNote) BeforeSave(tx *gorm.DB) error {
	var total float64
	for _, item := range n.Items {
		total += item.Quantity
	}
	n.TotalQuantity = total
	return nil
}
