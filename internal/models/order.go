package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderUnsettled = "Unsettled"
	OrderSettled   = "Settled"

	DeliveryPending   = "Pending"
	DeliveryOnTheWay  = "On the Way"
	DeliveryDelivered = "Delivered"
	DeliveryCancelled = "Cancelled"
)

type Order struct {
	BaseModel
	UserID              uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	CustomerID          uuid.UUID       `gorm:"type:uuid;index" json:"customer_id"`
	Customer            *Customer       `json:"customer,omitempty"`
	DeliveryPartnerID   *uuid.UUID      `gorm:"type:uuid;index" json:"delivery_partner_id"`
	OrderNumber         string          `gorm:"uniqueIndex" json:"order_number"`
	Status              string          `gorm:"default:Unsettled" json:"status"`
	DeliveryStatus      string          `gorm:"default:Pending" json:"delivery_status"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"total_amount"`
	Notes               string          `json:"notes"`
	DeliveryCompletedAt *time.Time      `json:"delivery_completed_at"`
	Items               []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"line_total"`
}
