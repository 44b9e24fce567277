package models

import "github.com/google/uuid"

// SellerDetails holds invoicing metadata, one row per user.
type SellerDetails struct {
	BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	BusinessName string    `json:"business_name"`
	GSTNumber    string    `json:"gst_number"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	LogoURL      string    `json:"logo_url"`
	QRCodeURL    string    `json:"qr_code_url"`
	SignatureURL string    `json:"signature_url"`
}

// BankDetails holds payout account details, one row per user.
type BankDetails struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	AccountHolder string    `json:"account_holder"`
	AccountNumber string    `json:"account_number"`
	IFSC          string    `gorm:"column:ifsc" json:"ifsc"`
	BankName      string    `json:"bank_name"`
	Branch        string    `json:"branch"`
	UPIID         string    `gorm:"column:upi_id" json:"upi_id"`
}
