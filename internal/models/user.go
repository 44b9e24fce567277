package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a shop owner. It owns customers, products, managers and partners.
type User struct {
	BaseModel
	Name         string     `json:"name"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	Contact      string     `json:"contact"`
	ShopName     string     `json:"shop_name"`
	ShopAddress  string     `json:"shop_address"`
	GSTIN        string     `gorm:"column:gstin;uniqueIndex" json:"gstin"`
	PasswordHash string     `json:"-"`
	OTP          *string    `gorm:"column:otp" json:"-"`
	OTPExpires   *time.Time `gorm:"column:otp_expires" json:"-"`
	IsVerified   bool       `json:"is_verified"`
}

// Manager acts on behalf of exactly one admin user.
type Manager struct {
	BaseModel
	AdminID      uuid.UUID  `gorm:"type:uuid;index" json:"admin_id"`
	Admin        *User      `gorm:"foreignKey:AdminID" json:"-"`
	Name         string     `json:"name"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash string     `json:"-"`
	OTP          *string    `gorm:"column:otp" json:"-"`
	OTPExpires   *time.Time `gorm:"column:otp_expires" json:"-"`
}
