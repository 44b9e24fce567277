package models

import (
	"time"

	"github.com/google/uuid"
)

type PartnerStatus string

const (
	PartnerPending  PartnerStatus = "pending"
	PartnerApproved PartnerStatus = "approved"
	PartnerRejected PartnerStatus = "rejected"
)

// DeliveryPartner is registered against a shop and must be approved before
// it can log in.
type DeliveryPartner struct {
	BaseModel
	Name           string        `json:"name"`
	Email          string        `gorm:"index" json:"email"`
	Phone          string        `json:"phone"`
	PasswordHash   string        `json:"-"`
	Status         PartnerStatus `gorm:"index;default:pending" json:"status"`
	OTP            *string       `gorm:"column:otp" json:"-"`
	OTPExpires     *time.Time    `gorm:"column:otp_expires" json:"-"`
	SessionToken   *string       `gorm:"uniqueIndex" json:"-"`
	CreatedByUser  *uuid.UUID    `gorm:"type:uuid;index" json:"created_by_user"`
	AdminID        *uuid.UUID    `gorm:"type:uuid" json:"admin_id"`
	AdminEmail     string        `json:"admin_email"`
	NotifiedAt     *time.Time    `json:"notified_at"`
	LastLatitude   *float64      `json:"-"`
	LastLongitude  *float64      `json:"-"`
	LastLocationAt *time.Time    `json:"-"`
}

// GeoPoint is a partner's last reported position.
type GeoPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastLocation returns nil until the partner has reported a position.
func (p *DeliveryPartner) LastLocation() *GeoPoint {
	if p.LastLatitude == nil || p.LastLongitude == nil || p.LastLocationAt == nil {
		return nil
	}
	return &GeoPoint{Latitude: *p.LastLatitude, Longitude: *p.LastLongitude, UpdatedAt: *p.LastLocationAt}
}

// SearchHistory records customer lookups made by a partner.
type SearchHistory struct {
	BaseModel
	PartnerID  uuid.UUID `gorm:"type:uuid;index" json:"partner_id"`
	CustomerID uuid.UUID `gorm:"type:uuid" json:"customer_id"`
	Name       string    `json:"name"`
	SearchedAt time.Time `gorm:"index" json:"timestamp"`
}

// ShopID is the user whose data the partner works with.
func (p *DeliveryPartner) ShopID() (uuid.UUID, bool) {
	switch {
	case p.CreatedByUser != nil:
		return *p.CreatedByUser, true
	case p.AdminID != nil:
		return *p.AdminID, true
	}
	return uuid.Nil, false
}
