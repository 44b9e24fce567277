package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/utils"
)

// ProfileHandler manages the shop profile and its invoicing extensions.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// GetProfile returns the shop owner's profile. Managers see their admin's
// shop plus their own identity.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", actor.EffectiveUserID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "user not found")
		}
		return err
	}

	data := fiber.Map{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"contact":      user.Contact,
		"shop_name":    user.ShopName,
		"shop_address": user.ShopAddress,
		"gstin":        user.GSTIN,
		"is_verified":  user.IsVerified,
		"role":         actor.Kind,
		"created_at":   user.CreatedAt,
		"updated_at":   user.UpdatedAt,
	}
	if actor.ManagerID != nil {
		data["manager_id"] = *actor.ManagerID
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

type updateProfileRequest struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	ShopName    string `json:"shop_name"`
	ShopAddress string `json:"shop_address"`
}

// UpdateProfile updates the non-empty profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Contact != "" {
		updates["contact"] = req.Contact
	}
	if req.ShopName != "" {
		updates["shop_name"] = req.ShopName
	}
	if req.ShopAddress != "" {
		updates["shop_address"] = req.ShopAddress
	}
	if len(updates) == 0 {
		return apperr.New(apperr.CodeValidation, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", actor.EffectiveUserID()).
		Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

type sellerDetailsRequest struct {
	BusinessName string `json:"business_name"`
	GSTNumber    string `json:"gst_number"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	LogoURL      string `json:"logo_url" validate:"omitempty,url"`
	QRCodeURL    string `json:"qr_code_url" validate:"omitempty,url"`
	SignatureURL string `json:"signature_url" validate:"omitempty,url"`
}

// GetSellerDetails returns the invoicing metadata, or null when unset.
func (h *ProfileHandler) GetSellerDetails(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var details models.SellerDetails
	err = h.db.WithContext(c.UserContext()).Where("user_id = ?", actor.EffectiveUserID()).First(&details).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "data": nil})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": details})
}

// UpsertSellerDetails updates the row or creates it on first use.
func (h *ProfileHandler) UpsertSellerDetails(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req sellerDetailsRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	var details models.SellerDetails
	if err := h.db.WithContext(c.UserContext()).
		Where(models.SellerDetails{UserID: actor.EffectiveUserID()}).
		Assign(models.SellerDetails{
			BusinessName: req.BusinessName,
			GSTNumber:    req.GSTNumber,
			Address:      req.Address,
			Phone:        req.Phone,
			LogoURL:      req.LogoURL,
			QRCodeURL:    req.QRCodeURL,
			SignatureURL: req.SignatureURL,
		}).
		FirstOrCreate(&details).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": details})
}

type bankDetailsRequest struct {
	AccountHolder string `json:"account_holder" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
	Branch        string `json:"branch"`
	UPIID         string `json:"upi_id"`
}

// GetBankDetails returns payout details, or null when unset.
func (h *ProfileHandler) GetBankDetails(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var details models.BankDetails
	err = h.db.WithContext(c.UserContext()).Where("user_id = ?", actor.EffectiveUserID()).First(&details).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "data": nil})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": details})
}

// UpsertBankDetails updates the row or creates it on first use.
func (h *ProfileHandler) UpsertBankDetails(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req bankDetailsRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	var details models.BankDetails
	if err := h.db.WithContext(c.UserContext()).
		Where(models.BankDetails{UserID: actor.EffectiveUserID()}).
		Assign(models.BankDetails{
			AccountHolder: req.AccountHolder,
			AccountNumber: req.AccountNumber,
			IFSC:          req.IFSC,
			BankName:      req.BankName,
			Branch:        req.Branch,
			UPIID:         req.UPIID,
		}).
		FirstOrCreate(&details).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": details})
}
