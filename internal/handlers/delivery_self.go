package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/utils"
)

// SearchHistoryLimit caps the history returned to a partner.
const SearchHistoryLimit = 20

func (h *DeliveryHandler) Me(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": partnerView(partner)})
}

func (h *DeliveryHandler) Logout(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}
	if err := h.partners.Logout(c.UserContext(), partner.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// UpdateLocation stores the partner's current position.
func (h *DeliveryHandler) UpdateLocation(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}

	var req locationRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	point, err := h.partners.UpdateLocation(c.UserContext(), partner.ID, *req.Latitude, *req.Longitude)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": point})
}

// ListOrders returns orders assigned to the partner, newest first.
func (h *DeliveryHandler) ListOrders(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}

	query := h.db.WithContext(c.UserContext()).
		Where("delivery_partner_id = ?", partner.ID)
	if status := c.Query("delivery_status"); status != "" {
		query = query.Where("delivery_status = ?", status)
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Customer").
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

type partnerOrderStatusRequest struct {
	DeliveryStatus string `json:"delivery_status" validate:"required,oneof='On the Way' Delivered"`
}

// UpdateOrderStatus lets the assigned partner move an order along.
func (h *DeliveryHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	var req partnerOrderStatusRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).
		First(&order, "id = ? AND delivery_partner_id = ?", id, partner.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "order not found")
		}
		return err
	}
	if order.DeliveryStatus == models.DeliveryDelivered || order.DeliveryStatus == models.DeliveryCancelled {
		return apperr.New(apperr.CodeConflict, "order delivery is already closed")
	}

	order.DeliveryStatus = req.DeliveryStatus
	if req.DeliveryStatus == models.DeliveryDelivered {
		now := time.Now()
		order.DeliveryCompletedAt = &now
	}
	if err := h.db.WithContext(c.UserContext()).Model(&order).
		Select("DeliveryStatus", "DeliveryCompletedAt").
		Updates(&order).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// SearchCustomers finds the shop's customers by name, shop or contact.
func (h *DeliveryHandler) SearchCustomers(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}
	shopID, ok := partner.ShopID()
	if !ok {
		return c.JSON(fiber.Map{"success": true, "data": []models.Customer{}})
	}

	query := h.db.WithContext(c.UserContext()).Where("user_id = ?", shopID)
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(shop_name) LIKE ? OR LOWER(CAST(contacts AS TEXT)) LIKE ?", like, like, like)
	}

	var customers []models.Customer
	if err := query.Order("name asc").Limit(50).Find(&customers).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": customers})
}

// GetCustomer opens one customer and records the lookup in the partner's
// search history.
func (h *DeliveryHandler) GetCustomer(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}
	shopID, _ := partner.ShopID()
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := h.db.WithContext(c.UserContext()).
		First(&customer, "id = ? AND user_id = ?", id, shopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "customer not found")
		}
		return err
	}

	entry := models.SearchHistory{
		PartnerID:  partner.ID,
		CustomerID: customer.ID,
		Name:       customer.Name,
		SearchedAt: time.Now(),
	}
	if err := h.db.WithContext(c.UserContext()).Create(&entry).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": customer})
}

// SearchHistory returns the partner's most recent customer lookups.
func (h *DeliveryHandler) SearchHistory(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}

	var history []models.SearchHistory
	if err := h.db.WithContext(c.UserContext()).
		Where("partner_id = ?", partner.ID).
		Order("searched_at desc").
		Limit(SearchHistoryLimit).
		Find(&history).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": history})
}

// CreateStickyNote records a note against the partner's shop.
func (h *DeliveryHandler) CreateStickyNote(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}
	shopID, ok := partner.ShopID()
	if !ok {
		return apperr.New(apperr.CodeForbidden, "delivery partner is not attached to a shop")
	}

	var req stickyNoteRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	partnerID := partner.ID
	note := req.toModel(shopID)
	note.DeliveryPartnerID = &partnerID
	if err := h.db.WithContext(c.UserContext()).Create(&note).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": note})
}

func (h *DeliveryHandler) ListStickyNotes(c *fiber.Ctx) error {
	partner, err := middleware.CurrentPartner(c)
	if err != nil {
		return err
	}

	var notes []models.StickyNote
	if err := h.db.WithContext(c.UserContext()).
		Where("delivery_partner_id = ?", partner.ID).
		Order("created_at desc").
		Find(&notes).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": notes})
}
