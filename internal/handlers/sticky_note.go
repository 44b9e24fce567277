package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/utils"
)

// StickyNoteHandler manages the shop's informal order notes.
type StickyNoteHandler struct {
	db *gorm.DB
}

func NewStickyNoteHandler(db *gorm.DB) *StickyNoteHandler {
	return &StickyNoteHandler{db: db}
}

type stickyNoteItemRequest struct {
	ProductName string  `json:"product_name" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Unit        string  `json:"unit"`
}

type stickyNoteRequest struct {
	CustomerID        *uuid.UUID              `json:"customer_id"`
	DeliveryPartnerID *uuid.UUID              `json:"delivery_partner_id"`
	CustomerName      string                  `json:"customer_name"`
	ShopName          string                  `json:"shop_name"`
	Items             []stickyNoteItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r stickyNoteRequest) toModel(userID uuid.UUID) models.StickyNote {
	note := models.StickyNote{
		UserID:            userID,
		DeliveryPartnerID: r.DeliveryPartnerID,
		CustomerID:        r.CustomerID,
		CustomerName:      r.CustomerName,
		ShopName:          r.ShopName,
	}
	for _, item := range r.Items {
		note.Items = append(note.Items, models.StickyNoteItem{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
		})
	}
	return note
}

func (h *StickyNoteHandler) ListStickyNotes(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var notes []models.StickyNote
	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ?", actor.EffectiveUserID()).
		Order("created_at desc").
		Find(&notes).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": notes})
}

func (h *StickyNoteHandler) CreateStickyNote(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req stickyNoteRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	note := req.toModel(actor.EffectiveUserID())
	if err := h.db.WithContext(c.UserContext()).Create(&note).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": note})
}

func (h *StickyNoteHandler) UpdateStickyNote(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	var req stickyNoteRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	var note models.StickyNote
	if err := h.db.WithContext(c.UserContext()).
		First(&note, "id = ? AND user_id = ?", id, actor.EffectiveUserID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "sticky note not found")
		}
		return err
	}

	updated := req.toModel(note.UserID)
	updated.BaseModel = note.BaseModel
	if err := h.db.WithContext(c.UserContext()).Save(&updated).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": updated})
}

func (h *StickyNoteHandler) DeleteStickyNote(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	res := h.db.WithContext(c.UserContext()).
		Where("id = ? AND user_id = ?", id, actor.EffectiveUserID()).
		Delete(&models.StickyNote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeNotFound, "sticky note not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "sticky note deleted"})
}
