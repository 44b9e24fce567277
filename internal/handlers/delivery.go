package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/authz"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/otp"
	"github.com/example/stockroute/internal/services"
	"github.com/example/stockroute/internal/utils"
)

// DeliveryHandler serves partner registration, approval and login, plus the
// partner's own session-guarded routes.
type DeliveryHandler struct {
	db       *gorm.DB
	partners *services.PartnerService
}

// NewDeliveryHandler constructs DeliveryHandler.
func NewDeliveryHandler(db *gorm.DB, partners *services.PartnerService) *DeliveryHandler {
	return &DeliveryHandler{db: db, partners: partners}
}

type registerPartnerRequest struct {
	Name          string     `json:"name" validate:"required"`
	Email         string     `json:"email" validate:"required,email"`
	Phone         string     `json:"phone"`
	Password      string     `json:"password" validate:"required,min=6"`
	CreatedByUser *uuid.UUID `json:"created_by_user"`
	AdminID       *uuid.UUID `json:"admin_id"`
	AdminEmail    string     `json:"admin_email" validate:"omitempty,email"`
}

// Register records a pending delivery partner. A logged in shop registering
// a partner becomes its owner unless the body names one.
func (h *DeliveryHandler) Register(c *fiber.Ctx) error {
	var req registerPartnerRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	createdBy := req.CreatedByUser
	if createdBy == nil {
		if actor, ok := middleware.CurrentActor(c); ok {
			id := actor.EffectiveUserID()
			createdBy = &id
		}
	}

	partner, err := h.partners.Register(c.UserContext(), services.RegisterPartnerInput{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Password:      req.Password,
		CreatedByUser: createdBy,
		AdminID:       req.AdminID,
		AdminEmail:    req.AdminEmail,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "registration submitted, waiting for approval",
		"data":    partnerView(partner),
	})
}

// ListPartners returns the partners the shop may manage.
func (h *DeliveryHandler) ListPartners(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	status := models.PartnerStatus(c.Query("status"))
	switch status {
	case "", models.PartnerPending, models.PartnerApproved, models.PartnerRejected:
	default:
		return apperr.New(apperr.CodeValidation, "invalid status filter")
	}

	partners, err := h.partners.List(c.UserContext(), actor, status)
	if err != nil {
		return err
	}

	data := make([]fiber.Map, 0, len(partners))
	for i := range partners {
		data = append(data, partnerView(&partners[i]))
	}
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func (h *DeliveryHandler) ApprovePartner(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	partner, err := h.partners.Approve(c.UserContext(), id, principal(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": partnerView(partner)})
}

func (h *DeliveryHandler) RejectPartner(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	partner, err := h.partners.Reject(c.UserContext(), id, principal(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": partnerView(partner)})
}

// DeletePartner also accepts the superuser secret in place of a shop token.
func (h *DeliveryHandler) DeletePartner(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.partners.Delete(c.UserContext(), id, principal(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "delivery partner deleted"})
}

type partnerLoginRequest struct {
	Email         string     `json:"email" validate:"required,email"`
	Password      string     `json:"password" validate:"required"`
	CreatedByUser *uuid.UUID `json:"created_by_user"`
}

// Login checks credentials and mails a login code.
func (h *DeliveryHandler) Login(c *fiber.Ctx) error {
	var req partnerLoginRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	partner, err := h.partners.RequestLoginOTP(c.UserContext(), req.Email, req.Password, req.CreatedByUser)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "otp sent to your email",
		"data":    fiber.Map{"partner_id": partner.ID},
	})
}

type partnerVerifyRequest struct {
	PartnerID uuid.UUID `json:"partner_id" validate:"required"`
	OTP       otp.Code  `json:"otp" validate:"required"`
}

// VerifyLogin exchanges a login code for a session token.
func (h *DeliveryHandler) VerifyLogin(c *fiber.Ctx) error {
	var req partnerVerifyRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	token, partner, err := h.partners.VerifyLoginOTP(c.UserContext(), req.PartnerID, req.OTP.String())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token":   token,
			"partner": partnerView(partner),
		},
	})
}

func principal(c *fiber.Ctx) authz.Principal {
	p := authz.Principal{Superuser: middleware.IsSuperuser(c)}
	if actor, ok := middleware.CurrentActor(c); ok {
		p.Actor = &actor
	}
	return p
}

func partnerView(p *models.DeliveryPartner) fiber.Map {
	return fiber.Map{
		"id":              p.ID,
		"name":            p.Name,
		"email":           p.Email,
		"phone":           p.Phone,
		"status":          p.Status,
		"created_by_user": p.CreatedByUser,
		"admin_id":        p.AdminID,
		"admin_email":     p.AdminEmail,
		"notified_at":     p.NotifiedAt,
		"last_location":   p.LastLocation(),
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}
}
