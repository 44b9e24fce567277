package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/authz"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/utils"
)

// OrderHandler manages shop orders and their delivery assignment.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

type orderItemRequest struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerID  uuid.UUID          `json:"customer_id" validate:"required"`
	Items       []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalAmount *decimal.Decimal   `json:"total_amount"`
	Notes       string             `json:"notes"`
}

// CreateOrder records an order, takes the ordered stock and adds the total
// to the customer's sales.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}
	userID := actor.EffectiveUserID()

	var req createOrderRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	order := models.Order{
		UserID:         userID,
		CustomerID:     req.CustomerID,
		OrderNumber:    h.generateOrderNumber(),
		Status:         models.OrderUnsettled,
		DeliveryStatus: models.DeliveryPending,
		Notes:          req.Notes,
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "id = ? AND user_id = ?", req.CustomerID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.CodeNotFound, "customer not found")
			}
			return err
		}

		subtotal := decimal.Zero
		for _, p := range req.Items {
			item := models.OrderItem{
				ProductID:   p.ProductID,
				ProductName: p.ProductName,
				Unit:        p.Unit,
				Quantity:    p.Quantity,
				UnitPrice:   p.UnitPrice,
			}

			if p.ProductID != nil {
				var product models.Product
				if err := tx.First(&product, "id = ? AND user_id = ?", *p.ProductID, userID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return apperr.New(apperr.CodeNotFound, fmt.Sprintf("product %s not found", *p.ProductID))
					}
					return err
				}
				res := tx.Model(&models.Product{}).
					Where("id = ? AND quantity >= ?", product.ID, p.Quantity).
					UpdateColumn("quantity", gorm.Expr("quantity - ?", p.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return apperr.New(apperr.CodeConflict, fmt.Sprintf("insufficient stock for %s", product.Name))
				}
				if item.ProductName == "" {
					item.ProductName = product.Name
				}
				if item.Unit == "" {
					item.Unit = product.Unit
				}
				if item.UnitPrice.IsZero() {
					item.UnitPrice = product.Price
				}
			}
			if item.ProductName == "" {
				return apperr.New(apperr.CodeValidation, "product_name is required for items without product_id")
			}

			item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(item.LineTotal)
			order.Items = append(order.Items, item)
		}

		order.TotalAmount = subtotal
		if req.TotalAmount != nil {
			order.TotalAmount = *req.TotalAmount
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Model(&customer).
			UpdateColumn("total_sales", gorm.Expr("total_sales + ?", order.TotalAmount)).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns the shop's orders with optional status filters.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	query := h.db.WithContext(c.UserContext()).Where("user_id = ?", actor.EffectiveUserID())
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if status := c.Query("delivery_status"); status != "" {
		query = query.Where("delivery_status = ?", status)
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		if id, err := uuid.Parse(customerID); err == nil {
			query = query.Where("customer_id = ?", id)
		}
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Customer").
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

// GetOrder returns a single order.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.load(c, true)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type assignOrderRequest struct {
	DeliveryPartnerID uuid.UUID `json:"delivery_partner_id" validate:"required"`
}

// AssignOrder hands an order to an approved partner the shop manages.
func (h *OrderHandler) AssignOrder(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}
	order, err := h.load(c, false)
	if err != nil {
		return err
	}

	var req assignOrderRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	var partner models.DeliveryPartner
	if err := h.db.WithContext(c.UserContext()).First(&partner, "id = ?", req.DeliveryPartnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "delivery partner not found")
		}
		return err
	}
	if !authz.CanManagePartner(&partner, authz.Principal{Actor: &actor}, authz.ActionApprove).Allowed {
		return apperr.New(apperr.CodeForbidden, "delivery partner does not belong to this shop")
	}
	if partner.Status != models.PartnerApproved {
		return apperr.New(apperr.CodeConflict, "delivery partner is not approved")
	}

	order.DeliveryPartnerID = &partner.ID
	order.DeliveryStatus = models.DeliveryPending
	order.DeliveryCompletedAt = nil
	if err := h.db.WithContext(c.UserContext()).Model(order).
		Select("DeliveryPartnerID", "DeliveryStatus", "DeliveryCompletedAt").
		Updates(order).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type orderStatusRequest struct {
	Status         string `json:"status" validate:"omitempty,oneof=Unsettled Settled"`
	DeliveryStatus string `json:"delivery_status" validate:"omitempty,oneof=Pending 'On the Way' Delivered Cancelled"`
}

// UpdateOrderStatus changes settlement and/or delivery status.
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	order, err := h.load(c, false)
	if err != nil {
		return err
	}

	var req orderStatusRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}
	if req.Status == "" && req.DeliveryStatus == "" {
		return apperr.New(apperr.CodeValidation, "status or delivery_status is required")
	}

	if req.Status != "" {
		order.Status = req.Status
	}
	if req.DeliveryStatus != "" {
		order.DeliveryStatus = req.DeliveryStatus
		order.DeliveryCompletedAt = nil
		if req.DeliveryStatus == models.DeliveryDelivered {
			now := time.Now()
			order.DeliveryCompletedAt = &now
		}
	}

	if err := h.db.WithContext(c.UserContext()).Model(order).
		Select("Status", "DeliveryStatus", "DeliveryCompletedAt").
		Updates(order).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

func (h *OrderHandler) load(c *fiber.Ctx, withRelations bool) (*models.Order, error) {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return nil, err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}

	query := h.db.WithContext(c.UserContext())
	if withRelations {
		query = query.Preload("Items").Preload("Customer")
	}

	var order models.Order
	if err := query.First(&order, "id = ? AND user_id = ?", id, actor.EffectiveUserID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (h *OrderHandler) generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
}
