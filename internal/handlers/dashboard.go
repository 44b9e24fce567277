package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
)

// LowStockThreshold is the quantity at or below which a product counts as
// low on stock.
const LowStockThreshold = 5

// DashboardHandler serves aggregate figures for the shop dashboard.
type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Stats returns counts and totals scoped to the acting shop.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}
	userID := actor.EffectiveUserID()
	db := h.db.WithContext(c.UserContext())

	var totalCustomers, totalProducts, lowStock, pendingPartners int64
	if err := db.Model(&models.Customer{}).Where("user_id = ?", userID).Count(&totalCustomers).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Product{}).Where("user_id = ?", userID).Count(&totalProducts).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Product{}).
		Where("user_id = ? AND quantity <= ?", userID, LowStockThreshold).
		Count(&lowStock).Error; err != nil {
		return err
	}
	if err := db.Model(&models.DeliveryPartner{}).
		Where("created_by_user = ? AND status = ?", userID, models.PartnerPending).
		Count(&pendingPartners).Error; err != nil {
		return err
	}

	// Orders by delivery status
	type statusCount struct {
		DeliveryStatus string `json:"delivery_status"`
		Count          int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Where("user_id = ?", userID).
		Select("delivery_status, count(*) as count").
		Group("delivery_status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}
	ordersByDelivery := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByDelivery[sc.DeliveryStatus] = sc.Count
	}

	var unsettled float64
	if err := db.Model(&models.Order{}).
		Where("user_id = ? AND status = ?", userID, models.OrderUnsettled).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&unsettled).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_customers":       totalCustomers,
			"total_products":        totalProducts,
			"low_stock_products":    lowStock,
			"pending_partners":      pendingPartners,
			"orders_by_delivery":    ordersByDelivery,
			"unsettled_order_total": decimal.NewFromFloat(unsettled).StringFixed(2),
		},
	})
}
