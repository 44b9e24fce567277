package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/utils"
)

// CustomerHandler manages the shop's customers.
type CustomerHandler struct {
	db *gorm.DB
}

// NewCustomerHandler constructs CustomerHandler.
func NewCustomerHandler(db *gorm.DB) *CustomerHandler {
	return &CustomerHandler{db: db}
}

type customerRequest struct {
	Name        string           `json:"name" validate:"required"`
	Contacts    []string         `json:"contacts" validate:"required,min=1,dive,required"`
	ShopName    string           `json:"shop_name"`
	ShopAddress string           `json:"shop_address"`
	Latitude    *float64         `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64         `json:"longitude" validate:"omitempty,longitude"`
	Credit      *decimal.Decimal `json:"credit"`
	Debit       *decimal.Decimal `json:"debit"`
	TotalSales  *decimal.Decimal `json:"total_sales"`
	Remarks     string           `json:"remarks"`
}

func (r customerRequest) apply(customer *models.Customer) {
	customer.Name = strings.TrimSpace(r.Name)
	contacts := make([]string, 0, len(r.Contacts))
	for _, contact := range r.Contacts {
		contacts = append(contacts, strings.TrimSpace(contact))
	}
	customer.Contacts = datatypes.NewJSONSlice(contacts)
	customer.ShopName = r.ShopName
	customer.ShopAddress = r.ShopAddress
	customer.Latitude = r.Latitude
	customer.Longitude = r.Longitude
	if r.Credit != nil {
		customer.Credit = *r.Credit
	}
	if r.Debit != nil {
		customer.Debit = *r.Debit
	}
	if r.TotalSales != nil {
		customer.TotalSales = *r.TotalSales
	}
	customer.Remarks = r.Remarks
}

// ListCustomers returns the shop's customers, optionally filtered by name.
func (h *CustomerHandler) ListCustomers(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	query := h.db.WithContext(c.UserContext()).Where("user_id = ?", actor.EffectiveUserID())
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		q := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(shop_name) LIKE ?", q, q)
	}

	var customers []models.Customer
	if err := query.Order("created_at desc").Find(&customers).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": customers})
}

func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": customer})
}

func (h *CustomerHandler) CreateCustomer(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req customerRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	customer := models.Customer{UserID: actor.EffectiveUserID()}
	req.apply(&customer)
	if err := h.db.WithContext(c.UserContext()).Create(&customer).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": customer})
}

func (h *CustomerHandler) UpdateCustomer(c *fiber.Ctx) error {
	customer, err := h.load(c)
	if err != nil {
		return err
	}

	var req customerRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	req.apply(customer)
	if err := h.db.WithContext(c.UserContext()).Save(customer).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": customer})
}

func (h *CustomerHandler) DeleteCustomer(c *fiber.Ctx) error {
	customer, err := h.load(c)
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Delete(customer).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "customer deleted"})
}

func (h *CustomerHandler) load(c *fiber.Ctx) (*models.Customer, error) {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return nil, err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}

	var customer models.Customer
	if err := h.db.WithContext(c.UserContext()).
		First(&customer, "id = ? AND user_id = ?", id, actor.EffectiveUserID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "customer not found")
		}
		return nil, err
	}
	return &customer, nil
}

// RegisterCustomerRoutes attaches customer routes to router.
func (h *CustomerHandler) RegisterCustomerRoutes(router fiber.Router) {
	router.Get("/", h.ListCustomers)
	router.Post("/", h.CreateCustomer)
	router.Get("/:id", h.GetCustomer)
	router.Put("/:id", h.UpdateCustomer)
	router.Delete("/:id", h.DeleteCustomer)
}
