package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/services"
	"github.com/example/stockroute/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProductHandler manages product CRUD and stock movements.
type ProductHandler struct {
	db        *gorm.DB
	inventory *services.InventoryService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, inventory *services.InventoryService) *ProductHandler {
	return &ProductHandler{db: db, inventory: inventory}
}

type productRequest struct {
	Name     string           `json:"name" validate:"required"`
	Category string           `json:"category"`
	Unit     string           `json:"unit"`
	Quantity *int             `json:"quantity" validate:"omitempty,gte=0"`
	Price    *decimal.Decimal `json:"price"`
	ImageURL string           `json:"image_url" validate:"omitempty,url"`
}

func (r productRequest) apply(product *models.Product) error {
	product.Name = strings.TrimSpace(r.Name)
	product.Category = r.Category
	product.Unit = r.Unit
	product.ImageURL = r.ImageURL
	if r.Quantity != nil {
		product.Quantity = *r.Quantity
	}
	if r.Price != nil {
		if r.Price.IsNegative() {
			return apperr.New(apperr.CodeValidation, "price cannot be negative")
		}
		product.Price = *r.Price
	}
	return nil
}

// ListProducts returns the shop's products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	query := h.db.WithContext(c.UserContext()).Where("user_id = ?", actor.EffectiveUserID())
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+search+"%")
	}
	if c.QueryBool("in_stock") {
		query = query.Where("quantity > 0")
	}

	var products []models.Product
	if err := query.Order("created_at desc").Find(&products).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// GetProduct returns a single product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// CreateProduct adds a product to the shop's inventory.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	product := models.Product{UserID: actor.EffectiveUserID(), Price: decimal.Zero}
	if err := req.apply(&product); err != nil {
		return err
	}
	if err := h.db.WithContext(c.UserContext()).Create(&product).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct replaces a product's fields.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	product, err := h.load(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}
	if err := req.apply(product); err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Save(product).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	product, err := h.load(c)
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Delete(product).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "product deleted"})
}

type restockRequest struct {
	Items []services.RestockLine `json:"items" validate:"required,min=1,dive"`
}

// Restock adds stock and records a restock history entry.
func (h *ProductHandler) Restock(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req restockRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	result, err := h.inventory.Restock(c.UserContext(), actor.EffectiveUserID(), req.Items)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}

// EmptyStock zeroes all stock. An audit failure is returned as a warning
// alongside the applied change.
func (h *ProductHandler) EmptyStock(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	result, err := h.inventory.EmptyStock(c.UserContext(), actor.EffectiveUserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}

// ImportProducts creates or updates products from an uploaded xlsx file.
func (h *ProductHandler) ImportProducts(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperr.New(apperr.CodeValidation, "excel file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "unable to open excel file")
	}
	defer file.Close()

	result, err := h.inventory.ImportProducts(c.UserContext(), actor.EffectiveUserID(), file)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}

// ExportProducts downloads the inventory as an xlsx workbook.
func (h *ProductHandler) ExportProducts(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	buf, err := h.inventory.ExportProducts(c.UserContext(), actor.EffectiveUserID())
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="inventory.xlsx"`)
	return c.Send(buf.Bytes())
}

// ListRestockHistory returns the shop's restock audit log, newest first.
func (h *ProductHandler) ListRestockHistory(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var history []models.RestockHistory
	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ?", actor.EffectiveUserID()).
		Order("created_at desc").
		Find(&history).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": history})
}

func (h *ProductHandler) load(c *fiber.Ctx) (*models.Product, error) {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return nil, err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := h.db.WithContext(c.UserContext()).
		First(&product, "id = ? AND user_id = ?", id, actor.EffectiveUserID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// RegisterProductRoutes attaches product routes to router. Fixed paths are
// registered before /:id.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router) {
	router.Get("/", h.ListProducts)
	router.Post("/", h.CreateProduct)
	router.Get("/export", h.ExportProducts)
	router.Post("/restock", h.Restock)
	router.Post("/empty-stock", h.EmptyStock)
	router.Post("/import", h.ImportProducts)
	router.Get("/:id", h.GetProduct)
	router.Put("/:id", h.UpdateProduct)
	router.Delete("/:id", h.DeleteProduct)
}
