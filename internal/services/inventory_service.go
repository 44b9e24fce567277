package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/models"
)

// EmptyStockNote marks restock history rows written by EmptyStock.
const EmptyStockNote = "Empty Stock"

const inventorySheet = "Inventory"

var inventoryColumns = []string{"name", "category", "unit", "quantity", "price"}

// InventoryService groups the stock operations that also write the restock
// audit log, plus spreadsheet import and export.
type InventoryService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInventoryService(db *gorm.DB, log *logger.Logger) *InventoryService {
	if log == nil {
		log = logger.Nop()
	}
	return &InventoryService{db: db, log: log}
}

// RestockLine adds Quantity units to one product.
type RestockLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	Note      string    `json:"note"`
}

// StockResult reports a stock change. Warning is set when the change was
// applied but its audit entry could not be written.
type StockResult struct {
	Products []models.Product       `json:"products"`
	History  *models.RestockHistory `json:"history,omitempty"`
	Warning  string                 `json:"warning,omitempty"`
}

// Restock increments product quantities and appends one history entry.
func (s *InventoryService) Restock(ctx context.Context, userID uuid.UUID, lines []RestockLine) (*StockResult, error) {
	if len(lines) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "at least one item is required")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&products).Error; err != nil {
		return nil, apperr.Internal(err, "failed to load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, line := range lines {
		if _, ok := byID[line.ProductID]; !ok {
			return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
		}
	}

	items := make([]models.RestockItem, 0, len(lines))
	for _, line := range lines {
		product := byID[line.ProductID]
		err := s.db.WithContext(ctx).Model(product).
			UpdateColumn("quantity", gorm.Expr("quantity + ?", line.Quantity)).Error
		if err != nil {
			return nil, apperr.Internal(err, "failed to restock product")
		}
		product.Quantity += line.Quantity
		items = append(items, models.RestockItem{
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Unit:      product.Unit,
			Quantity:  line.Quantity,
			Note:      line.Note,
		})
	}

	return s.audit(ctx, userID, products, items), nil
}

// EmptyStock zeroes every product with stock left and records the cleared
// quantities under EmptyStockNote.
func (s *InventoryService) EmptyStock(ctx context.Context, userID uuid.UUID) (*StockResult, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("user_id = ? AND quantity > 0", userID).Find(&products).Error; err != nil {
		return nil, apperr.Internal(err, "failed to load products")
	}
	if len(products) == 0 {
		return &StockResult{Products: products}, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("user_id = ? AND quantity > 0", userID).
		UpdateColumn("quantity", 0).Error; err != nil {
		return nil, apperr.Internal(err, "failed to empty stock")
	}

	items := make([]models.RestockItem, 0, len(products))
	for i := range products {
		items = append(items, models.RestockItem{
			ProductID: products[i].ID,
			Name:      products[i].Name,
			Category:  products[i].Category,
			Unit:      products[i].Unit,
			Quantity:  products[i].Quantity,
			Note:      EmptyStockNote,
		})
		products[i].Quantity = 0
	}

	return s.audit(ctx, userID, products, items), nil
}

// audit writes the history entry. The stock change is already applied, so a
// failure here is reported on the result rather than returned.
func (s *InventoryService) audit(ctx context.Context, userID uuid.UUID, products []models.Product, items []models.RestockItem) *StockResult {
	history := models.RestockHistory{UserID: userID, Items: items}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		s.log.Warn(ctx, "restock history write failed", err)
		return &StockResult{Products: products, Warning: "stock updated but restock history could not be recorded"}
	}
	return &StockResult{Products: products, History: &history}
}

// ImportResult summarizes a spreadsheet import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportProducts reads the first sheet of an xlsx workbook. Rows are matched
// to existing products by case-insensitive name; bad rows are skipped and
// reported.
func (s *InventoryService) ImportProducts(ctx context.Context, userID uuid.UUID, r io.Reader) (*ImportResult, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "failed to parse excel file")
	}
	defer xl.Close()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil || len(rows) < 2 {
		return nil, apperr.New(apperr.CodeValidation, "excel must have a header and at least one row of data")
	}

	header, err := headerIndex(rows[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}

	result := &ImportResult{}
	var rowErrs error
	for i, row := range rows[1:] {
		line := i + 2
		product, err := parseProductRow(row, header)
		if err != nil {
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("row %d: %w", line, err))
			continue
		}

		var existing models.Product
		err = s.db.WithContext(ctx).
			Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(product.Name)).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Category = product.Category
			existing.Unit = product.Unit
			existing.Quantity = product.Quantity
			existing.Price = product.Price
			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				rowErrs = multierr.Append(rowErrs, fmt.Errorf("row %d: %w", line, err))
				continue
			}
			result.Updated++
		case errors.Is(err, gorm.ErrRecordNotFound):
			product.UserID = userID
			if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
				rowErrs = multierr.Append(rowErrs, fmt.Errorf("row %d: %w", line, err))
				continue
			}
			result.Created++
		default:
			return nil, apperr.Internal(err, "failed to look up product")
		}
	}

	for _, e := range multierr.Errors(rowErrs) {
		result.Errors = append(result.Errors, e.Error())
	}
	if result.Created+result.Updated == 0 {
		return nil, apperr.New(apperr.CodeValidation, "no valid rows found").WithDetails(result.Errors)
	}
	return result, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := map[string]int{}
	for i, cell := range header {
		index[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	for _, col := range []string{"name", "quantity"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing %q column", col)
		}
	}
	return index, nil
}

func parseProductRow(row []string, header map[string]int) (*models.Product, error) {
	cell := func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	product := &models.Product{
		Name:     cell("name"),
		Category: cell("category"),
		Unit:     cell("unit"),
		Price:    decimal.Zero,
	}
	if product.Name == "" {
		return nil, errors.New("name is empty")
	}

	qty, err := strconv.Atoi(cell("quantity"))
	if err != nil || qty < 0 {
		return nil, fmt.Errorf("invalid quantity %q", cell("quantity"))
	}
	product.Quantity = qty

	if raw := cell("price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("invalid price %q", raw)
		}
		product.Price = price
	}
	return product, nil
}

// ExportProducts renders the user's inventory as an xlsx workbook.
func (s *InventoryService) ExportProducts(ctx context.Context, userID uuid.UUID) (*bytes.Buffer, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&products).Error; err != nil {
		return nil, apperr.Internal(err, "failed to load products")
	}

	xl := excelize.NewFile()
	defer xl.Close()
	if err := xl.SetSheetName(xl.GetSheetName(0), inventorySheet); err != nil {
		return nil, apperr.Internal(err, "failed to prepare workbook")
	}

	header := make([]any, len(inventoryColumns))
	for i, col := range inventoryColumns {
		header[i] = col
	}
	if err := xl.SetSheetRow(inventorySheet, "A1", &header); err != nil {
		return nil, apperr.Internal(err, "failed to write header")
	}

	for i, p := range products {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{p.Name, p.Category, p.Unit, p.Quantity, p.Price.StringFixed(2)}
		if err := xl.SetSheetRow(inventorySheet, cellRef, &row); err != nil {
			return nil, apperr.Internal(err, "failed to write row")
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, apperr.Internal(err, "failed to render workbook")
	}
	return buf, nil
}
