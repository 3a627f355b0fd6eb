package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormInventoryStockRepository implements InventoryStockRepository using GORM
type GormInventoryStockRepository struct {
	db *gorm.DB
}

// NewGormInventoryStockRepository creates a new GormInventoryStockRepository
func NewGormInventoryStockRepository(db *gorm.DB) *GormInventoryStockRepository {
	return &GormInventoryStockRepository{db: db}
}

// FindByID finds a stock row by its ID, including soft-deleted rows
func (r *GormInventoryStockRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryStock, error) {
	var s inventory.InventoryStock
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

// FindByIDForUpdate locks the stock row for the current transaction
func (r *GormInventoryStockRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.InventoryStock, error) {
	var s inventory.InventoryStock
	if err := forUpdate(r.db.WithContext(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

// FindByBatch returns all stock rows of a batch, including soft-deleted ones
func (r *GormInventoryStockRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]inventory.InventoryStock, error) {
	var stocks []inventory.InventoryStock
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at asc").
		Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

// FindSibling finds the live stock row of the given type under the same batch
func (r *GormInventoryStockRepository) FindSibling(ctx context.Context, batchID uuid.UUID, stockType inventory.StockType) (*inventory.InventoryStock, error) {
	var s inventory.InventoryStock
	if err := r.db.WithContext(ctx).
		Where("batch_id = ? AND stock_type = ? AND deleted_at IS NULL", batchID, stockType).
		First(&s).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

// List returns live stock rows matching the filter
func (r *GormInventoryStockRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.InventoryStock], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.InventoryStock{}).
		Where("deleted_at IS NULL")
	if stockType, ok := filter.Filters["stock_type"]; ok {
		query = query.Where("stock_type = ?", stockType)
	}
	if batchID, ok := filter.Filters["batch_id"]; ok {
		query = query.Where("batch_id = ?", batchID)
	}
	if variantID, ok := filter.Filters["product_variant_id"]; ok {
		query = query.Where("product_variant_id = ?", variantID)
	}
	return paginate[inventory.InventoryStock](query, filter)
}

// Save creates or updates a stock row with an optimistic version check
func (r *GormInventoryStockRepository) Save(ctx context.Context, s *inventory.InventoryStock) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.InventoryStock{}).
		Where("id = ?", s.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return r.db.WithContext(ctx).Create(s).Error
	}
	res := r.db.WithContext(ctx).
		Model(&inventory.InventoryStock{}).
		Where("id = ? AND version < ?", s.ID, s.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
