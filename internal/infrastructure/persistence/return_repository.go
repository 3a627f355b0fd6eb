package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormReturnRepository implements ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// FindByID finds a return with its items
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Return, error) {
	var ret inventory.Return
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Rolls").
		Preload("Bundles").
		First(&ret, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &ret, nil
}

// FindByIDForUpdate locks the return row for the current transaction
func (r *GormReturnRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Return, error) {
	var ret inventory.Return
	if err := forUpdate(r.db.WithContext(ctx)).First(&ret, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if err := r.db.WithContext(ctx).
		Where("return_id = ?", id).
		Order("created_at asc").
		Find(&ret.Items).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("return_id = ?", id).
		Order("created_at asc").
		Find(&ret.Rolls).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("return_id = ?", id).
		Order("created_at asc").
		Find(&ret.Bundles).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

// MaxNumberForYear returns the highest return sequence used in a year
func (r *GormReturnRepository) MaxNumberForYear(ctx context.Context, year int) (int, error) {
	return maxDocumentNumber(r.db.WithContext(ctx), &inventory.Return{}, "return_no", "RET", year)
}

// List returns returns matching the filter
func (r *GormReturnRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Return], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.Return{}).
		Preload("Items")
	if dispatchID, ok := filter.Filters["dispatch_id"]; ok {
		query = query.Where("dispatch_id = ?", dispatchID)
	}
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return paginate[inventory.Return](query, filter)
}

// Save creates or updates a return and its items. Items never change after
// creation, so the update path touches only the document row.
func (r *GormReturnRepository) Save(ctx context.Context, ret *inventory.Return) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.Return{}).
		Where("id = ?", ret.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return r.db.WithContext(ctx).Create(ret).Error
	}
	res := r.db.WithContext(ctx).
		Model(&inventory.Return{}).
		Where("id = ? AND version < ?", ret.ID, ret.Version).
		Select("*").
		Omit("id", "created_at", "Items", "Rolls", "Bundles").
		Updates(ret)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
