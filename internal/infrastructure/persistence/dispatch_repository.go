package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormDispatchRepository implements DispatchRepository using GORM
type GormDispatchRepository struct {
	db *gorm.DB
}

// NewGormDispatchRepository creates a new GormDispatchRepository
func NewGormDispatchRepository(db *gorm.DB) *GormDispatchRepository {
	return &GormDispatchRepository{db: db}
}

// FindByID finds a dispatch with its items
func (r *GormDispatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Dispatch, error) {
	var d inventory.Dispatch
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&d, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &d, nil
}

// FindByIDForUpdate locks the dispatch row for the current transaction.
// Items are loaded separately; FOR UPDATE cannot span the preload.
func (r *GormDispatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Dispatch, error) {
	var d inventory.Dispatch
	if err := forUpdate(r.db.WithContext(ctx)).First(&d, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if err := r.db.WithContext(ctx).
		Where("dispatch_id = ?", id).
		Order("created_at asc").
		Find(&d.Items).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// MaxNumberForYear returns the highest dispatch sequence used in a year
func (r *GormDispatchRepository) MaxNumberForYear(ctx context.Context, year int) (int, error) {
	return maxDocumentNumber(r.db.WithContext(ctx), &inventory.Dispatch{}, "dispatch_no", "DISP", year)
}

// List returns dispatches matching the filter
func (r *GormDispatchRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Dispatch], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.Dispatch{}).
		Preload("Items")
	if customerID, ok := filter.Filters["customer_id"]; ok {
		query = query.Where("customer_id = ?", customerID)
	}
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return paginate[inventory.Dispatch](query, filter)
}

// Save creates or updates a dispatch and its items. Items never change after
// creation, so the update path touches only the document row.
func (r *GormDispatchRepository) Save(ctx context.Context, d *inventory.Dispatch) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.Dispatch{}).
		Where("id = ?", d.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return r.db.WithContext(ctx).Create(d).Error
	}
	res := r.db.WithContext(ctx).
		Model(&inventory.Dispatch{}).
		Where("id = ? AND version < ?", d.ID, d.Version).
		Select("*").
		Omit("id", "created_at", "Items").
		Updates(d)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
