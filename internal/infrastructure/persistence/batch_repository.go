package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID, including soft-deleted rows
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var b inventory.Batch
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &b, nil
}

// FindByIDForUpdate locks the batch row for the current transaction
func (r *GormBatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var b inventory.Batch
	if err := forUpdate(r.db.WithContext(ctx)).First(&b, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &b, nil
}

// FindByCode finds a live batch by its unique code
func (r *GormBatchRepository) FindByCode(ctx context.Context, code string) (*inventory.Batch, error) {
	var b inventory.Batch
	if err := r.db.WithContext(ctx).
		Where("batch_code = ? AND deleted_at IS NULL", code).
		First(&b).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &b, nil
}

// MaxBatchNoForYear returns the highest batch number used for a variant in
// the given calendar year, counting reverted batches so numbers are never
// reused
func (r *GormBatchRepository) MaxBatchNoForYear(ctx context.Context, variantID uuid.UUID, year int) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&inventory.Batch{}).
		Select("MAX(batch_no)").
		Where("product_variant_id = ? AND EXTRACT(YEAR FROM production_date) = ?", variantID, year).
		Scan(&max).Error
	if err != nil {
		// SQLite has no EXTRACT
		err = r.db.WithContext(ctx).
			Model(&inventory.Batch{}).
			Select("MAX(batch_no)").
			Where("product_variant_id = ? AND CAST(strftime('%Y', production_date) AS INTEGER) = ?", variantID, year).
			Scan(&max).Error
		if err != nil {
			return 0, err
		}
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// List returns live batches matching the filter
func (r *GormBatchRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Batch], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.Batch{}).
		Where("deleted_at IS NULL")
	if variantID, ok := filter.Filters["product_variant_id"]; ok {
		query = query.Where("product_variant_id = ?", variantID)
	}
	return paginate[inventory.Batch](query, filter)
}

// Save creates or updates a batch with an optimistic version check
func (r *GormBatchRepository) Save(ctx context.Context, b *inventory.Batch) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.Batch{}).
		Where("id = ?", b.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		err := r.db.WithContext(ctx).Create(b).Error
		if err != nil && isUniqueViolation(err) {
			return shared.ErrDuplicateBatchCode
		}
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&inventory.Batch{}).
		Where("id = ? AND version < ?", b.ID, b.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(b)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
