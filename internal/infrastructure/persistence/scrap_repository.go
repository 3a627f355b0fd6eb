package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormScrapRepository implements ScrapRepository using GORM
type GormScrapRepository struct {
	db *gorm.DB
}

// NewGormScrapRepository creates a new GormScrapRepository
func NewGormScrapRepository(db *gorm.DB) *GormScrapRepository {
	return &GormScrapRepository{db: db}
}

// FindByID finds a scrap record with its items and pieces
func (r *GormScrapRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Scrap, error) {
	var s inventory.Scrap
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Pieces").
		First(&s, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

// FindByIDForUpdate locks the scrap row for the current transaction
func (r *GormScrapRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Scrap, error) {
	var s inventory.Scrap
	if err := forUpdate(r.db.WithContext(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if err := r.db.WithContext(ctx).
		Preload("Pieces").
		Where("scrap_id = ?", id).
		Order("created_at asc").
		Find(&s.Items).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// MaxNumberForYear returns the highest scrap sequence used in a year
func (r *GormScrapRepository) MaxNumberForYear(ctx context.Context, year int) (int, error) {
	return maxDocumentNumber(r.db.WithContext(ctx), &inventory.Scrap{}, "scrap_no", "SCR", year)
}

// List returns scrap records matching the filter
func (r *GormScrapRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Scrap], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.Scrap{}).
		Preload("Items").
		Preload("Items.Pieces")
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return paginate[inventory.Scrap](query, filter)
}

// FindByStockIDs returns live scrap records touching any of the stock rows
func (r *GormScrapRepository) FindByStockIDs(ctx context.Context, stockIDs []uuid.UUID) ([]inventory.Scrap, error) {
	if len(stockIDs) == 0 {
		return []inventory.Scrap{}, nil
	}
	var scraps []inventory.Scrap
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Pieces").
		Where("status = ? AND id IN (?)",
			inventory.ScrapStatusCompleted,
			r.db.Model(&inventory.ScrapItem{}).
				Select("scrap_id").
				Where("stock_id IN ?", stockIDs)).
		Order("created_at asc").
		Find(&scraps).Error; err != nil {
		return nil, err
	}
	return scraps, nil
}

// Save creates or updates a scrap record and its items. Items never change
// after creation, so the update path touches only the document row.
func (r *GormScrapRepository) Save(ctx context.Context, s *inventory.Scrap) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.Scrap{}).
		Where("id = ?", s.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return r.db.WithContext(ctx).Create(s).Error
	}
	res := r.db.WithContext(ctx).
		Model(&inventory.Scrap{}).
		Where("id = ? AND version < ?", s.ID, s.Version).
		Select("*").
		Omit("id", "created_at", "Items").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
