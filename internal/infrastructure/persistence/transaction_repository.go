package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormInventoryTransactionRepository implements InventoryTransactionRepository
// using GORM. The log is append-only: the only updates ever issued are the
// cut-piece detail backfill and the reverted markers.
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// FindByID finds a log entry by its ID
func (r *GormInventoryTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryTransaction, error) {
	var t inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &t, nil
}

// FindByDispatch returns log entries of a dispatch
func (r *GormInventoryTransactionRepository) FindByDispatch(ctx context.Context, dispatchID uuid.UUID) ([]inventory.InventoryTransaction, error) {
	var txns []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("dispatch_id = ?", dispatchID).
		Order("created_at asc").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindByReturn returns log entries of a return
func (r *GormInventoryTransactionRepository) FindByReturn(ctx context.Context, returnID uuid.UUID) ([]inventory.InventoryTransaction, error) {
	var txns []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("return_id = ?", returnID).
		Order("created_at asc").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindActiveByBatch returns the batch's non-reverted log entries
func (r *GormInventoryTransactionRepository) FindActiveByBatch(ctx context.Context, batchID uuid.UUID) ([]inventory.InventoryTransaction, error) {
	var txns []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("batch_id = ? AND reverted_at IS NULL", batchID).
		Order("created_at asc").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindByStock returns log entries touching a stock row on either side,
// newest first
func (r *GormInventoryTransactionRepository) FindByStock(ctx context.Context, stockID uuid.UUID, filter shared.Filter) (shared.Paginated[inventory.InventoryTransaction], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Where("from_stock_id = ? OR to_stock_id = ?", stockID, stockID)
	return paginate[inventory.InventoryTransaction](query, filter)
}

// FindByBatch returns log entries of a batch, newest first
func (r *GormInventoryTransactionRepository) FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) (shared.Paginated[inventory.InventoryTransaction], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Where("batch_id = ?", batchID)
	return paginate[inventory.InventoryTransaction](query, filter)
}

// List returns log entries matching the filter, newest first
func (r *GormInventoryTransactionRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.InventoryTransaction], error) {
	query := r.db.WithContext(ctx).Model(&inventory.InventoryTransaction{})
	if txType, ok := filter.Filters["transaction_type"]; ok {
		query = query.Where("transaction_type = ?", txType)
	}
	if dispatchID, ok := filter.Filters["dispatch_id"]; ok {
		query = query.Where("dispatch_id = ?", dispatchID)
	}
	return paginate[inventory.InventoryTransaction](query, filter)
}

// FindByDateRange returns log entries created within [from, to), newest first
func (r *GormInventoryTransactionRepository) FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) (shared.Paginated[inventory.InventoryTransaction], error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Where("created_at >= ? AND created_at < ?", from, to)
	if txType, ok := filter.Filters["transaction_type"]; ok {
		query = query.Where("transaction_type = ?", txType)
	}
	return paginate[inventory.InventoryTransaction](query, filter)
}

// Save inserts a new log entry
func (r *GormInventoryTransactionRepository) Save(ctx context.Context, t *inventory.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// UpdateCutPieceDetails backfills the piece details of a freshly created
// entry within the same database transaction
func (r *GormInventoryTransactionRepository) UpdateCutPieceDetails(ctx context.Context, id uuid.UUID, details inventory.CutPieceDetails) error {
	res := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cut_piece_details": details,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkReverted stamps the revert markers on a log entry. Writing only when
// reverted_at is still NULL makes concurrent reverts lose cleanly.
func (r *GormInventoryTransactionRepository) MarkReverted(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Where("id = ? AND reverted_at IS NULL", id).
		Updates(map[string]interface{}{
			"reverted_at": at,
			"reverted_by": by,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrAlreadyReverted
	}
	return nil
}
