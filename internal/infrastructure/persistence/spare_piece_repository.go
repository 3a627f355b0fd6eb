package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// sparePieceMutableColumns is the whitelist of columns a group update may
// touch; the lineage columns are write-once and absent
var sparePieceMutableColumns = []string{
	"piece_count",
	"status",
	"dispatch_id",
	"reserved_by_transaction_id",
	"reserved_at",
	"deleted_by_transaction_id",
	"notes",
	"version",
	"deleted_at",
	"updated_at",
}

// GormSprinklerSparePieceRepository implements SprinklerSparePieceRepository
// using GORM
type GormSprinklerSparePieceRepository struct {
	db *gorm.DB
}

// NewGormSprinklerSparePieceRepository creates a new GormSprinklerSparePieceRepository
func NewGormSprinklerSparePieceRepository(db *gorm.DB) *GormSprinklerSparePieceRepository {
	return &GormSprinklerSparePieceRepository{db: db}
}

// FindByID finds a piece group by its ID, including soft-deleted rows
func (r *GormSprinklerSparePieceRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.SprinklerSparePiece, error) {
	var p inventory.SprinklerSparePiece
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

// FindByIDsForUpdateNoWait locks the given groups without waiting
func (r *GormSprinklerSparePieceRepository) FindByIDsForUpdateNoWait(ctx context.Context, ids []uuid.UUID) ([]inventory.SprinklerSparePiece, error) {
	if len(ids) == 0 {
		return []inventory.SprinklerSparePiece{}, nil
	}
	var pieces []inventory.SprinklerSparePiece
	if err := forUpdateNoWait(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Find(&pieces).Error; err != nil {
		return nil, translateLockError(err)
	}
	return pieces, nil
}

// FindInStockByStock returns live IN_STOCK groups of a stock row
func (r *GormSprinklerSparePieceRepository) FindInStockByStock(ctx context.Context, stockID uuid.UUID) ([]inventory.SprinklerSparePiece, error) {
	var pieces []inventory.SprinklerSparePiece
	if err := r.db.WithContext(ctx).
		Where("stock_id = ? AND status = ? AND deleted_at IS NULL", stockID, inventory.PieceStatusInStock).
		Order("piece_count desc, created_at asc").
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// CountInStock counts live IN_STOCK groups of a stock row
func (r *GormSprinklerSparePieceRepository) CountInStock(ctx context.Context, stockID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.SprinklerSparePiece{}).
		Where("stock_id = ? AND status = ? AND deleted_at IS NULL", stockID, inventory.PieceStatusInStock).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SumInStock sums piece counts over live IN_STOCK groups of a stock row
func (r *GormSprinklerSparePieceRepository) SumInStock(ctx context.Context, stockID uuid.UUID) (int, error) {
	var sum *int
	if err := r.db.WithContext(ctx).
		Model(&inventory.SprinklerSparePiece{}).
		Select("SUM(piece_count)").
		Where("stock_id = ? AND status = ? AND deleted_at IS NULL", stockID, inventory.PieceStatusInStock).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// FindByCreatedTransaction returns groups created by a transaction,
// including soft-deleted rows
func (r *GormSprinklerSparePieceRepository) FindByCreatedTransaction(ctx context.Context, txnID uuid.UUID) ([]inventory.SprinklerSparePiece, error) {
	var pieces []inventory.SprinklerSparePiece
	if err := r.db.WithContext(ctx).
		Where("created_by_transaction_id = ?", txnID).
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// FindByDeletedTransaction returns groups consumed by a transaction
func (r *GormSprinklerSparePieceRepository) FindByDeletedTransaction(ctx context.Context, txnID uuid.UUID) ([]inventory.SprinklerSparePiece, error) {
	var pieces []inventory.SprinklerSparePiece
	if err := r.db.WithContext(ctx).
		Where("deleted_by_transaction_id = ?", txnID).
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// ReleaseStaleReservations clears reservations older than the cutoff
func (r *GormSprinklerSparePieceRepository) ReleaseStaleReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&inventory.SprinklerSparePiece{}).
		Where("reserved_at IS NOT NULL AND reserved_at < ?", cutoff).
		Updates(map[string]interface{}{
			"reserved_by_transaction_id": nil,
			"reserved_at":                nil,
			"updated_at":                 time.Now(),
		})
	return res.RowsAffected, res.Error
}

// SaveAll inserts new piece groups
func (r *GormSprinklerSparePieceRepository) SaveAll(ctx context.Context, pieces []*inventory.SprinklerSparePiece) error {
	if len(pieces) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(pieces).Error
}

// Update persists mutable columns with an optimistic version check.
// Lineage columns never leave the whitelist.
func (r *GormSprinklerSparePieceRepository) Update(ctx context.Context, p *inventory.SprinklerSparePiece) error {
	res := r.db.WithContext(ctx).
		Model(&inventory.SprinklerSparePiece{}).
		Where("id = ? AND version < ?", p.ID, p.Version).
		Select(sparePieceMutableColumns).
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
