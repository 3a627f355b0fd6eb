package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// hdpePieceMutableColumns is the whitelist of columns a piece update may
// touch. The lineage columns (created_by_transaction_id, original_stock_id)
// are write-once and deliberately absent.
var hdpePieceMutableColumns = []string{
	"status",
	"dispatch_id",
	"deleted_by_transaction_id",
	"notes",
	"version",
	"deleted_at",
	"updated_at",
}

// GormHdpeCutPieceRepository implements HdpeCutPieceRepository using GORM
type GormHdpeCutPieceRepository struct {
	db *gorm.DB
}

// NewGormHdpeCutPieceRepository creates a new GormHdpeCutPieceRepository
func NewGormHdpeCutPieceRepository(db *gorm.DB) *GormHdpeCutPieceRepository {
	return &GormHdpeCutPieceRepository{db: db}
}

// FindByID finds a piece by its ID, including soft-deleted rows
func (r *GormHdpeCutPieceRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.HdpeCutPiece, error) {
	var p inventory.HdpeCutPiece
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

// FindByIDsForUpdateNoWait locks the given pieces without waiting
func (r *GormHdpeCutPieceRepository) FindByIDsForUpdateNoWait(ctx context.Context, ids []uuid.UUID) ([]inventory.HdpeCutPiece, error) {
	if len(ids) == 0 {
		return []inventory.HdpeCutPiece{}, nil
	}
	var pieces []inventory.HdpeCutPiece
	if err := forUpdateNoWait(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Find(&pieces).Error; err != nil {
		return nil, translateLockError(err)
	}
	return pieces, nil
}

// FindInStockByStock returns live IN_STOCK pieces of a stock row
func (r *GormHdpeCutPieceRepository) FindInStockByStock(ctx context.Context, stockID uuid.UUID) ([]inventory.HdpeCutPiece, error) {
	var pieces []inventory.HdpeCutPiece
	if err := r.db.WithContext(ctx).
		Where("stock_id = ? AND status = ? AND deleted_at IS NULL", stockID, inventory.PieceStatusInStock).
		Order("created_at asc").
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// CountInStock counts live IN_STOCK pieces of a stock row
func (r *GormHdpeCutPieceRepository) CountInStock(ctx context.Context, stockID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.HdpeCutPiece{}).
		Where("stock_id = ? AND status = ? AND deleted_at IS NULL", stockID, inventory.PieceStatusInStock).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// FindByCreatedTransaction returns pieces created by a transaction,
// including soft-deleted rows
func (r *GormHdpeCutPieceRepository) FindByCreatedTransaction(ctx context.Context, txnID uuid.UUID) ([]inventory.HdpeCutPiece, error) {
	var pieces []inventory.HdpeCutPiece
	if err := r.db.WithContext(ctx).
		Where("created_by_transaction_id = ?", txnID).
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// FindByDeletedTransaction returns pieces consumed by a transaction
func (r *GormHdpeCutPieceRepository) FindByDeletedTransaction(ctx context.Context, txnID uuid.UUID) ([]inventory.HdpeCutPiece, error) {
	var pieces []inventory.HdpeCutPiece
	if err := r.db.WithContext(ctx).
		Where("deleted_by_transaction_id = ?", txnID).
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// SaveAll inserts new pieces
func (r *GormHdpeCutPieceRepository) SaveAll(ctx context.Context, pieces []*inventory.HdpeCutPiece) error {
	if len(pieces) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(pieces).Error
}

// Update persists mutable columns with an optimistic version check.
// Lineage columns never leave the whitelist.
func (r *GormHdpeCutPieceRepository) Update(ctx context.Context, p *inventory.HdpeCutPiece) error {
	res := r.db.WithContext(ctx).
		Model(&inventory.HdpeCutPiece{}).
		Where("id = ? AND version < ?", p.ID, p.Version).
		Select(hdpePieceMutableColumns).
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
