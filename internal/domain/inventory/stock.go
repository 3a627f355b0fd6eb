package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockType identifies the shape of an aggregate stock row
type StockType string

const (
	// StockTypeFullRoll is whole HDPE rolls; quantity maintained directly
	StockTypeFullRoll StockType = "FULL_ROLL"
	// StockTypeCutRoll is cut HDPE pieces; quantity derived from piece rows
	StockTypeCutRoll StockType = "CUT_ROLL"
	// StockTypeBundle is intact sprinkler bundles; quantity maintained directly
	StockTypeBundle StockType = "BUNDLE"
	// StockTypeSpare is loose sprinkler piece groups; quantity derived
	StockTypeSpare StockType = "SPARE"
)

// String returns the string representation of StockType
func (t StockType) String() string {
	return string(t)
}

// IsValid returns true if the stock type is known
func (t StockType) IsValid() bool {
	switch t {
	case StockTypeFullRoll, StockTypeCutRoll, StockTypeBundle, StockTypeSpare:
		return true
	}
	return false
}

// IsPieceBacked returns true for stock kinds whose quantity is derived from
// per-piece records (derivation Rule A)
func (t StockType) IsPieceBacked() bool {
	return t == StockTypeCutRoll || t == StockTypeSpare
}

// StockStatus is the aggregate stock lifecycle state
type StockStatus string

const (
	StockStatusInStock StockStatus = "IN_STOCK"
	StockStatusSoldOut StockStatus = "SOLD_OUT"
)

// InventoryStock is one aggregate row per (batch, variant, stock kind,
// shape). For FULL_ROLL and BUNDLE the quantity is authoritative; for
// CUT_ROLL and SPARE it is a denormalized count of IN_STOCK piece rows.
type InventoryStock struct {
	shared.BaseAggregateRoot
	BatchID                uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductVariantID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	StockType              StockType        `gorm:"type:varchar(20);not null;index"`
	Quantity               int              `gorm:"not null;default:0"`
	Status                 StockStatus      `gorm:"type:varchar(20);not null;default:'IN_STOCK'"`
	LengthPerUnit          *decimal.Decimal `gorm:"type:decimal(18,4)"`
	PiecesPerBundle        *int             `gorm:""`
	PieceLengthMeters      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ParentStockID          *uuid.UUID       `gorm:"type:uuid;index"`
	DeletedAt              *time.Time       `gorm:"index"`
	DeletedByTransactionID *uuid.UUID       `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (InventoryStock) TableName() string {
	return "inventory_stock"
}

// NewInventoryStock creates a new aggregate stock row
func NewInventoryStock(batchID, variantID uuid.UUID, stockType StockType, quantity int) (*InventoryStock, error) {
	if batchID == uuid.Nil || variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STOCK", "Batch and variant IDs are required")
	}
	if !stockType.IsValid() {
		return nil, shared.NewDomainError("INVALID_STOCK", "Unknown stock type")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_STOCK", "Quantity cannot be negative")
	}
	status := StockStatusInStock
	if quantity == 0 && !stockType.IsPieceBacked() {
		status = StockStatusSoldOut
	}
	return &InventoryStock{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BatchID:           batchID,
		ProductVariantID:  variantID,
		StockType:         stockType,
		Quantity:          quantity,
		Status:            status,
	}, nil
}

// IsDeleted returns true if the stock row is soft-deleted
func (s *InventoryStock) IsDeleted() bool {
	return s.DeletedAt != nil
}

// IsAvailable returns true for live, in-stock rows
func (s *InventoryStock) IsAvailable() bool {
	return !s.IsDeleted() && s.Status == StockStatusInStock && s.Quantity > 0
}

// Decrement reduces the directly-maintained quantity (FULL_ROLL, BUNDLE).
// When the quantity hits zero the row is marked sold out and soft-deleted.
func (s *InventoryStock) Decrement(qty int, now time.Time) error {
	if s.StockType.IsPieceBacked() {
		return shared.NewDomainError("INVALID_STOCK", "Piece-backed stock quantity is derived, not decremented")
	}
	if qty <= 0 {
		return shared.NewDomainError("INVALID_STOCK", "Decrement quantity must be positive")
	}
	if s.Quantity < qty {
		return shared.ErrInsufficientPieces
	}
	s.Quantity -= qty
	if s.Quantity == 0 {
		s.Status = StockStatusSoldOut
		s.DeletedAt = &now
	}
	s.Touch()
	s.IncrementVersion()
	return nil
}

// Increment raises the directly-maintained quantity, restoring a soft-deleted
// row if necessary
func (s *InventoryStock) Increment(qty int) error {
	if s.StockType.IsPieceBacked() {
		return shared.NewDomainError("INVALID_STOCK", "Piece-backed stock quantity is derived, not incremented")
	}
	if qty <= 0 {
		return shared.NewDomainError("INVALID_STOCK", "Increment quantity must be positive")
	}
	s.Quantity += qty
	s.Status = StockStatusInStock
	s.DeletedAt = nil
	s.DeletedByTransactionID = nil
	s.Touch()
	s.IncrementVersion()
	return nil
}

// ApplyDerivedQuantity overwrites the quantity of a piece-backed row with
// the freshly computed IN_STOCK piece count (derivation Rule A). Zero marks
// the row sold out and soft-deleted; a positive count restores it.
func (s *InventoryStock) ApplyDerivedQuantity(count int, byTransactionID *uuid.UUID, now time.Time) {
	s.Quantity = count
	if count == 0 {
		s.Status = StockStatusSoldOut
		if s.DeletedAt == nil {
			s.DeletedAt = &now
			s.DeletedByTransactionID = byTransactionID
		}
	} else {
		s.Status = StockStatusInStock
		s.DeletedAt = nil
		s.DeletedByTransactionID = nil
	}
	s.Touch()
	s.IncrementVersion()
}

// Restore clears the soft-delete marker and puts the row back in stock
func (s *InventoryStock) Restore() {
	s.Status = StockStatusInStock
	s.DeletedAt = nil
	s.DeletedByTransactionID = nil
	s.Touch()
	s.IncrementVersion()
}

// SoftDelete marks the row sold out and deleted
func (s *InventoryStock) SoftDelete(byTransactionID *uuid.UUID, now time.Time) {
	s.Status = StockStatusSoldOut
	s.DeletedAt = &now
	s.DeletedByTransactionID = byTransactionID
	s.Touch()
	s.IncrementVersion()
}
