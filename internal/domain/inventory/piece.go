package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PieceStatus is the lifecycle state of an individual piece record.
// Transitions are forward-only (IN_STOCK to DISPATCHED/SCRAPPED/SOLD_OUT)
// except through an explicit revert.
type PieceStatus string

const (
	PieceStatusInStock    PieceStatus = "IN_STOCK"
	PieceStatusDispatched PieceStatus = "DISPATCHED"
	PieceStatusScrapped   PieceStatus = "SCRAPPED"
	PieceStatusSoldOut    PieceStatus = "SOLD_OUT"
)

// PieceKind discriminates the two piece tables in audit trails and scrap records
type PieceKind string

const (
	PieceKindHdpeCut       PieceKind = "hdpe_cut"
	PieceKindSprinklerSpare PieceKind = "sprinkler_spare"
)

// HdpeCutPiece is one physical length of cut HDPE pipe. CreatedByTransactionID
// and OriginalStockID are lineage fields: written once at insert, never
// updated. The repository layer enforces this by whitelisting mutable columns.
type HdpeCutPiece struct {
	shared.BaseEntity
	StockID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	LengthMeters           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status                 PieceStatus     `gorm:"type:varchar(20);not null;default:'IN_STOCK';index"`
	DispatchID             *uuid.UUID      `gorm:"type:uuid;index"`
	CreatedByTransactionID uuid.UUID       `gorm:"type:uuid;not null;index"`
	OriginalStockID        uuid.UUID       `gorm:"type:uuid;not null"`
	DeletedByTransactionID *uuid.UUID      `gorm:"type:uuid"`
	Notes                  string          `gorm:"type:varchar(255)"`
	Version                int             `gorm:"not null;default:1"`
	DeletedAt              *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (HdpeCutPiece) TableName() string {
	return "hdpe_cut_pieces"
}

// NewHdpeCutPiece creates a new cut piece with its immutable lineage
func NewHdpeCutPiece(stockID uuid.UUID, length decimal.Decimal, createdByTxnID uuid.UUID) (*HdpeCutPiece, error) {
	if stockID == uuid.Nil || createdByTxnID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidCut, "Stock and transaction IDs are required")
	}
	if length.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidCut, "Piece length must be positive")
	}
	return &HdpeCutPiece{
		BaseEntity:             shared.NewBaseEntity(),
		StockID:                stockID,
		LengthMeters:           length,
		Status:                 PieceStatusInStock,
		CreatedByTransactionID: createdByTxnID,
		OriginalStockID:        stockID,
		Version:                1,
	}, nil
}

// IsInStock returns true for live, available pieces
func (p *HdpeCutPiece) IsInStock() bool {
	return p.Status == PieceStatusInStock && p.DeletedAt == nil
}

// MarkDispatched transitions the piece to DISPATCHED. A nil dispatch ID is
// used by the re-cut path, where DISPATCHED means "subsumed by a new cut".
func (p *HdpeCutPiece) MarkDispatched(dispatchID *uuid.UUID) error {
	if !p.IsInStock() {
		return shared.NewDomainError(shared.CodeInvalidDispatch, "Piece is not in stock")
	}
	p.Status = PieceStatusDispatched
	p.DispatchID = dispatchID
	p.Touch()
	p.Version++
	return nil
}

// MarkScrapped transitions the piece to SCRAPPED
func (p *HdpeCutPiece) MarkScrapped() error {
	if !p.IsInStock() {
		return shared.NewDomainError(shared.CodeInvalidScrap, "Piece is not in stock")
	}
	p.Status = PieceStatusScrapped
	p.Touch()
	p.Version++
	return nil
}

// SoftDelete marks the piece sold out and records which transaction removed it
func (p *HdpeCutPiece) SoftDelete(byTxnID uuid.UUID, now time.Time) {
	p.Status = PieceStatusSoldOut
	p.DeletedAt = &now
	p.DeletedByTransactionID = &byTxnID
	p.Touch()
	p.Version++
}

// RestoreInStock puts the piece back in stock (revert path)
func (p *HdpeCutPiece) RestoreInStock() {
	p.Status = PieceStatusInStock
	p.DispatchID = nil
	p.DeletedAt = nil
	p.DeletedByTransactionID = nil
	p.Touch()
	p.Version++
}

// SprinklerSparePiece is a group of PieceCount indistinguishable loose
// sprinkler pieces. Groups at rest may hold many pieces; dispatching part of
// a group splits off single-piece records. Lineage fields are immutable.
type SprinklerSparePiece struct {
	shared.BaseEntity
	StockID                 uuid.UUID        `gorm:"type:uuid;not null;index"`
	PieceCount              int              `gorm:"not null"`
	PieceLengthMeters       *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Status                  PieceStatus      `gorm:"type:varchar(20);not null;default:'IN_STOCK';index"`
	DispatchID              *uuid.UUID       `gorm:"type:uuid;index"`
	ReservedByTransactionID *uuid.UUID       `gorm:"type:uuid;index"`
	ReservedAt              *time.Time       `gorm:""`
	CreatedByTransactionID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	OriginalStockID         uuid.UUID        `gorm:"type:uuid;not null"`
	DeletedByTransactionID  *uuid.UUID       `gorm:"type:uuid"`
	Notes                   string           `gorm:"type:varchar(255)"`
	Version                 int              `gorm:"not null;default:1"`
	DeletedAt               *time.Time       `gorm:"index"`
}

// TableName returns the table name for GORM
func (SprinklerSparePiece) TableName() string {
	return "sprinkler_spare_pieces"
}

// NewSprinklerSparePiece creates a new spare piece group
func NewSprinklerSparePiece(stockID uuid.UUID, pieceCount int, pieceLength *decimal.Decimal, createdByTxnID uuid.UUID) (*SprinklerSparePiece, error) {
	if stockID == uuid.Nil || createdByTxnID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidSplit, "Stock and transaction IDs are required")
	}
	if pieceCount < 1 {
		return nil, shared.NewDomainError(shared.CodeInvalidSplit, "Piece count must be at least 1")
	}
	return &SprinklerSparePiece{
		BaseEntity:             shared.NewBaseEntity(),
		StockID:                stockID,
		PieceCount:             pieceCount,
		PieceLengthMeters:      pieceLength,
		Status:                 PieceStatusInStock,
		CreatedByTransactionID: createdByTxnID,
		OriginalStockID:        stockID,
		Version:                1,
	}, nil
}

// IsInStock returns true for live, available groups
func (p *SprinklerSparePiece) IsInStock() bool {
	return p.Status == PieceStatusInStock && p.DeletedAt == nil
}

// IsReserved reports whether the group carries a live reservation held by a
// transaction other than the given one
func (p *SprinklerSparePiece) IsReserved(byTxnID uuid.UUID, timeout time.Duration, now time.Time) bool {
	if p.ReservedByTransactionID == nil || p.ReservedAt == nil {
		return false
	}
	if *p.ReservedByTransactionID == byTxnID {
		return false
	}
	return now.Sub(*p.ReservedAt) < timeout
}

// Reserve marks the group reserved by the given transaction
func (p *SprinklerSparePiece) Reserve(byTxnID uuid.UUID, now time.Time) {
	p.ReservedByTransactionID = &byTxnID
	p.ReservedAt = &now
	p.Touch()
	p.Version++
}

// ClearReservation releases the reservation fields
func (p *SprinklerSparePiece) ClearReservation() {
	p.ReservedByTransactionID = nil
	p.ReservedAt = nil
	p.Touch()
	p.Version++
}

// MarkDispatched transitions the group to DISPATCHED
func (p *SprinklerSparePiece) MarkDispatched(dispatchID uuid.UUID) error {
	if !p.IsInStock() {
		return shared.NewDomainError(shared.CodeInvalidDispatch, "Piece group is not in stock")
	}
	p.Status = PieceStatusDispatched
	p.DispatchID = &dispatchID
	p.Touch()
	p.Version++
	return nil
}

// MarkScrapped transitions the group to SCRAPPED
func (p *SprinklerSparePiece) MarkScrapped() error {
	if !p.IsInStock() {
		return shared.NewDomainError(shared.CodeInvalidScrap, "Piece group is not in stock")
	}
	p.Status = PieceStatusScrapped
	p.Touch()
	p.Version++
	return nil
}

// SplitOffDispatched creates a single-piece DISPATCHED record carrying the
// source group's lineage. One record per physical piece is the canonical
// representation for dispatched spares.
func (p *SprinklerSparePiece) SplitOffDispatched(dispatchID uuid.UUID) *SprinklerSparePiece {
	return &SprinklerSparePiece{
		BaseEntity:             shared.NewBaseEntity(),
		StockID:                p.StockID,
		PieceCount:             1,
		PieceLengthMeters:      p.PieceLengthMeters,
		Status:                 PieceStatusDispatched,
		DispatchID:             &dispatchID,
		CreatedByTransactionID: p.CreatedByTransactionID,
		OriginalStockID:        p.OriginalStockID,
		Version:                1,
	}
}

// ReduceCount shrinks the group when part of it is split off. The caller is
// responsible for creating the split-off records.
func (p *SprinklerSparePiece) ReduceCount(by int) error {
	if by <= 0 || by >= p.PieceCount {
		return shared.NewDomainError(shared.CodeInvalidDispatch, "Reduction must leave at least one piece in the group")
	}
	p.PieceCount -= by
	p.Touch()
	p.Version++
	return nil
}

// SoftDelete marks the group consumed and records the consuming transaction.
// CreatedByTransactionID is never touched.
func (p *SprinklerSparePiece) SoftDelete(byTxnID uuid.UUID, now time.Time) {
	p.Status = PieceStatusSoldOut
	p.DeletedAt = &now
	p.DeletedByTransactionID = &byTxnID
	p.ReservedByTransactionID = nil
	p.ReservedAt = nil
	p.Touch()
	p.Version++
}

// RestoreInStock puts the group back in stock (revert path)
func (p *SprinklerSparePiece) RestoreInStock() {
	p.Status = PieceStatusInStock
	p.DispatchID = nil
	p.DeletedAt = nil
	p.DeletedByTransactionID = nil
	p.Touch()
	p.Version++
}
