package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ScrapStatus is the lifecycle state of a scrap record
type ScrapStatus string

const (
	ScrapStatusCompleted ScrapStatus = "COMPLETED"
	ScrapStatusReverted  ScrapStatus = "REVERTED"
)

// ScrapItemKind identifies what kind of inventory a scrap line writes off
type ScrapItemKind string

const (
	ScrapItemKindFullRoll ScrapItemKind = "FULL_ROLL"
	ScrapItemKindCutPiece ScrapItemKind = "CUT_PIECE"
	ScrapItemKindBundle   ScrapItemKind = "BUNDLE"
	ScrapItemKindSpare    ScrapItemKind = "SPARE"
)

// IsValid returns true if the scrap item kind is known
func (k ScrapItemKind) IsValid() bool {
	switch k {
	case ScrapItemKindFullRoll, ScrapItemKindCutPiece, ScrapItemKindBundle, ScrapItemKindSpare:
		return true
	}
	return false
}

// IsPieceKind returns true for kinds backed by per-piece records
func (k ScrapItemKind) IsPieceKind() bool {
	return k == ScrapItemKindCutPiece || k == ScrapItemKindSpare
}

// Scrap is a write-off record. A single scrap covers either quantity stock
// or piece stock, never both, and all lines share one product category.
type Scrap struct {
	shared.AuditedAggregateRoot
	ScrapNo    string      `gorm:"type:varchar(30);not null;uniqueIndex"`
	ScrapDate  time.Time   `gorm:"not null"`
	Reason     string      `gorm:"type:text;not null"`
	Status     ScrapStatus `gorm:"type:varchar(20);not null;default:'COMPLETED'"`
	Notes      string      `gorm:"type:text"`
	RevertedAt *time.Time  `gorm:""`
	RevertedBy *uuid.UUID  `gorm:"type:uuid"`
	Items      []ScrapItem `gorm:"foreignKey:ScrapID"`
}

// TableName returns the table name for GORM
func (Scrap) TableName() string {
	return "scraps"
}

// NewScrap creates a new scrap record
func NewScrap(scrapNo string, scrapDate time.Time, reason string, createdBy uuid.UUID) (*Scrap, error) {
	if scrapNo == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidScrap, "Scrap number cannot be empty")
	}
	if reason == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidScrap, "Scrap reason is required")
	}
	return &Scrap{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		ScrapNo:              scrapNo,
		ScrapDate:            scrapDate,
		Reason:               reason,
		Status:               ScrapStatusCompleted,
	}, nil
}

// IsReverted returns true if the scrap has been reverted
func (s *Scrap) IsReverted() bool {
	return s.Status == ScrapStatusReverted
}

// MarkReverted stamps the whole record reverted
func (s *Scrap) MarkReverted(by uuid.UUID, at time.Time) error {
	if s.IsReverted() {
		return shared.ErrAlreadyReverted
	}
	s.Status = ScrapStatusReverted
	s.RevertedAt = &at
	if by != uuid.Nil {
		s.RevertedBy = &by
	}
	s.Touch()
	s.IncrementVersion()
	return nil
}

// ScrapItem is one line of a scrap record
type ScrapItem struct {
	shared.BaseEntity
	ScrapID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	StockID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	BatchID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	ItemKind    ScrapItemKind    `gorm:"type:varchar(20);not null"`
	Quantity    int              `gorm:"not null"`
	TotalLength *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Notes       string           `gorm:"type:varchar(255)"`
	Pieces      []ScrapPiece     `gorm:"foreignKey:ScrapItemID"`
}

// TableName returns the table name for GORM
func (ScrapItem) TableName() string {
	return "scrap_items"
}

// NewScrapItem creates a new scrap line
func NewScrapItem(scrapID, stockID, batchID uuid.UUID, kind ScrapItemKind, quantity int) (*ScrapItem, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidScrap, "Unknown scrap item kind")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidScrap, "Scrap quantity must be positive")
	}
	return &ScrapItem{
		BaseEntity: shared.NewBaseEntity(),
		ScrapID:    scrapID,
		StockID:    stockID,
		BatchID:    batchID,
		ItemKind:   kind,
		Quantity:   quantity,
	}, nil
}

// ScrapPiece links a scrap line to the exact piece record written off, so a
// revert can restore precisely those pieces
type ScrapPiece struct {
	shared.BaseEntity
	ScrapItemID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	OriginalPieceID uuid.UUID        `gorm:"type:uuid;not null;index"`
	PieceKind       PieceKind        `gorm:"type:varchar(20);not null"`
	PieceCount      int              `gorm:"not null;default:1"`
	LengthMeters    *decimal.Decimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (ScrapPiece) TableName() string {
	return "scrap_pieces"
}

// NewScrapPiece records the write-off of one piece record
func NewScrapPiece(scrapItemID, originalPieceID uuid.UUID, kind PieceKind, pieceCount int) *ScrapPiece {
	return &ScrapPiece{
		BaseEntity:      shared.NewBaseEntity(),
		ScrapItemID:     scrapItemID,
		OriginalPieceID: originalPieceID,
		PieceKind:       kind,
		PieceCount:      pieceCount,
	}
}
