package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReturnStatus is the lifecycle state of a return document
type ReturnStatus string

const (
	ReturnStatusCompleted ReturnStatus = "COMPLETED"
	ReturnStatusReverted  ReturnStatus = "REVERTED"
)

// ReturnItemKind identifies what kind of inventory a return line brings back
type ReturnItemKind string

const (
	ReturnItemKindFullRoll ReturnItemKind = "FULL_ROLL"
	ReturnItemKindCutRoll  ReturnItemKind = "CUT_ROLL"
	ReturnItemKindBundle   ReturnItemKind = "BUNDLE"
	ReturnItemKindSpare    ReturnItemKind = "SPARE"
)

// IsValid returns true if the return item kind is known
func (k ReturnItemKind) IsValid() bool {
	switch k {
	case ReturnItemKindFullRoll, ReturnItemKindCutRoll, ReturnItemKindBundle, ReturnItemKindSpare:
		return true
	}
	return false
}

// Return is a customer return document. Returned goods never rejoin the
// batch they were produced in; every return opens fresh batches, one per
// product variant on the document.
type Return struct {
	shared.AuditedAggregateRoot
	ReturnNo     string         `gorm:"type:varchar(30);not null;uniqueIndex"`
	CustomerID   *uuid.UUID     `gorm:"type:uuid;index"`
	CustomerName string         `gorm:"type:varchar(200)"`
	DispatchID   *uuid.UUID     `gorm:"type:uuid;index"`
	ReturnDate   time.Time      `gorm:"not null"`
	Reason       string         `gorm:"type:text"`
	Status       ReturnStatus   `gorm:"type:varchar(20);not null;default:'COMPLETED'"`
	Notes        string         `gorm:"type:text"`
	RevertedAt   *time.Time     `gorm:""`
	RevertedBy   *uuid.UUID     `gorm:"type:uuid"`
	Items        []ReturnItem   `gorm:"foreignKey:ReturnID"`
	Rolls        []ReturnRoll   `gorm:"foreignKey:ReturnID"`
	Bundles      []ReturnBundle `gorm:"foreignKey:ReturnID"`
}

// TableName returns the table name for GORM
func (Return) TableName() string {
	return "returns"
}

// NewReturn creates a new return document
func NewReturn(returnNo string, returnDate time.Time, createdBy uuid.UUID) (*Return, error) {
	if returnNo == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidReturn, "Return number cannot be empty")
	}
	return &Return{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		ReturnNo:             returnNo,
		ReturnDate:           returnDate,
		Status:               ReturnStatusCompleted,
	}, nil
}

// IsReverted returns true if the return has been reverted
func (r *Return) IsReverted() bool {
	return r.Status == ReturnStatusReverted
}

// MarkReverted stamps the whole document reverted
func (r *Return) MarkReverted(by uuid.UUID, at time.Time) error {
	if r.IsReverted() {
		return shared.ErrAlreadyReverted
	}
	r.Status = ReturnStatusReverted
	r.RevertedAt = &at
	if by != uuid.Nil {
		r.RevertedBy = &by
	}
	r.Touch()
	r.IncrementVersion()
	return nil
}

// ReturnItem is one line of a return as the customer reported it. The line
// names the product, not a batch; BatchID records the fresh batch the return
// opened for that product variant.
type ReturnItem struct {
	shared.BaseEntity
	ReturnID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	BatchID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductVariantID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	ItemKind          ReturnItemKind   `gorm:"type:varchar(20);not null"`
	Quantity          int              `gorm:"not null"`
	PieceCount        *int             `gorm:""`
	PieceLengthMeters *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Condition         string           `gorm:"type:varchar(100)"`
	Notes             string           `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (ReturnItem) TableName() string {
	return "return_items"
}

// NewReturnItem creates a new return line
func NewReturnItem(returnID, batchID, variantID uuid.UUID, kind ReturnItemKind, quantity int) (*ReturnItem, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidReturn, "Unknown return item kind")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidReturn, "Return quantity must be positive")
	}
	return &ReturnItem{
		BaseEntity:       shared.NewBaseEntity(),
		ReturnID:         returnID,
		BatchID:          batchID,
		ProductVariantID: variantID,
		ItemKind:         kind,
		Quantity:         quantity,
	}, nil
}

// ReturnRoll records the stock row a batch of returned rolls landed in, one
// row per distinct roll length. A revert walks these rows to find exactly
// the stocks the return created.
type ReturnRoll struct {
	shared.BaseEntity
	ReturnID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	StockID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemKind     ReturnItemKind  `gorm:"type:varchar(20);not null"`
	LengthMeters decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Quantity     int             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReturnRoll) TableName() string {
	return "return_rolls"
}

// NewReturnRoll records returned rolls of one length
func NewReturnRoll(returnID, stockID uuid.UUID, kind ReturnItemKind, length decimal.Decimal, quantity int) *ReturnRoll {
	return &ReturnRoll{
		BaseEntity:   shared.NewBaseEntity(),
		ReturnID:     returnID,
		StockID:      stockID,
		ItemKind:     kind,
		LengthMeters: length,
		Quantity:     quantity,
	}
}

// ReturnBundle records the stock row returned bundles landed in, one row per
// distinct bundle size
type ReturnBundle struct {
	shared.BaseEntity
	ReturnID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	StockID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	BundleSize        int              `gorm:"not null"`
	PieceLengthMeters *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Quantity          int              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReturnBundle) TableName() string {
	return "return_bundles"
}

// NewReturnBundle records returned bundles of one size
func NewReturnBundle(returnID, stockID uuid.UUID, bundleSize int, pieceLength *decimal.Decimal, quantity int) *ReturnBundle {
	return &ReturnBundle{
		BaseEntity:        shared.NewBaseEntity(),
		ReturnID:          returnID,
		StockID:           stockID,
		BundleSize:        bundleSize,
		PieceLengthMeters: pieceLength,
		Quantity:          quantity,
	}
}
