package inventory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DispatchItemType identifies what kind of inventory a dispatch line ships
type DispatchItemType string

const (
	DispatchItemTypeFullRoll DispatchItemType = "FULL_ROLL"
	// DispatchItemTypeCutPiece ships one named cut piece
	DispatchItemTypeCutPiece DispatchItemType = "CUT_PIECE"
	// DispatchItemTypeCutRoll ships N cut pieces drawn in insertion order
	DispatchItemTypeCutRoll     DispatchItemType = "CUT_ROLL"
	DispatchItemTypeBundle      DispatchItemType = "BUNDLE"
	DispatchItemTypeSparePieces DispatchItemType = "SPARE_PIECES"
)

// IsValid returns true if the item type is known
func (t DispatchItemType) IsValid() bool {
	switch t {
	case DispatchItemTypeFullRoll, DispatchItemTypeCutPiece, DispatchItemTypeCutRoll,
		DispatchItemTypeBundle, DispatchItemTypeSparePieces:
		return true
	}
	return false
}

// UUIDList is a JSON column of UUIDs
type UUIDList []uuid.UUID

// Value implements driver.Valuer for GORM
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for GORM
func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into UUIDList", value)
	}
	return json.Unmarshal(data, l)
}

// DispatchStatus is the lifecycle state of a dispatch document
type DispatchStatus string

const (
	DispatchStatusCompleted DispatchStatus = "COMPLETED"
	DispatchStatusReverted  DispatchStatus = "REVERTED"
)

// Dispatch is an outbound shipment document. Dispatches commit atomically
// with their items and stock mutations; there is no draft state.
type Dispatch struct {
	shared.AuditedAggregateRoot
	DispatchNo    string         `gorm:"type:varchar(30);not null;uniqueIndex"`
	CustomerID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	BillToID      *uuid.UUID     `gorm:"type:uuid"`
	TransportID   *uuid.UUID     `gorm:"type:uuid"`
	VehicleID     *uuid.UUID     `gorm:"type:uuid"`
	InvoiceNumber *string        `gorm:"type:varchar(100)"`
	DispatchDate  time.Time      `gorm:"not null"`
	Status        DispatchStatus `gorm:"type:varchar(20);not null;default:'COMPLETED'"`
	Notes         string         `gorm:"type:text"`
	RevertedAt    *time.Time     `gorm:""`
	RevertedBy    *uuid.UUID     `gorm:"type:uuid"`
	Items         []DispatchItem `gorm:"foreignKey:DispatchID"`
}

// TableName returns the table name for GORM
func (Dispatch) TableName() string {
	return "dispatches"
}

// NewDispatch creates a new dispatch document
func NewDispatch(dispatchNo string, customerID uuid.UUID, dispatchDate time.Time, createdBy uuid.UUID) (*Dispatch, error) {
	if dispatchNo == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Dispatch number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Dispatch requires a customer")
	}
	return &Dispatch{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		DispatchNo:           dispatchNo,
		CustomerID:           customerID,
		DispatchDate:         dispatchDate,
		Status:               DispatchStatusCompleted,
	}, nil
}

// IsReverted returns true if the dispatch has been reverted
func (d *Dispatch) IsReverted() bool {
	return d.Status == DispatchStatusReverted
}

// MarkReverted stamps the whole document reverted
func (d *Dispatch) MarkReverted(by uuid.UUID, at time.Time) error {
	if d.IsReverted() {
		return shared.ErrAlreadyReverted
	}
	d.Status = DispatchStatusReverted
	d.RevertedAt = &at
	if by != uuid.Nil {
		d.RevertedBy = &by
	}
	d.Touch()
	d.IncrementVersion()
	return nil
}

// DispatchItem is one line of a dispatch. PieceIDs carries the exact piece
// records shipped for CUT_PIECE and SPARE_PIECES lines; quantity lines
// (FULL_ROLL, BUNDLE) leave it empty.
type DispatchItem struct {
	shared.BaseEntity
	DispatchID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	StockID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	ItemType         DispatchItemType `gorm:"type:varchar(20);not null"`
	Quantity         int              `gorm:"not null"`
	PieceIDs         UUIDList         `gorm:"type:jsonb"`
	TotalLength      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	RatePerUnit      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Amount           *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Notes            string           `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (DispatchItem) TableName() string {
	return "dispatch_items"
}

// NewDispatchItem creates a new dispatch line
func NewDispatchItem(dispatchID, stockID uuid.UUID, itemType DispatchItemType, quantity int) (*DispatchItem, error) {
	if !itemType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Unknown dispatch item type")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Dispatch quantity must be positive")
	}
	return &DispatchItem{
		BaseEntity: shared.NewBaseEntity(),
		DispatchID: dispatchID,
		StockID:    stockID,
		ItemType:   itemType,
		Quantity:   quantity,
	}, nil
}

// ComputeAmount derives the line amount from rate and quantity or length
func (i *DispatchItem) ComputeAmount() {
	if i.RatePerUnit == nil {
		return
	}
	var amount decimal.Decimal
	if i.TotalLength != nil {
		amount = i.RatePerUnit.Mul(*i.TotalLength)
	} else {
		amount = i.RatePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
	}
	i.Amount = &amount
}
