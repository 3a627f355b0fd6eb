package inventory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the operation that produced a log entry
type TransactionType string

const (
	TransactionTypeProduction    TransactionType = "PRODUCTION"
	TransactionTypeCutRoll       TransactionType = "CUT_ROLL"
	TransactionTypeSplitBundle   TransactionType = "SPLIT_BUNDLE"
	TransactionTypeCombineSpares TransactionType = "COMBINE_SPARES"
	TransactionTypeDispatch      TransactionType = "DISPATCH"
	TransactionTypeReturn        TransactionType = "RETURN"
	TransactionTypeScrap         TransactionType = "SCRAP"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeProduction, TransactionTypeCutRoll, TransactionTypeSplitBundle,
		TransactionTypeCombineSpares, TransactionTypeDispatch, TransactionTypeReturn,
		TransactionTypeScrap:
		return true
	}
	return false
}

// CutPieceDetail records one piece created by a cut or split, written back
// into the log entry after the pieces exist (the piece side of the cycle is
// a real FK; this side is JSON).
type CutPieceDetail struct {
	Length  decimal.Decimal `json:"length"`
	PieceID uuid.UUID       `json:"piece_id"`
}

// CutPieceDetails is a JSON column of CutPieceDetail
type CutPieceDetails []CutPieceDetail

// Value implements driver.Valuer for GORM
func (d CutPieceDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for GORM
func (d *CutPieceDetails) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CutPieceDetails", value)
	}
	return json.Unmarshal(data, d)
}

// StockSnapshot captures the composition of one stock row at production
// time. The PRODUCTION transaction stores the full set as ground truth for
// the history view and fallback revert reconstruction.
type StockSnapshot struct {
	StockID         uuid.UUID         `json:"stock_id"`
	StockType       StockType         `json:"stock_type"`
	Quantity        int               `json:"quantity"`
	LengthPerUnit   *decimal.Decimal  `json:"length_per_unit,omitempty"`
	PiecesPerBundle *int              `json:"pieces_per_bundle,omitempty"`
	PieceLength     *decimal.Decimal  `json:"piece_length,omitempty"`
	PieceLengths    []decimal.Decimal `json:"piece_lengths,omitempty"`
	PieceCounts     []int             `json:"piece_counts,omitempty"`
}

// StockSnapshots is a JSON column of StockSnapshot
type StockSnapshots []StockSnapshot

// Value implements driver.Valuer for GORM
func (s StockSnapshots) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for GORM
func (s *StockSnapshots) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StockSnapshots", value)
	}
	return json.Unmarshal(data, s)
}

// InventoryTransaction is one append-only log entry. Entries are never
// updated after commit except for the cut-piece detail backfill within the
// creating transaction and the reverted_at/reverted_by markers set by the
// revert engine.
type InventoryTransaction struct {
	shared.BaseEntity
	TransactionType TransactionType  `gorm:"type:varchar(20);not null;index"`
	FromStockID     *uuid.UUID       `gorm:"type:uuid;index"`
	FromQuantity    *int             `gorm:""`
	FromLength      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	FromPieces      *int             `gorm:""`
	ToStockID       *uuid.UUID       `gorm:"type:uuid;index"`
	ToQuantity      *int             `gorm:""`
	ToPieces        *int             `gorm:""`
	BatchID         *uuid.UUID       `gorm:"type:uuid;index"`
	DispatchID      *uuid.UUID       `gorm:"type:uuid;index"`
	DispatchItemID  *uuid.UUID       `gorm:"type:uuid"`
	ReturnID        *uuid.UUID       `gorm:"type:uuid;index"`
	// SourcePieceID identifies the piece consumed by a re-cut, so the
	// revert path can restore exactly that piece
	SourcePieceID   *uuid.UUID      `gorm:"type:uuid"`
	CutPieceDetails CutPieceDetails `gorm:"type:jsonb"`
	StockSnapshot   StockSnapshots  `gorm:"type:jsonb"`
	Notes           string          `gorm:"type:text"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid"`
	RevertedAt      *time.Time      `gorm:""`
	RevertedBy      *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// NewInventoryTransaction creates a new log entry
func NewInventoryTransaction(txType TransactionType, createdBy uuid.UUID) (*InventoryTransaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_TYPE", "Invalid transaction type")
	}
	tx := &InventoryTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		TransactionType: txType,
	}
	if createdBy != uuid.Nil {
		tx.CreatedBy = &createdBy
	}
	return tx, nil
}

// IsReverted returns true if the entry has been reverted
func (t *InventoryTransaction) IsReverted() bool {
	return t.RevertedAt != nil
}

// MarkReverted stamps the revert markers
func (t *InventoryTransaction) MarkReverted(by uuid.UUID, at time.Time) error {
	if t.IsReverted() {
		return shared.ErrAlreadyReverted
	}
	t.RevertedAt = &at
	if by != uuid.Nil {
		t.RevertedBy = &by
	}
	t.Touch()
	return nil
}

// WithFromStock sets the source stock reference
func (t *InventoryTransaction) WithFromStock(stockID uuid.UUID, quantity int) *InventoryTransaction {
	t.FromStockID = &stockID
	t.FromQuantity = &quantity
	return t
}

// WithToStock sets the destination stock reference
func (t *InventoryTransaction) WithToStock(stockID uuid.UUID, quantity int) *InventoryTransaction {
	t.ToStockID = &stockID
	t.ToQuantity = &quantity
	return t
}

// WithBatch sets the batch reference
func (t *InventoryTransaction) WithBatch(batchID uuid.UUID) *InventoryTransaction {
	t.BatchID = &batchID
	return t
}

// WithDispatch sets the dispatch references
func (t *InventoryTransaction) WithDispatch(dispatchID, dispatchItemID uuid.UUID) *InventoryTransaction {
	t.DispatchID = &dispatchID
	t.DispatchItemID = &dispatchItemID
	return t
}

// WithNotes sets the free-form notes
func (t *InventoryTransaction) WithNotes(notes string) *InventoryTransaction {
	t.Notes = notes
	return t
}

// HandleKind is the prefix of an encoded transaction handle
type HandleKind string

const (
	HandleKindTxn      HandleKind = "txn"
	HandleKindInv      HandleKind = "inv" // timeline alias for txn
	HandleKindDispatch HandleKind = "dispatch"
	HandleKindReturn   HandleKind = "return"
	HandleKindScrap    HandleKind = "scrap"
)

// EncodeHandle renders a typed handle as "{kind}_{uuid}"
func EncodeHandle(kind HandleKind, id uuid.UUID) string {
	return fmt.Sprintf("%s_%s", kind, id)
}

// DecodeHandle parses a typed handle. The revert API dispatches on the kind.
func DecodeHandle(handle string) (HandleKind, uuid.UUID, error) {
	idx := strings.LastIndex(handle, "_")
	if idx <= 0 {
		return "", uuid.Nil, shared.NewDomainError(shared.CodeInvalidRevert, "Malformed transaction handle")
	}
	kind := HandleKind(handle[:idx])
	switch kind {
	case HandleKindTxn, HandleKindInv, HandleKindDispatch, HandleKindReturn, HandleKindScrap:
	default:
		return "", uuid.Nil, shared.NewDomainError(shared.CodeInvalidRevert, "Unknown handle kind")
	}
	id, err := uuid.Parse(handle[idx+1:])
	if err != nil {
		return "", uuid.Nil, shared.NewDomainError(shared.CodeInvalidRevert, "Malformed transaction handle")
	}
	return kind, id, nil
}
