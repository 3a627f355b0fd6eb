package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Batch represents a production lot. InitialQuantity is fixed at creation;
// CurrentQuantity is derived from the batch's stock rows and recomputed on
// every touch (never adjusted incrementally).
type Batch struct {
	shared.AuditedAggregateRoot
	BatchCode        string           `gorm:"type:varchar(200);not null;uniqueIndex"`
	BatchNo          int              `gorm:"not null"`
	ProductVariantID uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductionDate   time.Time        `gorm:"not null"`
	InitialQuantity  int              `gorm:"not null"`
	CurrentQuantity  int              `gorm:"not null;default:0"`
	WeightPerMeter   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalWeight      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	PieceLength      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Notes            string           `gorm:"type:text"`
	AttachmentRef    *string          `gorm:"type:varchar(500)"`
	DeletedAt        *time.Time       `gorm:"index"`
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "batches"
}

// NewBatch creates a new production batch
func NewBatch(batchCode string, batchNo int, variantID uuid.UUID, productionDate time.Time, createdBy uuid.UUID) (*Batch, error) {
	if batchCode == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Batch code cannot be empty")
	}
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Product variant ID cannot be empty")
	}
	return &Batch{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		BatchCode:            batchCode,
		BatchNo:              batchNo,
		ProductVariantID:     variantID,
		ProductionDate:       productionDate,
	}, nil
}

// BuildBatchCode forms the auto-generated batch code
// {PRODUCT_TYPE}-{PARAM_KV_SORTED}-{BRAND}-{YEAR}-{ZERO_PADDED_BATCH_NO}.
func BuildBatchCode(productType, encodedParams, brand string, year, batchNo int) string {
	if encodedParams == "" {
		return fmt.Sprintf("%s-%s-%d-%04d", productType, brand, year, batchNo)
	}
	return fmt.Sprintf("%s-%s-%s-%d-%04d", productType, encodedParams, brand, year, batchNo)
}

// SetInitialQuantity fixes the immutable initial quantity. It may only be
// called once, at production time.
func (b *Batch) SetInitialQuantity(qty int) error {
	if b.InitialQuantity != 0 {
		return shared.NewDomainError(shared.CodeInvalidProduction, "Initial quantity is immutable once set")
	}
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidProduction, "Initial quantity must be positive")
	}
	b.InitialQuantity = qty
	b.CurrentQuantity = qty
	b.Touch()
	return nil
}

// ApplyDerivedQuantity overwrites CurrentQuantity with a freshly computed
// value (derivation Rule B)
func (b *Batch) ApplyDerivedQuantity(qty int) {
	b.CurrentQuantity = qty
	b.Touch()
	b.IncrementVersion()
}

// IsDeleted returns true if the batch is soft-deleted
func (b *Batch) IsDeleted() bool {
	return b.DeletedAt != nil
}

// SoftDelete marks the batch deleted once its stock is exhausted
func (b *Batch) SoftDelete(now time.Time) {
	b.DeletedAt = &now
	b.Touch()
}

// Restore clears the soft-delete marker (e.g. when a revert brings stock back)
func (b *Batch) Restore() {
	b.DeletedAt = nil
	b.Touch()
}
