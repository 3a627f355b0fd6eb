package inventory

import (
	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
)

// Event types for the inventory domain
const (
	EventTypeBatchProduced       = "inventory.batch_produced"
	EventTypeRollCut             = "inventory.roll_cut"
	EventTypeBundleSplit         = "inventory.bundle_split"
	EventTypeSparesCombined      = "inventory.spares_combined"
	EventTypeStockDispatched     = "inventory.stock_dispatched"
	EventTypeStockReturned       = "inventory.stock_returned"
	EventTypeStockScrapped       = "inventory.stock_scrapped"
	EventTypeTransactionReverted = "inventory.transaction_reverted"
)

// BatchProducedEvent is published when a production entry creates a batch
type BatchProducedEvent struct {
	shared.BaseDomainEvent
	BatchID       uuid.UUID `json:"batch_id"`
	BatchCode     string    `json:"batch_code"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Quantity      int       `json:"quantity"`
}

// NewBatchProducedEvent creates a new batch produced event
func NewBatchProducedEvent(batch *Batch, txnID uuid.UUID, quantity int) *BatchProducedEvent {
	return &BatchProducedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchProduced, "Batch", batch.ID),
		BatchID:         batch.ID,
		BatchCode:       batch.BatchCode,
		TransactionID:   txnID,
		Quantity:        quantity,
	}
}

// RollCutEvent is published when a full roll or cut piece is re-cut
type RollCutEvent struct {
	shared.BaseDomainEvent
	SourceStockID uuid.UUID `json:"source_stock_id"`
	TargetStockID uuid.UUID `json:"target_stock_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	PieceCount    int       `json:"piece_count"`
}

// NewRollCutEvent creates a new roll cut event
func NewRollCutEvent(sourceStockID, targetStockID, txnID uuid.UUID, pieceCount int) *RollCutEvent {
	return &RollCutEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRollCut, "InventoryStock", sourceStockID),
		SourceStockID:   sourceStockID,
		TargetStockID:   targetStockID,
		TransactionID:   txnID,
		PieceCount:      pieceCount,
	}
}

// BundleSplitEvent is published when bundles are opened into spares
type BundleSplitEvent struct {
	shared.BaseDomainEvent
	SourceStockID uuid.UUID `json:"source_stock_id"`
	TargetStockID uuid.UUID `json:"target_stock_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Bundles       int       `json:"bundles"`
	Pieces        int       `json:"pieces"`
}

// NewBundleSplitEvent creates a new bundle split event
func NewBundleSplitEvent(sourceStockID, targetStockID, txnID uuid.UUID, bundles, pieces int) *BundleSplitEvent {
	return &BundleSplitEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBundleSplit, "InventoryStock", sourceStockID),
		SourceStockID:   sourceStockID,
		TargetStockID:   targetStockID,
		TransactionID:   txnID,
		Bundles:         bundles,
		Pieces:          pieces,
	}
}

// SparesCombinedEvent is published when loose spares are rebuilt into bundles
type SparesCombinedEvent struct {
	shared.BaseDomainEvent
	SourceStockID uuid.UUID `json:"source_stock_id"`
	TargetStockID uuid.UUID `json:"target_stock_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Bundles       int       `json:"bundles"`
	PiecesUsed    int       `json:"pieces_used"`
}

// NewSparesCombinedEvent creates a new spares combined event
func NewSparesCombinedEvent(sourceStockID, targetStockID, txnID uuid.UUID, bundles, piecesUsed int) *SparesCombinedEvent {
	return &SparesCombinedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSparesCombined, "InventoryStock", sourceStockID),
		SourceStockID:   sourceStockID,
		TargetStockID:   targetStockID,
		TransactionID:   txnID,
		Bundles:         bundles,
		PiecesUsed:      piecesUsed,
	}
}

// StockDispatchedEvent is published when a dispatch commits
type StockDispatchedEvent struct {
	shared.BaseDomainEvent
	DispatchID uuid.UUID `json:"dispatch_id"`
	DispatchNo string    `json:"dispatch_no"`
	ItemCount  int       `json:"item_count"`
}

// NewStockDispatchedEvent creates a new stock dispatched event
func NewStockDispatchedEvent(dispatch *Dispatch) *StockDispatchedEvent {
	return &StockDispatchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockDispatched, "Dispatch", dispatch.ID),
		DispatchID:      dispatch.ID,
		DispatchNo:      dispatch.DispatchNo,
		ItemCount:       len(dispatch.Items),
	}
}

// StockReturnedEvent is published when a return commits
type StockReturnedEvent struct {
	shared.BaseDomainEvent
	ReturnID  uuid.UUID `json:"return_id"`
	ReturnNo  string    `json:"return_no"`
	ItemCount int       `json:"item_count"`
}

// NewStockReturnedEvent creates a new stock returned event
func NewStockReturnedEvent(ret *Return) *StockReturnedEvent {
	return &StockReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReturned, "Return", ret.ID),
		ReturnID:        ret.ID,
		ReturnNo:        ret.ReturnNo,
		ItemCount:       len(ret.Items),
	}
}

// StockScrappedEvent is published when a scrap commits
type StockScrappedEvent struct {
	shared.BaseDomainEvent
	ScrapID   uuid.UUID `json:"scrap_id"`
	ScrapNo   string    `json:"scrap_no"`
	Reason    string    `json:"reason"`
	ItemCount int       `json:"item_count"`
}

// NewStockScrappedEvent creates a new stock scrapped event
func NewStockScrappedEvent(scrap *Scrap) *StockScrappedEvent {
	return &StockScrappedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockScrapped, "Scrap", scrap.ID),
		ScrapID:         scrap.ID,
		ScrapNo:         scrap.ScrapNo,
		Reason:          scrap.Reason,
		ItemCount:       len(scrap.Items),
	}
}

// TransactionRevertedEvent is published when the revert engine undoes an operation
type TransactionRevertedEvent struct {
	shared.BaseDomainEvent
	TransactionID   uuid.UUID       `json:"transaction_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Handle          string          `json:"handle"`
}

// NewTransactionRevertedEvent creates a new transaction reverted event
func NewTransactionRevertedEvent(txnID uuid.UUID, txnType TransactionType, handle string) *TransactionRevertedEvent {
	return &TransactionRevertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionReverted, "InventoryTransaction", txnID),
		TransactionID:   txnID,
		TransactionType: txnType,
		Handle:          handle,
	}
}
