package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
)

// BatchRepository defines the interface for batch persistence
type BatchRepository interface {
	// FindByID finds a batch by its ID, including soft-deleted rows
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	// FindByIDForUpdate locks the batch row for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error)
	// FindByCode finds a live batch by its unique code
	FindByCode(ctx context.Context, code string) (*Batch, error)
	// MaxBatchNoForYear returns the highest batch number used for a variant
	// in the given calendar year
	MaxBatchNoForYear(ctx context.Context, variantID uuid.UUID, year int) (int, error)
	// List returns live batches matching the filter
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[Batch], error)
	// Save creates or updates a batch with an optimistic version check
	Save(ctx context.Context, b *Batch) error
}

// InventoryStockRepository defines the interface for aggregate stock persistence
type InventoryStockRepository interface {
	// FindByID finds a stock row by its ID, including soft-deleted rows
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryStock, error)
	// FindByIDForUpdate locks the stock row for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*InventoryStock, error)
	// FindByBatch returns all stock rows of a batch, including soft-deleted ones
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]InventoryStock, error)
	// FindSibling finds the live stock row of the given type under the same
	// batch, or shared.ErrNotFound
	FindSibling(ctx context.Context, batchID uuid.UUID, stockType StockType) (*InventoryStock, error)
	// List returns live stock rows matching the filter
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[InventoryStock], error)
	// Save creates or updates a stock row with an optimistic version check
	Save(ctx context.Context, s *InventoryStock) error
}

// HdpeCutPieceRepository defines the interface for cut piece persistence.
// Implementations must never update the lineage columns
// (created_by_transaction_id, original_stock_id) after insert.
type HdpeCutPieceRepository interface {
	// FindByID finds a piece by its ID, including soft-deleted rows
	FindByID(ctx context.Context, id uuid.UUID) (*HdpeCutPiece, error)
	// FindByIDsForUpdateNoWait locks the given pieces without waiting;
	// contention surfaces as shared.ErrPiecesLocked
	FindByIDsForUpdateNoWait(ctx context.Context, ids []uuid.UUID) ([]HdpeCutPiece, error)
	// FindInStockByStock returns live IN_STOCK pieces of a stock row
	FindInStockByStock(ctx context.Context, stockID uuid.UUID) ([]HdpeCutPiece, error)
	// CountInStock counts live IN_STOCK pieces of a stock row
	CountInStock(ctx context.Context, stockID uuid.UUID) (int, error)
	// FindByCreatedTransaction returns pieces created by a transaction,
	// including soft-deleted rows
	FindByCreatedTransaction(ctx context.Context, txnID uuid.UUID) ([]HdpeCutPiece, error)
	// FindByDeletedTransaction returns pieces consumed by a transaction
	FindByDeletedTransaction(ctx context.Context, txnID uuid.UUID) ([]HdpeCutPiece, error)
	// SaveAll inserts new pieces
	SaveAll(ctx context.Context, pieces []*HdpeCutPiece) error
	// Update persists mutable columns with an optimistic version check
	Update(ctx context.Context, p *HdpeCutPiece) error
}

// SprinklerSparePieceRepository defines the interface for spare piece
// persistence. Lineage columns are immutable after insert.
type SprinklerSparePieceRepository interface {
	// FindByID finds a piece group by its ID, including soft-deleted rows
	FindByID(ctx context.Context, id uuid.UUID) (*SprinklerSparePiece, error)
	// FindByIDsForUpdateNoWait locks the given groups without waiting;
	// contention surfaces as shared.ErrPiecesLocked
	FindByIDsForUpdateNoWait(ctx context.Context, ids []uuid.UUID) ([]SprinklerSparePiece, error)
	// FindInStockByStock returns live IN_STOCK groups of a stock row
	FindInStockByStock(ctx context.Context, stockID uuid.UUID) ([]SprinklerSparePiece, error)
	// CountInStock counts live IN_STOCK groups of a stock row
	CountInStock(ctx context.Context, stockID uuid.UUID) (int, error)
	// SumInStock sums piece counts over live IN_STOCK groups of a stock row
	SumInStock(ctx context.Context, stockID uuid.UUID) (int, error)
	// FindByCreatedTransaction returns groups created by a transaction,
	// including soft-deleted rows
	FindByCreatedTransaction(ctx context.Context, txnID uuid.UUID) ([]SprinklerSparePiece, error)
	// FindByDeletedTransaction returns groups consumed by a transaction
	FindByDeletedTransaction(ctx context.Context, txnID uuid.UUID) ([]SprinklerSparePiece, error)
	// ReleaseStaleReservations clears reservations older than the cutoff and
	// returns the number of groups released
	ReleaseStaleReservations(ctx context.Context, cutoff time.Time) (int64, error)
	// SaveAll inserts new piece groups
	SaveAll(ctx context.Context, pieces []*SprinklerSparePiece) error
	// Update persists mutable columns with an optimistic version check
	Update(ctx context.Context, p *SprinklerSparePiece) error
}

// InventoryTransactionRepository defines the interface for the append-only log
type InventoryTransactionRepository interface {
	// FindByID finds a log entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryTransaction, error)
	// FindByDispatch returns log entries of a dispatch
	FindByDispatch(ctx context.Context, dispatchID uuid.UUID) ([]InventoryTransaction, error)
	// FindByReturn returns log entries of a return
	FindByReturn(ctx context.Context, returnID uuid.UUID) ([]InventoryTransaction, error)
	// FindActiveByBatch returns the batch's non-reverted log entries
	FindActiveByBatch(ctx context.Context, batchID uuid.UUID) ([]InventoryTransaction, error)
	// FindByStock returns log entries touching a stock row on either side,
	// newest first
	FindByStock(ctx context.Context, stockID uuid.UUID, filter shared.Filter) (shared.Paginated[InventoryTransaction], error)
	// FindByBatch returns log entries of a batch, newest first
	FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) (shared.Paginated[InventoryTransaction], error)
	// List returns log entries matching the filter, newest first
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[InventoryTransaction], error)
	// FindByDateRange returns log entries created within [from, to), newest
	// first
	FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) (shared.Paginated[InventoryTransaction], error)
	// Save inserts a new log entry
	Save(ctx context.Context, t *InventoryTransaction) error
	// UpdateCutPieceDetails backfills the piece details of a freshly created
	// entry within the same database transaction
	UpdateCutPieceDetails(ctx context.Context, id uuid.UUID, details CutPieceDetails) error
	// MarkReverted stamps the revert markers on a log entry
	MarkReverted(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) error
}

// DispatchRepository defines the interface for dispatch persistence
type DispatchRepository interface {
	// FindByID finds a dispatch with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Dispatch, error)
	// FindByIDForUpdate locks the dispatch row for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Dispatch, error)
	// MaxNumberForYear returns the highest dispatch sequence used in a year
	MaxNumberForYear(ctx context.Context, year int) (int, error)
	// List returns dispatches matching the filter
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[Dispatch], error)
	// Save creates or updates a dispatch and its items
	Save(ctx context.Context, d *Dispatch) error
}

// ReturnRepository defines the interface for return persistence
type ReturnRepository interface {
	// FindByID finds a return with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Return, error)
	// FindByIDForUpdate locks the return row for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Return, error)
	// MaxNumberForYear returns the highest return sequence used in a year
	MaxNumberForYear(ctx context.Context, year int) (int, error)
	// List returns returns matching the filter
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[Return], error)
	// Save creates or updates a return and its items
	Save(ctx context.Context, r *Return) error
}

// ScrapRepository defines the interface for scrap persistence
type ScrapRepository interface {
	// FindByID finds a scrap record with its items and pieces
	FindByID(ctx context.Context, id uuid.UUID) (*Scrap, error)
	// FindByIDForUpdate locks the scrap row for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Scrap, error)
	// MaxNumberForYear returns the highest scrap sequence used in a year
	MaxNumberForYear(ctx context.Context, year int) (int, error)
	// List returns scrap records matching the filter
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[Scrap], error)
	// FindByStockIDs returns live scrap records touching any of the stock rows
	FindByStockIDs(ctx context.Context, stockIDs []uuid.UUID) ([]Scrap, error)
	// Save creates or updates a scrap record and its items
	Save(ctx context.Context, s *Scrap) error
}
