package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
)

// Deriver recomputes denormalized quantities after every mutation. Rule A:
// a piece-backed stock row's quantity is the count of its live IN_STOCK
// piece records (for spare stock, the count of groups, not the physical
// piece total). Rule B: a batch's current quantity sums physical units over
// its live stock rows. Both rules recompute from scratch; nothing is
// adjusted incrementally.
type Deriver struct {
	repos TransactionalRepositories
}

// NewDeriver creates a deriver bound to the current transaction's repositories
func NewDeriver(repos TransactionalRepositories) *Deriver {
	return &Deriver{repos: repos}
}

// DeriveStock recomputes a piece-backed stock row's quantity (Rule A) and
// persists it. Quantity-backed rows are left untouched. byTxnID is recorded
// as the deleting transaction when the recount soft-deletes the row.
func (d *Deriver) DeriveStock(ctx context.Context, stock *inventory.InventoryStock, byTxnID *uuid.UUID, now time.Time) error {
	if !stock.StockType.IsPieceBacked() {
		return nil
	}
	var count int
	var err error
	switch stock.StockType {
	case inventory.StockTypeCutRoll:
		count, err = d.repos.HdpePieceRepo().CountInStock(ctx, stock.ID)
	case inventory.StockTypeSpare:
		count, err = d.repos.SparePieceRepo().CountInStock(ctx, stock.ID)
		if err == nil {
			// HDPE spare returns park cut pieces under a spare stock
			var cut int
			cut, err = d.repos.HdpePieceRepo().CountInStock(ctx, stock.ID)
			count += cut
		}
	}
	if err != nil {
		return err
	}
	stock.ApplyDerivedQuantity(count, byTxnID, now)
	return d.repos.StockRepo().Save(ctx, stock)
}

// DeriveBatch recomputes a batch's current quantity from its stock rows
// (Rule B) and persists it. Rolls count as rolls, bundles as their physical
// pieces, piece-backed rows as their live IN_STOCK piece totals. An
// exhausted batch is soft-deleted; a revert that brings stock back restores
// it.
func (d *Deriver) DeriveBatch(ctx context.Context, batchID uuid.UUID, now time.Time) error {
	batch, err := d.repos.BatchRepo().FindByIDForUpdate(ctx, batchID)
	if err != nil {
		return err
	}
	stocks, err := d.repos.StockRepo().FindByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	total := 0
	for i := range stocks {
		s := &stocks[i]
		if s.IsDeleted() {
			continue
		}
		contribution, err := d.stockContribution(ctx, s)
		if err != nil {
			return err
		}
		total += contribution
	}
	batch.ApplyDerivedQuantity(total)
	if total == 0 && !batch.IsDeleted() {
		batch.SoftDelete(now)
	} else if total > 0 && batch.IsDeleted() {
		batch.Restore()
	}
	return d.repos.BatchRepo().Save(ctx, batch)
}

// stockContribution is one stock row's share of the batch total: rolls for
// FULL_ROLL, quantity times pieces-per-bundle for BUNDLE, live IN_STOCK
// piece counts for the piece-backed kinds
func (d *Deriver) stockContribution(ctx context.Context, s *inventory.InventoryStock) (int, error) {
	switch s.StockType {
	case inventory.StockTypeFullRoll:
		return s.Quantity, nil
	case inventory.StockTypeBundle:
		if s.PiecesPerBundle == nil {
			return s.Quantity, nil
		}
		return s.Quantity * *s.PiecesPerBundle, nil
	case inventory.StockTypeCutRoll:
		return d.repos.HdpePieceRepo().CountInStock(ctx, s.ID)
	case inventory.StockTypeSpare:
		sum, err := d.repos.SparePieceRepo().SumInStock(ctx, s.ID)
		if err != nil {
			return 0, err
		}
		cut, err := d.repos.HdpePieceRepo().CountInStock(ctx, s.ID)
		if err != nil {
			return 0, err
		}
		return sum + cut, nil
	}
	return s.Quantity, nil
}

// DeriveStockAndBatch applies Rule A then Rule B for one stock row
func (d *Deriver) DeriveStockAndBatch(ctx context.Context, stock *inventory.InventoryStock, byTxnID *uuid.UUID, now time.Time) error {
	if err := d.DeriveStock(ctx, stock, byTxnID, now); err != nil {
		return err
	}
	return d.DeriveBatch(ctx, stock.BatchID, now)
}
