package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
)

// RevertService undoes committed operations. Every revert restores the
// exact pre-operation state or fails whole; a revert that would leave
// inventory half-rolled-back is rejected with CANNOT_REVERT. Reverting a
// dispatch or return handle, or a log entry belonging to one, always rolls
// the whole document back.
type RevertService struct {
	scope          TransactionScope
	eventPublisher shared.EventPublisher
}

// NewRevertService creates a new RevertService
func NewRevertService(scope TransactionScope) *RevertService {
	return &RevertService{scope: scope}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *RevertService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Revert rolls the operation behind the given handle back
func (s *RevertService) Revert(ctx context.Context, req RevertRequest) (*RevertResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	kind, id, err := inventory.DecodeHandle(req.Handle)
	if err != nil {
		return nil, err
	}

	var resp RevertResponse
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		var txnType inventory.TransactionType
		var err error

		switch kind {
		case inventory.HandleKindTxn, inventory.HandleKindInv:
			txnType, err = s.revertTransactionByID(ctx, repos, id, req.CreatedBy, now)
		case inventory.HandleKindDispatch:
			txnType = inventory.TransactionTypeDispatch
			err = s.revertDispatch(ctx, repos, id, req.CreatedBy, now)
		case inventory.HandleKindReturn:
			txnType = inventory.TransactionTypeReturn
			err = s.revertReturn(ctx, repos, id, req.CreatedBy, now)
		case inventory.HandleKindScrap:
			txnType = inventory.TransactionTypeScrap
			err = s.revertScrap(ctx, repos, id, req.CreatedBy, now)
		}
		if err != nil {
			return err
		}

		resp.Handle = req.Handle
		resp.TransactionType = txnType
		resp.RevertedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewTransactionRevertedEvent(id, resp.TransactionType, req.Handle))
	}
	return &resp, nil
}

// revertTransactionByID dispatches on the log entry's type. Dispatch and
// return entries redirect to their parent document.
func (s *RevertService) revertTransactionByID(
	ctx context.Context,
	repos TransactionalRepositories,
	id uuid.UUID,
	by uuid.UUID,
	now time.Time,
) (inventory.TransactionType, error) {
	txn, err := repos.TransactionRepo().FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if txn.IsReverted() {
		return txn.TransactionType, shared.ErrAlreadyReverted
	}

	switch txn.TransactionType {
	case inventory.TransactionTypeProduction:
		return txn.TransactionType, s.revertProduction(ctx, repos, txn, by, now)
	case inventory.TransactionTypeCutRoll:
		return txn.TransactionType, s.revertCut(ctx, repos, txn, by, now)
	case inventory.TransactionTypeSplitBundle:
		return txn.TransactionType, s.revertSplit(ctx, repos, txn, by, now)
	case inventory.TransactionTypeCombineSpares:
		return txn.TransactionType, s.revertCombine(ctx, repos, txn, by, now)
	case inventory.TransactionTypeDispatch:
		if txn.DispatchID == nil {
			return txn.TransactionType, shared.ErrCannotRevert
		}
		return txn.TransactionType, s.revertDispatch(ctx, repos, *txn.DispatchID, by, now)
	case inventory.TransactionTypeReturn:
		if txn.ReturnID == nil {
			return txn.TransactionType, shared.ErrCannotRevert
		}
		return txn.TransactionType, s.revertReturn(ctx, repos, *txn.ReturnID, by, now)
	}
	return txn.TransactionType, shared.NewDomainError(shared.CodeInvalidRevert, "Log entry type cannot be reverted")
}

// revertProduction deletes the batch and its stock, allowed only while the
// batch is untouched by any later operation
func (s *RevertService) revertProduction(
	ctx context.Context,
	repos TransactionalRepositories,
	txn *inventory.InventoryTransaction,
	by uuid.UUID,
	now time.Time,
) error {
	if txn.BatchID == nil {
		return shared.ErrCannotRevert
	}
	batch, err := repos.BatchRepo().FindByIDForUpdate(ctx, *txn.BatchID)
	if err != nil {
		return err
	}

	active, err := repos.TransactionRepo().FindActiveByBatch(ctx, batch.ID)
	if err != nil {
		return err
	}
	for i := range active {
		if active[i].ID != txn.ID {
			return shared.ErrCannotRevert
		}
	}

	stocks, err := repos.StockRepo().FindByBatch(ctx, batch.ID)
	if err != nil {
		return err
	}
	stockIDs := make([]uuid.UUID, 0, len(stocks))
	for i := range stocks {
		stockIDs = append(stockIDs, stocks[i].ID)
	}
	scraps, err := repos.ScrapRepo().FindByStockIDs(ctx, stockIDs)
	if err != nil {
		return err
	}
	if len(scraps) > 0 {
		return shared.ErrCannotRevert
	}

	hdpePieces, err := repos.HdpePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	for i := range hdpePieces {
		p := &hdpePieces[i]
		if !p.IsInStock() {
			return shared.ErrCannotRevert
		}
		p.SoftDelete(txn.ID, now)
		if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
			return err
		}
	}
	spareGroups, err := repos.SparePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	for i := range spareGroups {
		g := &spareGroups[i]
		if !g.IsInStock() {
			return shared.ErrCannotRevert
		}
		g.SoftDelete(txn.ID, now)
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return err
		}
	}

	for i := range stocks {
		st, err := repos.StockRepo().FindByIDForUpdate(ctx, stocks[i].ID)
		if err != nil {
			return err
		}
		st.SoftDelete(&txn.ID, now)
		st.Quantity = 0
		if err := repos.StockRepo().Save(ctx, st); err != nil {
			return err
		}
	}

	batch.ApplyDerivedQuantity(0)
	batch.SoftDelete(now)
	if err := repos.BatchRepo().Save(ctx, batch); err != nil {
		return err
	}
	return repos.TransactionRepo().MarkReverted(ctx, txn.ID, optionalUUID(by), now)
}

// revertCut removes the pieces a cut created and restores its source
func (s *RevertService) revertCut(
	ctx context.Context,
	repos TransactionalRepositories,
	txn *inventory.InventoryTransaction,
	by uuid.UUID,
	now time.Time,
) error {
	pieces, err := repos.HdpePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	for i := range pieces {
		p := &pieces[i]
		if !p.IsInStock() {
			return shared.ErrCannotRevert
		}
	}
	for i := range pieces {
		p := &pieces[i]
		p.SoftDelete(txn.ID, now)
		if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
			return err
		}
	}

	if txn.SourcePieceID != nil {
		// Re-cut: bring the consumed piece back
		src, err := repos.HdpePieceRepo().FindByID(ctx, *txn.SourcePieceID)
		if err != nil {
			return err
		}
		src.RestoreInStock()
		if err := repos.HdpePieceRepo().Update(ctx, src); err != nil {
			return err
		}
	} else if txn.FromStockID != nil {
		src, err := repos.StockRepo().FindByIDForUpdate(ctx, *txn.FromStockID)
		if err != nil {
			return err
		}
		qty := 1
		if txn.FromQuantity != nil {
			qty = *txn.FromQuantity
		}
		if err := src.Increment(qty); err != nil {
			return err
		}
		if err := repos.StockRepo().Save(ctx, src); err != nil {
			return err
		}
	}

	if err := s.deriveTarget(ctx, repos, txn, now); err != nil {
		return err
	}
	return repos.TransactionRepo().MarkReverted(ctx, txn.ID, optionalUUID(by), now)
}

// revertSplit retires the spare groups a split created and restores the
// bundles, allowed only while every created piece is still loose in stock
func (s *RevertService) revertSplit(
	ctx context.Context,
	repos TransactionalRepositories,
	txn *inventory.InventoryTransaction,
	by uuid.UUID,
	now time.Time,
) error {
	groups, err := repos.SparePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	remaining := 0
	for i := range groups {
		g := &groups[i]
		if !g.IsInStock() {
			return shared.ErrCannotRevert
		}
		remaining += g.PieceCount
	}
	if txn.ToPieces != nil && remaining != *txn.ToPieces {
		return shared.ErrCannotRevert
	}
	for i := range groups {
		g := &groups[i]
		g.SoftDelete(txn.ID, now)
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return err
		}
	}

	if txn.FromStockID != nil && txn.FromQuantity != nil {
		src, err := repos.StockRepo().FindByIDForUpdate(ctx, *txn.FromStockID)
		if err != nil {
			return err
		}
		if err := src.Increment(*txn.FromQuantity); err != nil {
			return err
		}
		if err := repos.StockRepo().Save(ctx, src); err != nil {
			return err
		}
	}

	if err := s.deriveTarget(ctx, repos, txn, now); err != nil {
		return err
	}
	return repos.TransactionRepo().MarkReverted(ctx, txn.ID, optionalUUID(by), now)
}

// revertCombine takes the rebuilt bundles back apart: the bundles must
// still be in stock, the consumed groups are restored, and the remainder
// group the combine created is retired
func (s *RevertService) revertCombine(
	ctx context.Context,
	repos TransactionalRepositories,
	txn *inventory.InventoryTransaction,
	by uuid.UUID,
	now time.Time,
) error {
	if txn.ToStockID == nil || txn.ToQuantity == nil {
		return shared.ErrCannotRevert
	}
	bundleStock, err := repos.StockRepo().FindByIDForUpdate(ctx, *txn.ToStockID)
	if err != nil {
		return err
	}
	if bundleStock.Quantity < *txn.ToQuantity {
		return shared.ErrCannotRevert
	}
	if err := bundleStock.Decrement(*txn.ToQuantity, now); err != nil {
		return err
	}
	if err := repos.StockRepo().Save(ctx, bundleStock); err != nil {
		return err
	}

	// Remainder groups the combine split off must still be untouched
	created, err := repos.SparePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	for i := range created {
		g := &created[i]
		if !g.IsInStock() {
			return shared.ErrCannotRevert
		}
		g.SoftDelete(txn.ID, now)
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return err
		}
	}

	consumed, err := repos.SparePieceRepo().FindByDeletedTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	for i := range consumed {
		g := &consumed[i]
		if g.CreatedByTransactionID == txn.ID {
			continue
		}
		g.RestoreInStock()
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return err
		}
	}

	if txn.FromStockID != nil {
		src, err := repos.StockRepo().FindByIDForUpdate(ctx, *txn.FromStockID)
		if err != nil {
			return err
		}
		deriver := NewDeriver(repos)
		if err := deriver.DeriveStockAndBatch(ctx, src, &txn.ID, now); err != nil {
			return err
		}
	}
	return repos.TransactionRepo().MarkReverted(ctx, txn.ID, optionalUUID(by), now)
}

// revertDispatch rolls a whole dispatch back: every shipped piece returns
// to stock and every quantity line is restored
func (s *RevertService) revertDispatch(
	ctx context.Context,
	repos TransactionalRepositories,
	dispatchID uuid.UUID,
	by uuid.UUID,
	now time.Time,
) error {
	dispatch, err := repos.DispatchRepo().FindByIDForUpdate(ctx, dispatchID)
	if err != nil {
		return err
	}
	if dispatch.IsReverted() {
		return shared.ErrAlreadyReverted
	}

	deriver := NewDeriver(repos)
	batchIDs := make(map[uuid.UUID]struct{})

	for i := range dispatch.Items {
		item := &dispatch.Items[i]
		stock, err := repos.StockRepo().FindByIDForUpdate(ctx, item.StockID)
		if err != nil {
			return err
		}
		batchIDs[stock.BatchID] = struct{}{}

		switch item.ItemType {
		case inventory.DispatchItemTypeFullRoll, inventory.DispatchItemTypeBundle:
			if err := stock.Increment(item.Quantity); err != nil {
				return err
			}
			if err := repos.StockRepo().Save(ctx, stock); err != nil {
				return err
			}

		case inventory.DispatchItemTypeCutPiece, inventory.DispatchItemTypeCutRoll:
			for _, pieceID := range item.PieceIDs {
				p, err := repos.HdpePieceRepo().FindByID(ctx, pieceID)
				if err != nil {
					return err
				}
				if p.Status != inventory.PieceStatusDispatched || p.DispatchID == nil || *p.DispatchID != dispatch.ID {
					return shared.ErrCannotRevert
				}
				p.RestoreInStock()
				if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
					return err
				}
			}
			if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
				return err
			}

		case inventory.DispatchItemTypeSparePieces:
			for _, groupID := range item.PieceIDs {
				g, err := repos.SparePieceRepo().FindByID(ctx, groupID)
				if err != nil {
					return err
				}
				if g.Status != inventory.PieceStatusDispatched || g.DispatchID == nil || *g.DispatchID != dispatch.ID {
					return shared.ErrCannotRevert
				}
				g.RestoreInStock()
				if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
					return err
				}
			}
			if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
				return err
			}
		}
	}

	txns, err := repos.TransactionRepo().FindByDispatch(ctx, dispatch.ID)
	if err != nil {
		return err
	}
	for i := range txns {
		if txns[i].IsReverted() {
			continue
		}
		if err := repos.TransactionRepo().MarkReverted(ctx, txns[i].ID, optionalUUID(by), now); err != nil {
			return err
		}
	}

	if err := dispatch.MarkReverted(by, now); err != nil {
		return err
	}
	if err := repos.DispatchRepo().Save(ctx, dispatch); err != nil {
		return err
	}
	for batchID := range batchIDs {
		if err := deriver.DeriveBatch(ctx, batchID, now); err != nil {
			return err
		}
	}
	return nil
}

// revertReturn removes the stock a return restored, allowed only while the
// returned goods are still untouched
func (s *RevertService) revertReturn(
	ctx context.Context,
	repos TransactionalRepositories,
	returnID uuid.UUID,
	by uuid.UUID,
	now time.Time,
) error {
	ret, err := repos.ReturnRepo().FindByIDForUpdate(ctx, returnID)
	if err != nil {
		return err
	}
	if ret.IsReverted() {
		return shared.ErrAlreadyReverted
	}

	deriver := NewDeriver(repos)
	txns, err := repos.TransactionRepo().FindByReturn(ctx, ret.ID)
	if err != nil {
		return err
	}

	// Every piece the return created must still be untouched before
	// anything is removed
	for i := range txns {
		txn := &txns[i]
		pieces, err := repos.HdpePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		for j := range pieces {
			if !pieces[j].IsInStock() {
				return shared.ErrCannotRevert
			}
		}
		groups, err := repos.SparePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		for j := range groups {
			if !groups[j].IsInStock() {
				return shared.ErrCannotRevert
			}
		}
	}

	for i := range txns {
		txn := &txns[i]
		pieces, err := repos.HdpePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		for j := range pieces {
			p := &pieces[j]
			p.SoftDelete(txn.ID, now)
			if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
				return err
			}
		}
		groups, err := repos.SparePieceRepo().FindByCreatedTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		for j := range groups {
			g := &groups[j]
			g.SoftDelete(txn.ID, now)
			if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
				return err
			}
		}
	}

	// The return's stock rows are on record per distinct roll length and
	// bundle size; remove them wholesale
	stockIDs := make([]uuid.UUID, 0, len(ret.Rolls)+len(ret.Bundles))
	seen := make(map[uuid.UUID]struct{})
	for i := range ret.Rolls {
		if _, ok := seen[ret.Rolls[i].StockID]; !ok {
			seen[ret.Rolls[i].StockID] = struct{}{}
			stockIDs = append(stockIDs, ret.Rolls[i].StockID)
		}
	}
	for i := range ret.Bundles {
		if _, ok := seen[ret.Bundles[i].StockID]; !ok {
			seen[ret.Bundles[i].StockID] = struct{}{}
			stockIDs = append(stockIDs, ret.Bundles[i].StockID)
		}
	}

	batchIDs := make(map[uuid.UUID]struct{})
	for _, stockID := range stockIDs {
		stock, err := repos.StockRepo().FindByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		batchIDs[stock.BatchID] = struct{}{}
		stock.SoftDelete(nil, now)
		if err := repos.StockRepo().Save(ctx, stock); err != nil {
			return err
		}
	}

	for i := range txns {
		if txns[i].IsReverted() {
			continue
		}
		if err := repos.TransactionRepo().MarkReverted(ctx, txns[i].ID, optionalUUID(by), now); err != nil {
			return err
		}
	}

	if err := ret.MarkReverted(by, now); err != nil {
		return err
	}
	if err := repos.ReturnRepo().Save(ctx, ret); err != nil {
		return err
	}
	for batchID := range batchIDs {
		if err := deriver.DeriveBatch(ctx, batchID, now); err != nil {
			return err
		}
	}
	return nil
}

// revertScrap restores written-off inventory
func (s *RevertService) revertScrap(
	ctx context.Context,
	repos TransactionalRepositories,
	scrapID uuid.UUID,
	by uuid.UUID,
	now time.Time,
) error {
	scrap, err := repos.ScrapRepo().FindByIDForUpdate(ctx, scrapID)
	if err != nil {
		return err
	}
	if scrap.IsReverted() {
		return shared.ErrAlreadyReverted
	}

	deriver := NewDeriver(repos)
	batchIDs := make(map[uuid.UUID]struct{})

	for i := range scrap.Items {
		item := &scrap.Items[i]
		stock, err := repos.StockRepo().FindByIDForUpdate(ctx, item.StockID)
		if err != nil {
			return err
		}
		batchIDs[item.BatchID] = struct{}{}

		switch item.ItemKind {
		case inventory.ScrapItemKindFullRoll, inventory.ScrapItemKindBundle:
			if err := stock.Increment(item.Quantity); err != nil {
				return err
			}
			if err := repos.StockRepo().Save(ctx, stock); err != nil {
				return err
			}

		case inventory.ScrapItemKindCutPiece:
			for j := range item.Pieces {
				p, err := repos.HdpePieceRepo().FindByID(ctx, item.Pieces[j].OriginalPieceID)
				if err != nil {
					return err
				}
				if p.Status != inventory.PieceStatusScrapped {
					return shared.ErrCannotRevert
				}
				p.RestoreInStock()
				if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
					return err
				}
			}
			if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
				return err
			}

		case inventory.ScrapItemKindSpare:
			for j := range item.Pieces {
				g, err := repos.SparePieceRepo().FindByID(ctx, item.Pieces[j].OriginalPieceID)
				if err != nil {
					return err
				}
				if g.Status != inventory.PieceStatusScrapped {
					return shared.ErrCannotRevert
				}
				g.RestoreInStock()
				if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
					return err
				}
			}
			if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
				return err
			}
		}
	}

	if err := scrap.MarkReverted(by, now); err != nil {
		return err
	}
	if err := repos.ScrapRepo().Save(ctx, scrap); err != nil {
		return err
	}
	for batchID := range batchIDs {
		if err := deriver.DeriveBatch(ctx, batchID, now); err != nil {
			return err
		}
	}
	return nil
}

// deriveTarget recomputes the transaction's target stock and its batch
func (s *RevertService) deriveTarget(
	ctx context.Context,
	repos TransactionalRepositories,
	txn *inventory.InventoryTransaction,
	now time.Time,
) error {
	if txn.ToStockID == nil {
		if txn.BatchID != nil {
			return NewDeriver(repos).DeriveBatch(ctx, *txn.BatchID, now)
		}
		return nil
	}
	target, err := repos.StockRepo().FindByIDForUpdate(ctx, *txn.ToStockID)
	if err != nil {
		return err
	}
	return NewDeriver(repos).DeriveStockAndBatch(ctx, target, &txn.ID, now)
}

func optionalUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
