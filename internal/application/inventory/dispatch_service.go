package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DispatchService ships inventory out to customers
type DispatchService struct {
	scope              TransactionScope
	eventPublisher     shared.EventPublisher
	reservationTimeout time.Duration
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(scope TransactionScope) *DispatchService {
	return &DispatchService{
		scope:              scope,
		reservationTimeout: DefaultReservationTimeout,
	}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *DispatchService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetReservationTimeout overrides the stale-reservation cutoff
func (s *DispatchService) SetReservationTimeout(d time.Duration) {
	if d > 0 {
		s.reservationTimeout = d
	}
}

// Dispatch commits an outbound shipment: document, items, stock mutations,
// and one log entry per item, all atomically. Item-level failures carry the
// index of the offending line.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var resp DispatchResponse
	var dispatch *inventory.Dispatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		year := req.DispatchDate.Year()
		dispatchNo, err := nextDocumentNo(ctx, repos.DispatchRepo(), dispatchNoFormat, year)
		if err != nil {
			return err
		}

		dispatch, err = inventory.NewDispatch(dispatchNo, req.CustomerID, req.DispatchDate, req.CreatedBy)
		if err != nil {
			return err
		}
		dispatch.BillToID = req.BillToID
		dispatch.TransportID = req.TransportID
		dispatch.VehicleID = req.VehicleID
		dispatch.InvoiceNumber = req.InvoiceNumber
		dispatch.Notes = req.Notes
		if _, err := repos.CustomerRepo().FindByID(ctx, req.CustomerID); err != nil {
			return err
		}

		deriver := NewDeriver(repos)
		batchIDs := make(map[uuid.UUID]struct{})

		for i, in := range req.Items {
			txnID, err := s.dispatchItem(ctx, repos, dispatch, in, deriver, now)
			if err != nil {
				var de *shared.DomainError
				if errors.As(err, &de) {
					return de.WithItemIndex(i)
				}
				return err
			}
			resp.TransactionIDs = append(resp.TransactionIDs, txnID)
		}
		if err := repos.DispatchRepo().Save(ctx, dispatch); err != nil {
			return err
		}

		for _, item := range dispatch.Items {
			stock, err := repos.StockRepo().FindByID(ctx, item.StockID)
			if err != nil {
				return err
			}
			batchIDs[stock.BatchID] = struct{}{}
		}
		for batchID := range batchIDs {
			if err := deriver.DeriveBatch(ctx, batchID, now); err != nil {
				return err
			}
		}

		resp.DispatchID = dispatch.ID
		resp.DispatchNo = dispatch.DispatchNo
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindDispatch, dispatch.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewStockDispatchedEvent(dispatch))
	}
	return &resp, nil
}

// dispatchItem applies one dispatch line and returns its log entry ID
func (s *DispatchService) dispatchItem(
	ctx context.Context,
	repos TransactionalRepositories,
	dispatch *inventory.Dispatch,
	in DispatchItemRequest,
	deriver *Deriver,
	now time.Time,
) (uuid.UUID, error) {
	stock, err := repos.StockRepo().FindByIDForUpdate(ctx, in.StockID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := checkItemTypeMatchesStock(in.ItemType, stock.StockType); err != nil {
		return uuid.Nil, err
	}

	createdBy := uuid.Nil
	if dispatch.CreatedBy != nil {
		createdBy = *dispatch.CreatedBy
	}
	txn, err := inventory.NewInventoryTransaction(inventory.TransactionTypeDispatch, createdBy)
	if err != nil {
		return uuid.Nil, err
	}
	txn.WithBatch(stock.BatchID).WithNotes(in.Notes)

	quantity := in.Quantity
	var totalLength *decimal.Decimal
	var pieceIDs inventory.UUIDList

	switch in.ItemType {
	case inventory.DispatchItemTypeFullRoll, inventory.DispatchItemTypeBundle:
		if quantity < 1 {
			return uuid.Nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Quantity is required for roll and bundle lines")
		}
		if err := stock.Decrement(quantity, now); err != nil {
			return uuid.Nil, err
		}
		if err := repos.StockRepo().Save(ctx, stock); err != nil {
			return uuid.Nil, err
		}
		if stock.LengthPerUnit != nil {
			l := stock.LengthPerUnit.Mul(decimal.NewFromInt(int64(quantity)))
			totalLength = &l
		}

	case inventory.DispatchItemTypeCutPiece:
		if len(in.PieceIDs) == 0 {
			return uuid.Nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Cut piece lines require explicit piece IDs")
		}
		pieces, err := repos.HdpePieceRepo().FindByIDsForUpdateNoWait(ctx, in.PieceIDs)
		if err != nil {
			return uuid.Nil, err
		}
		if len(pieces) != len(in.PieceIDs) {
			return uuid.Nil, shared.ErrNotFound
		}
		length := decimal.Zero
		for i := range pieces {
			p := &pieces[i]
			if p.StockID != stock.ID || !p.IsInStock() {
				return uuid.Nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Piece is not available in this stock")
			}
			if err := p.MarkDispatched(&dispatch.ID); err != nil {
				return uuid.Nil, err
			}
			if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
				return uuid.Nil, err
			}
			length = length.Add(p.LengthMeters)
			pieceIDs = append(pieceIDs, p.ID)
		}
		quantity = len(pieces)
		totalLength = &length
		txn.FromPieces = &quantity
		if err := deriver.DeriveStock(ctx, stock, &txn.ID, now); err != nil {
			return uuid.Nil, err
		}

	case inventory.DispatchItemTypeCutRoll:
		if quantity < 1 {
			return uuid.Nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Cut roll lines require a piece count")
		}
		ids, length, err := s.dispatchOldestCutPieces(ctx, repos, stock, quantity, dispatch.ID, now)
		if err != nil {
			return uuid.Nil, err
		}
		pieceIDs = ids
		totalLength = &length
		txn.FromPieces = &quantity
		if err := deriver.DeriveStock(ctx, stock, &txn.ID, now); err != nil {
			return uuid.Nil, err
		}

	case inventory.DispatchItemTypeSparePieces:
		if len(in.SparePieceIDs) == 0 {
			return uuid.Nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Spare lines require spare piece IDs")
		}
		ids, err := s.dispatchSparePieces(ctx, repos, stock, in.SparePieceIDs, dispatch.ID, txn.ID, now)
		if err != nil {
			return uuid.Nil, err
		}
		pieceIDs = ids
		quantity = len(in.SparePieceIDs)
		txn.FromPieces = &quantity
		if stock.PieceLengthMeters != nil {
			l := stock.PieceLengthMeters.Mul(decimal.NewFromInt(int64(quantity)))
			totalLength = &l
		}
		if err := deriver.DeriveStock(ctx, stock, &txn.ID, now); err != nil {
			return uuid.Nil, err
		}
	}

	item, err := inventory.NewDispatchItem(dispatch.ID, stock.ID, in.ItemType, quantity)
	if err != nil {
		return uuid.Nil, err
	}
	item.PieceIDs = pieceIDs
	item.TotalLength = totalLength
	item.RatePerUnit = in.RatePerUnit
	item.Notes = in.Notes
	item.ComputeAmount()
	dispatch.Items = append(dispatch.Items, *item)

	txn.WithFromStock(stock.ID, quantity)
	txn.WithDispatch(dispatch.ID, item.ID)
	txn.FromLength = totalLength
	if err := repos.TransactionRepo().Save(ctx, txn); err != nil {
		return uuid.Nil, err
	}
	return txn.ID, nil
}

// dispatchOldestCutPieces draws the requested number of pieces from a cut
// stock in insertion order and marks them dispatched
func (s *DispatchService) dispatchOldestCutPieces(
	ctx context.Context,
	repos TransactionalRepositories,
	stock *inventory.InventoryStock,
	needed int,
	dispatchID uuid.UUID,
	now time.Time,
) (inventory.UUIDList, decimal.Decimal, error) {
	available, err := repos.HdpePieceRepo().FindInStockByStock(ctx, stock.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(available) < needed {
		return nil, decimal.Zero, shared.ErrInsufficientPieces
	}
	ids := make([]uuid.UUID, 0, needed)
	for _, p := range available[:needed] {
		ids = append(ids, p.ID)
	}
	locked, err := repos.HdpePieceRepo().FindByIDsForUpdateNoWait(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(locked) != needed {
		return nil, decimal.Zero, shared.ErrNotFound
	}
	byID := make(map[uuid.UUID]*inventory.HdpeCutPiece, len(locked))
	for i := range locked {
		byID[locked[i].ID] = &locked[i]
	}

	var dispatched inventory.UUIDList
	length := decimal.Zero
	for _, id := range ids {
		p := byID[id]
		if !p.IsInStock() {
			return nil, decimal.Zero, shared.NewDomainError(shared.CodeInvalidDispatch, "Piece is not available in this stock")
		}
		if err := p.MarkDispatched(&dispatchID); err != nil {
			return nil, decimal.Zero, err
		}
		if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
			return nil, decimal.Zero, err
		}
		dispatched = append(dispatched, p.ID)
		length = length.Add(p.LengthMeters)
	}
	return dispatched, length, nil
}

// dispatchSparePieces consumes physical pieces from the named groups; a
// group id repeated N times draws N pieces from that group. A fully drawn
// group is dispatched whole; a partly drawn group is shrunk and one
// dispatched single-piece record split off per drawn piece, carrying the
// source group's lineage.
func (s *DispatchService) dispatchSparePieces(
	ctx context.Context,
	repos TransactionalRepositories,
	stock *inventory.InventoryStock,
	sparePieceIDs []uuid.UUID,
	dispatchID uuid.UUID,
	txnID uuid.UUID,
	now time.Time,
) (inventory.UUIDList, error) {
	counts := make(map[uuid.UUID]int)
	order := make([]uuid.UUID, 0, len(sparePieceIDs))
	for _, id := range sparePieceIDs {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	groups, err := repos.SparePieceRepo().FindByIDsForUpdateNoWait(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(groups) != len(order) {
		return nil, shared.ErrNotFound
	}
	byID := make(map[uuid.UUID]*inventory.SprinklerSparePiece, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}

	var dispatched inventory.UUIDList
	for _, id := range order {
		g := byID[id]
		if g.StockID != stock.ID || !g.IsInStock() {
			return nil, shared.NewDomainError(shared.CodeInvalidDispatch, "Piece group is not available in this stock")
		}
		if g.IsReserved(txnID, s.reservationTimeout, now) {
			return nil, shared.ErrPiecesLocked
		}
		requested := counts[id]
		if requested > g.PieceCount {
			return nil, shared.ErrInsufficientPieces
		}
		if requested == g.PieceCount {
			if err := g.MarkDispatched(dispatchID); err != nil {
				return nil, err
			}
			if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
				return nil, err
			}
			dispatched = append(dispatched, g.ID)
			continue
		}
		if err := g.ReduceCount(requested); err != nil {
			return nil, err
		}
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return nil, err
		}
		singles := make([]*inventory.SprinklerSparePiece, 0, requested)
		for n := 0; n < requested; n++ {
			split := g.SplitOffDispatched(dispatchID)
			singles = append(singles, split)
			dispatched = append(dispatched, split.ID)
		}
		if err := repos.SparePieceRepo().SaveAll(ctx, singles); err != nil {
			return nil, err
		}
	}
	return dispatched, nil
}

// checkItemTypeMatchesStock pairs each dispatch line kind with the stock
// kind it draws from
func checkItemTypeMatchesStock(itemType inventory.DispatchItemType, stockType inventory.StockType) error {
	valid := map[inventory.DispatchItemType]inventory.StockType{
		inventory.DispatchItemTypeFullRoll:    inventory.StockTypeFullRoll,
		inventory.DispatchItemTypeCutPiece:    inventory.StockTypeCutRoll,
		inventory.DispatchItemTypeCutRoll:     inventory.StockTypeCutRoll,
		inventory.DispatchItemTypeBundle:      inventory.StockTypeBundle,
		inventory.DispatchItemTypeSparePieces: inventory.StockTypeSpare,
	}
	if valid[itemType] != stockType {
		return shared.NewDomainError(shared.CodeInvalidDispatch, "Item type does not match the stock kind")
	}
	return nil
}
