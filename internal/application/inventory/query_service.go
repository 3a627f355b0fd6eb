package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
)

// QueryService serves the read side: stock overviews, batch detail, and the
// merged history timeline
type QueryService struct {
	scope TransactionScope
}

// NewQueryService creates a new QueryService
func NewQueryService(scope TransactionScope) *QueryService {
	return &QueryService{scope: scope}
}

// GetStock returns one stock row
func (s *QueryService) GetStock(ctx context.Context, id uuid.UUID) (*StockResponse, error) {
	var resp StockResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		stock, err := repos.StockRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToStockResponse(stock)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListStock returns live stock rows matching the filter
func (s *QueryService) ListStock(ctx context.Context, filter shared.Filter) (shared.Paginated[StockResponse], error) {
	var page shared.Paginated[StockResponse]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		result, err := repos.StockRepo().List(ctx, filter)
		if err != nil {
			return err
		}
		items := make([]StockResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, ToStockResponse(&result.Items[i]))
		}
		page = shared.NewPaginated(items, result.Total, result.Page, result.PageSize)
		return nil
	})
	return page, err
}

// GetBatch returns one batch, including soft-deleted ones
func (s *QueryService) GetBatch(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var batch *inventory.Batch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		batch, err = repos.BatchRepo().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// ListBatches returns live batches matching the filter
func (s *QueryService) ListBatches(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Batch], error) {
	var page shared.Paginated[inventory.Batch]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.BatchRepo().List(ctx, filter)
		return err
	})
	return page, err
}

// ListStockPieces returns the live pieces behind a piece-backed stock row
func (s *QueryService) ListStockPieces(ctx context.Context, stockID uuid.UUID) ([]inventory.HdpeCutPiece, []inventory.SprinklerSparePiece, error) {
	var cut []inventory.HdpeCutPiece
	var spare []inventory.SprinklerSparePiece
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		stock, err := repos.StockRepo().FindByID(ctx, stockID)
		if err != nil {
			return err
		}
		switch stock.StockType {
		case inventory.StockTypeCutRoll:
			cut, err = repos.HdpePieceRepo().FindInStockByStock(ctx, stockID)
		case inventory.StockTypeSpare:
			spare, err = repos.SparePieceRepo().FindInStockByStock(ctx, stockID)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return cut, spare, nil
}

// BatchTimeline merges the batch's log entries and scrap records into one
// stream, newest first. Scraps have no log entries of their own; this view
// is where they join the history.
func (s *QueryService) BatchTimeline(ctx context.Context, batchID uuid.UUID, limit int) ([]TimelineEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []TimelineEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		filter := shared.DefaultFilter()
		filter.PageSize = limit
		txns, err := repos.TransactionRepo().FindByBatch(ctx, batchID, filter)
		if err != nil {
			return err
		}
		for i := range txns.Items {
			entries = append(entries, timelineEntryFromTransaction(&txns.Items[i]))
		}

		stocks, err := repos.StockRepo().FindByBatch(ctx, batchID)
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
		for i := range scraps {
			entries = append(entries, timelineEntryFromScrap(&scraps[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortTimeline(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// StockTimeline returns the log entries touching one stock row, newest first
func (s *QueryService) StockTimeline(ctx context.Context, stockID uuid.UUID, filter shared.Filter) ([]TimelineEntry, error) {
	var entries []TimelineEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		txns, err := repos.TransactionRepo().FindByStock(ctx, stockID, filter)
		if err != nil {
			return err
		}
		for i := range txns.Items {
			entries = append(entries, timelineEntryFromTransaction(&txns.Items[i]))
		}
		scraps, err := repos.ScrapRepo().FindByStockIDs(ctx, []uuid.UUID{stockID})
		if err != nil {
			return err
		}
		for i := range scraps {
			entries = append(entries, timelineEntryFromScrap(&scraps[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTimeline(entries)
	return entries, nil
}

// GetPieceAuditTrail reconstructs one piece's history from its lineage
// columns: the log entry that created it, the dispatch that shipped it, and
// the log entry that consumed it, oldest first
func (s *QueryService) GetPieceAuditTrail(ctx context.Context, pieceID uuid.UUID, kind inventory.PieceKind) (*PieceAuditTrail, error) {
	trail := &PieceAuditTrail{PieceID: pieceID, Kind: kind}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var createdBy uuid.UUID
		var deletedBy, dispatchID *uuid.UUID

		switch kind {
		case inventory.PieceKindHdpeCut:
			p, err := repos.HdpePieceRepo().FindByID(ctx, pieceID)
			if err != nil {
				return err
			}
			trail.StockID = p.StockID
			trail.Status = p.Status
			trail.Deleted = p.DeletedAt != nil
			createdBy = p.CreatedByTransactionID
			deletedBy = p.DeletedByTransactionID
			dispatchID = p.DispatchID
		case inventory.PieceKindSprinklerSpare:
			g, err := repos.SparePieceRepo().FindByID(ctx, pieceID)
			if err != nil {
				return err
			}
			trail.StockID = g.StockID
			trail.Status = g.Status
			trail.Deleted = g.DeletedAt != nil
			createdBy = g.CreatedByTransactionID
			deletedBy = g.DeletedByTransactionID
			dispatchID = g.DispatchID
		default:
			return shared.ErrNotFound
		}

		creation, err := repos.TransactionRepo().FindByID(ctx, createdBy)
		if err != nil {
			return err
		}
		trail.Events = append(trail.Events, timelineEntryFromTransaction(creation))

		if dispatchID != nil {
			d, err := repos.DispatchRepo().FindByID(ctx, *dispatchID)
			if err != nil {
				return err
			}
			trail.Events = append(trail.Events, TimelineEntry{
				Handle:    inventory.EncodeHandle(inventory.HandleKindDispatch, d.ID),
				Kind:      inventory.TransactionTypeDispatch.String(),
				Reference: d.DispatchNo,
				Reverted:  d.IsReverted(),
				CreatedAt: d.CreatedAt,
				CreatedBy: d.CreatedBy,
			})
		}

		if deletedBy != nil && *deletedBy != createdBy {
			deletion, err := repos.TransactionRepo().FindByID(ctx, *deletedBy)
			if err != nil {
				return err
			}
			trail.Events = append(trail.Events, timelineEntryFromTransaction(deletion))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trail, nil
}

// TransactionTimeline returns the global log between two instants, newest
// first, with scrap records merged in the same way as the batch view
func (s *QueryService) TransactionTimeline(ctx context.Context, from, to time.Time, filter shared.Filter) ([]TimelineEntry, error) {
	var entries []TimelineEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		txns, err := repos.TransactionRepo().FindByDateRange(ctx, from, to, filter)
		if err != nil {
			return err
		}
		for i := range txns.Items {
			entries = append(entries, timelineEntryFromTransaction(&txns.Items[i]))
		}

		scraps, err := repos.ScrapRepo().List(ctx, filter)
		if err != nil {
			return err
		}
		for i := range scraps.Items {
			sc := &scraps.Items[i]
			if sc.CreatedAt.Before(from) || !sc.CreatedAt.Before(to) {
				continue
			}
			entries = append(entries, timelineEntryFromScrap(sc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTimeline(entries)
	return entries, nil
}

// GetDispatch returns one dispatch with its items
func (s *QueryService) GetDispatch(ctx context.Context, id uuid.UUID) (*inventory.Dispatch, error) {
	var d *inventory.Dispatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		d, err = repos.DispatchRepo().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDispatches returns dispatches matching the filter
func (s *QueryService) ListDispatches(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Dispatch], error) {
	var page shared.Paginated[inventory.Dispatch]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.DispatchRepo().List(ctx, filter)
		return err
	})
	return page, err
}

// ListReturns returns return documents matching the filter
func (s *QueryService) ListReturns(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Return], error) {
	var page shared.Paginated[inventory.Return]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.ReturnRepo().List(ctx, filter)
		return err
	})
	return page, err
}

// GetScrap returns one scrap record with its items and piece links
func (s *QueryService) GetScrap(ctx context.Context, id uuid.UUID) (*inventory.Scrap, error) {
	var sc *inventory.Scrap
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sc, err = repos.ScrapRepo().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// ListScraps returns scrap records matching the filter
func (s *QueryService) ListScraps(ctx context.Context, filter shared.Filter) (shared.Paginated[inventory.Scrap], error) {
	var page shared.Paginated[inventory.Scrap]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.ScrapRepo().List(ctx, filter)
		return err
	})
	return page, err
}

func timelineEntryFromTransaction(t *inventory.InventoryTransaction) TimelineEntry {
	kind := inventory.HandleKindTxn
	entry := TimelineEntry{
		Kind:      t.TransactionType.String(),
		Notes:     t.Notes,
		Reverted:  t.IsReverted(),
		CreatedAt: t.CreatedAt,
		CreatedBy: t.CreatedBy,
	}
	switch t.TransactionType {
	case inventory.TransactionTypeDispatch:
		if t.DispatchID != nil {
			entry.Handle = inventory.EncodeHandle(inventory.HandleKindDispatch, *t.DispatchID)
		}
	case inventory.TransactionTypeReturn:
		if t.ReturnID != nil {
			entry.Handle = inventory.EncodeHandle(inventory.HandleKindReturn, *t.ReturnID)
		}
	}
	if entry.Handle == "" {
		entry.Handle = inventory.EncodeHandle(kind, t.ID)
	}
	if t.ToQuantity != nil {
		entry.Quantity = t.ToQuantity
	} else if t.FromQuantity != nil {
		entry.Quantity = t.FromQuantity
	}
	return entry
}

func timelineEntryFromScrap(s *inventory.Scrap) TimelineEntry {
	total := 0
	for i := range s.Items {
		total += s.Items[i].Quantity
	}
	return TimelineEntry{
		Handle:    inventory.EncodeHandle(inventory.HandleKindScrap, s.ID),
		Kind:      inventory.TransactionTypeScrap.String(),
		Reference: s.ScrapNo,
		Quantity:  &total,
		Notes:     s.Reason,
		Reverted:  s.IsReverted(),
		CreatedAt: s.CreatedAt,
		CreatedBy: s.CreatedBy,
	}
}

// sortTimeline orders entries newest first, breaking created-at ties by
// handle so the order is stable across reads
func sortTimeline(entries []TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Handle > entries[j].Handle
	})
}
