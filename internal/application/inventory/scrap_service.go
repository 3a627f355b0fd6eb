package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ScrapService writes damaged or defective inventory off
type ScrapService struct {
	scope              TransactionScope
	eventPublisher     shared.EventPublisher
	reservationTimeout time.Duration
}

// NewScrapService creates a new ScrapService
func NewScrapService(scope TransactionScope) *ScrapService {
	return &ScrapService{
		scope:              scope,
		reservationTimeout: DefaultReservationTimeout,
	}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *ScrapService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetReservationTimeout overrides the stale-reservation cutoff
func (s *ScrapService) SetReservationTimeout(d time.Duration) {
	if d > 0 {
		s.reservationTimeout = d
	}
}

// Scrap commits a write-off. All lines of one scrap must share a single
// item kind; mixing quantity and piece stock, or HDPE and sprinkler goods,
// is rejected. Scrapped pieces keep their records with SCRAPPED status and
// a scrap_pieces link, so the write-off can be reverted precisely.
func (s *ScrapService) Scrap(ctx context.Context, req ScrapRequest) (*ScrapResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	kind := req.Items[0].ItemKind
	for _, in := range req.Items[1:] {
		if in.ItemKind != kind {
			return nil, shared.ErrMixedScrapForbidden
		}
	}

	var resp ScrapResponse
	var scrap *inventory.Scrap
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		year := req.ScrapDate.Year()
		scrapNo, err := nextDocumentNo(ctx, repos.ScrapRepo(), scrapNoFormat, year)
		if err != nil {
			return err
		}

		scrap, err = inventory.NewScrap(scrapNo, req.ScrapDate, req.Reason, req.CreatedBy)
		if err != nil {
			return err
		}
		scrap.Notes = req.Notes

		deriver := NewDeriver(repos)
		batchIDs := make(map[uuid.UUID]struct{})

		for i, in := range req.Items {
			batchID, err := s.scrapItem(ctx, repos, scrap, in, deriver, now)
			if err != nil {
				var de *shared.DomainError
				if errors.As(err, &de) {
					return de.WithItemIndex(i)
				}
				return err
			}
			batchIDs[batchID] = struct{}{}
		}

		if err := repos.ScrapRepo().Save(ctx, scrap); err != nil {
			return err
		}
		for batchID := range batchIDs {
			if err := deriver.DeriveBatch(ctx, batchID, now); err != nil {
				return err
			}
		}

		resp.ScrapID = scrap.ID
		resp.ScrapNo = scrap.ScrapNo
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindScrap, scrap.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewStockScrappedEvent(scrap))
	}
	return &resp, nil
}

// scrapItem applies one scrap line and returns the affected batch ID
func (s *ScrapService) scrapItem(
	ctx context.Context,
	repos TransactionalRepositories,
	scrap *inventory.Scrap,
	in ScrapItemRequest,
	deriver *Deriver,
	now time.Time,
) (uuid.UUID, error) {
	stock, err := repos.StockRepo().FindByIDForUpdate(ctx, in.StockID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := checkScrapKindMatchesStock(in.ItemKind, stock.StockType); err != nil {
		return uuid.Nil, err
	}

	quantity := in.Quantity
	if in.ItemKind == inventory.ScrapItemKindCutPiece {
		quantity = len(in.PieceIDs)
	}
	item, err := inventory.NewScrapItem(scrap.ID, stock.ID, stock.BatchID, in.ItemKind, quantity)
	if err != nil {
		return uuid.Nil, err
	}
	item.Notes = in.Notes

	switch in.ItemKind {
	case inventory.ScrapItemKindFullRoll, inventory.ScrapItemKindBundle:
		if err := stock.Decrement(in.Quantity, now); err != nil {
			return uuid.Nil, err
		}
		if err := repos.StockRepo().Save(ctx, stock); err != nil {
			return uuid.Nil, err
		}
		if stock.LengthPerUnit != nil {
			l := stock.LengthPerUnit.Mul(decimal.NewFromInt(int64(in.Quantity)))
			item.TotalLength = &l
		}

	case inventory.ScrapItemKindCutPiece:
		if len(in.PieceIDs) == 0 {
			return uuid.Nil, shared.NewDomainError(shared.CodeInvalidScrap, "Cut piece scraps require explicit piece IDs")
		}
		pieces, err := repos.HdpePieceRepo().FindByIDsForUpdateNoWait(ctx, in.PieceIDs)
		if err != nil {
			return uuid.Nil, err
		}
		if len(pieces) != len(in.PieceIDs) {
			return uuid.Nil, shared.ErrNotFound
		}
		total := decimal.Zero
		for i := range pieces {
			p := &pieces[i]
			if p.StockID != stock.ID || !p.IsInStock() {
				return uuid.Nil, shared.NewDomainError(shared.CodeInvalidScrap, "Piece is not available in this stock")
			}
			if err := p.MarkScrapped(); err != nil {
				return uuid.Nil, err
			}
			if err := repos.HdpePieceRepo().Update(ctx, p); err != nil {
				return uuid.Nil, err
			}
			sp := inventory.NewScrapPiece(item.ID, p.ID, inventory.PieceKindHdpeCut, 1)
			sp.LengthMeters = &p.LengthMeters
			item.Pieces = append(item.Pieces, *sp)
			total = total.Add(p.LengthMeters)
		}
		item.TotalLength = &total
		if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
			return uuid.Nil, err
		}

	case inventory.ScrapItemKindSpare:
		if err := s.scrapSparePieces(ctx, repos, stock, item, in.Quantity, scrap.ID, now); err != nil {
			return uuid.Nil, err
		}
		if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
			return uuid.Nil, err
		}
	}

	scrap.Items = append(scrap.Items, *item)
	return stock.BatchID, nil
}

// scrapSparePieces draws the requested piece count out of the stock's
// groups and marks them scrapped, splitting the last group when needed
func (s *ScrapService) scrapSparePieces(
	ctx context.Context,
	repos TransactionalRepositories,
	stock *inventory.InventoryStock,
	item *inventory.ScrapItem,
	needed int,
	scrapID uuid.UUID,
	now time.Time,
) error {
	available, err := repos.SparePieceRepo().FindInStockByStock(ctx, stock.ID)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		return shared.ErrInsufficientPieces
	}
	ids := make([]uuid.UUID, 0, len(available))
	for _, g := range available {
		ids = append(ids, g.ID)
	}
	groups, err := repos.SparePieceRepo().FindByIDsForUpdateNoWait(ctx, ids)
	if err != nil {
		return err
	}
	for i := range groups {
		if groups[i].IsReserved(scrapID, s.reservationTimeout, now) {
			return shared.ErrPiecesLocked
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].PieceCount > groups[j].PieceCount })

	remaining := needed
	for i := range groups {
		if remaining == 0 {
			break
		}
		g := &groups[i]
		if g.PieceCount <= remaining {
			if err := g.MarkScrapped(); err != nil {
				return err
			}
			if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
				return err
			}
			sp := inventory.NewScrapPiece(item.ID, g.ID, inventory.PieceKindSprinklerSpare, g.PieceCount)
			sp.LengthMeters = g.PieceLengthMeters
			item.Pieces = append(item.Pieces, *sp)
			remaining -= g.PieceCount
			continue
		}
		if err := g.ReduceCount(remaining); err != nil {
			return err
		}
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return err
		}
		split, err := inventory.NewSprinklerSparePiece(stock.ID, remaining, g.PieceLengthMeters, scrapID)
		if err != nil {
			return err
		}
		if err := split.MarkScrapped(); err != nil {
			return err
		}
		if err := repos.SparePieceRepo().SaveAll(ctx, []*inventory.SprinklerSparePiece{split}); err != nil {
			return err
		}
		sp := inventory.NewScrapPiece(item.ID, split.ID, inventory.PieceKindSprinklerSpare, remaining)
		sp.LengthMeters = split.PieceLengthMeters
		item.Pieces = append(item.Pieces, *sp)
		remaining = 0
	}
	if remaining > 0 {
		return shared.ErrInsufficientPieces
	}
	return nil
}

// checkScrapKindMatchesStock pairs each scrap line kind with the stock kind
// it draws from
func checkScrapKindMatchesStock(kind inventory.ScrapItemKind, stockType inventory.StockType) error {
	valid := map[inventory.ScrapItemKind]inventory.StockType{
		inventory.ScrapItemKindFullRoll: inventory.StockTypeFullRoll,
		inventory.ScrapItemKindCutPiece: inventory.StockTypeCutRoll,
		inventory.ScrapItemKindBundle:   inventory.StockTypeBundle,
		inventory.ScrapItemKindSpare:    inventory.StockTypeSpare,
	}
	if valid[kind] != stockType {
		return shared.NewDomainError(shared.CodeInvalidScrap, "Item kind does not match the stock kind")
	}
	return nil
}
