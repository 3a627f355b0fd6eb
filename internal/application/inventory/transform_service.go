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

// DefaultReservationTimeout is how long a spare piece reservation blocks
// other transactions before it is considered stale
const DefaultReservationTimeout = 30 * time.Minute

// TransformService handles the in-warehouse shape changes: cutting rolls,
// splitting bundles, and combining spares back into bundles
type TransformService struct {
	scope              TransactionScope
	eventPublisher     shared.EventPublisher
	reservationTimeout time.Duration
}

// NewTransformService creates a new TransformService
func NewTransformService(scope TransactionScope) *TransformService {
	return &TransformService{
		scope:              scope,
		reservationTimeout: DefaultReservationTimeout,
	}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *TransformService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetReservationTimeout overrides the stale-reservation cutoff
func (s *TransformService) SetReservationTimeout(d time.Duration) {
	if d > 0 {
		s.reservationTimeout = d
	}
}

// CutRoll cuts one full roll, or re-cuts an existing piece, into new pieces.
// The source is consumed, the pieces land in the batch's CUT_ROLL stock, and
// both derived quantities are recomputed before commit.
func (s *TransformService) CutRoll(ctx context.Context, req CutRollRequest) (*CutRollResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	for _, l := range req.PieceLengths {
		if l.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError(shared.CodeInvalidCut, "Piece lengths must be positive")
		}
	}

	var resp CutRollResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		source, err := repos.StockRepo().FindByIDForUpdate(ctx, req.SourceStockID)
		if err != nil {
			return err
		}

		txn, err := inventory.NewInventoryTransaction(inventory.TransactionTypeCutRoll, req.CreatedBy)
		if err != nil {
			return err
		}
		txn.WithBatch(source.BatchID).WithNotes(req.Notes)

		var target *inventory.InventoryStock
		var sourceLength *decimal.Decimal
		total := sumDecimals(req.PieceLengths)

		if req.SourcePieceID != nil {
			// Re-cut: consume one existing piece in place
			if source.StockType != inventory.StockTypeCutRoll {
				return shared.NewDomainError(shared.CodeInvalidCut, "Re-cut source must be cut roll stock")
			}
			pieces, err := repos.HdpePieceRepo().FindByIDsForUpdateNoWait(ctx, []uuid.UUID{*req.SourcePieceID})
			if err != nil {
				return err
			}
			if len(pieces) != 1 {
				return shared.ErrNotFound
			}
			piece := &pieces[0]
			if piece.StockID != source.ID || !piece.IsInStock() {
				return shared.NewDomainError(shared.CodeInvalidCut, "Source piece is not available in this stock")
			}
			if total.GreaterThan(piece.LengthMeters) {
				return shared.NewDomainError(shared.CodeInvalidCut, "New pieces exceed the source piece length")
			}
			piece.SoftDelete(txn.ID, now)
			if err := repos.HdpePieceRepo().Update(ctx, piece); err != nil {
				return err
			}
			txn.SourcePieceID = req.SourcePieceID
			txn.FromLength = &piece.LengthMeters
			txn.WithFromStock(source.ID, 1)
			sourceLength = &piece.LengthMeters
			target = source
		} else {
			// Consume one full roll into the batch's cut stock
			if source.StockType != inventory.StockTypeFullRoll {
				return shared.NewDomainError(shared.CodeInvalidCut, "Cut source must be full roll stock")
			}
			if !source.IsAvailable() {
				return shared.ErrInsufficientPieces
			}
			if source.LengthPerUnit != nil && total.GreaterThan(*source.LengthPerUnit) {
				return shared.NewDomainError(shared.CodeInvalidCut, "New pieces exceed the roll length")
			}
			if err := source.Decrement(1, now); err != nil {
				return err
			}
			if err := repos.StockRepo().Save(ctx, source); err != nil {
				return err
			}
			txn.FromLength = source.LengthPerUnit
			txn.WithFromStock(source.ID, 1)
			sourceLength = source.LengthPerUnit

			target, err = s.findOrCreateSibling(ctx, repos, source, inventory.StockTypeCutRoll)
			if err != nil {
				return err
			}
		}

		// The uncut tail of the source becomes one more piece
		lengths := append([]decimal.Decimal(nil), req.PieceLengths...)
		remainderAt := -1
		if sourceLength != nil {
			if rem := sourceLength.Sub(total); rem.GreaterThan(decimal.Zero) {
				remainderAt = len(lengths)
				lengths = append(lengths, rem)
			}
		}

		// The log entry goes in first so the pieces can reference its id;
		// the piece details are backfilled once their ids exist
		count := len(lengths)
		txn.WithToStock(target.ID, count)
		txn.ToPieces = &count
		if err := repos.TransactionRepo().Save(ctx, txn); err != nil {
			return err
		}

		newPieces := make([]*inventory.HdpeCutPiece, 0, len(lengths))
		details := make(inventory.CutPieceDetails, 0, len(lengths))
		for i, length := range lengths {
			p, err := inventory.NewHdpeCutPiece(target.ID, length, txn.ID)
			if err != nil {
				return err
			}
			if i == remainderAt {
				p.Notes = "remainder"
			}
			newPieces = append(newPieces, p)
			details = append(details, inventory.CutPieceDetail{Length: length, PieceID: p.ID})
			resp.PieceIDs = append(resp.PieceIDs, p.ID)
		}
		if err := repos.HdpePieceRepo().SaveAll(ctx, newPieces); err != nil {
			return err
		}
		txn.CutPieceDetails = details
		if err := repos.TransactionRepo().UpdateCutPieceDetails(ctx, txn.ID, details); err != nil {
			return err
		}

		deriver := NewDeriver(repos)
		if err := deriver.DeriveStockAndBatch(ctx, target, &txn.ID, now); err != nil {
			return err
		}

		resp.TransactionID = txn.ID
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindTxn, txn.ID)
		resp.TargetStockID = target.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewRollCutEvent(req.SourceStockID, resp.TargetStockID, resp.TransactionID, len(resp.PieceIDs)))
	}
	return &resp, nil
}

// SplitBundle opens one intact bundle into loose spare piece groups, one per
// requested count plus a remainder group for whatever is left of the bundle.
// A single log entry covers the whole split.
func (s *TransformService) SplitBundle(ctx context.Context, req SplitBundleRequest) (*SplitBundleResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var resp SplitBundleResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		source, err := repos.StockRepo().FindByIDForUpdate(ctx, req.SourceStockID)
		if err != nil {
			return err
		}
		if source.StockType != inventory.StockTypeBundle {
			return shared.NewDomainError(shared.CodeInvalidSplit, "Split source must be bundle stock")
		}
		if source.PiecesPerBundle == nil || *source.PiecesPerBundle < 1 {
			return shared.NewDomainError(shared.CodeInvalidSplit, "Bundle stock has no pieces-per-bundle")
		}
		requested := 0
		for _, count := range req.PiecesToSplit {
			requested += count
		}
		if requested > *source.PiecesPerBundle {
			return shared.NewDomainError(shared.CodeInvalidSplit, "Requested pieces exceed the bundle size")
		}
		if err := source.Decrement(1, now); err != nil {
			return err
		}
		if err := repos.StockRepo().Save(ctx, source); err != nil {
			return err
		}

		target, err := s.findOrCreateSibling(ctx, repos, source, inventory.StockTypeSpare)
		if err != nil {
			return err
		}

		txn, err := inventory.NewInventoryTransaction(inventory.TransactionTypeSplitBundle, req.CreatedBy)
		if err != nil {
			return err
		}
		pieces := *source.PiecesPerBundle
		txn.WithBatch(source.BatchID).WithNotes(req.Notes)
		txn.WithFromStock(source.ID, 1)
		txn.WithToStock(target.ID, pieces)
		txn.ToPieces = &pieces
		if err := repos.TransactionRepo().Save(ctx, txn); err != nil {
			return err
		}

		groups := make([]*inventory.SprinklerSparePiece, 0, len(req.PiecesToSplit)+1)
		for _, count := range req.PiecesToSplit {
			group, err := inventory.NewSprinklerSparePiece(target.ID, count, source.PieceLengthMeters, txn.ID)
			if err != nil {
				return err
			}
			groups = append(groups, group)
			resp.PieceGroupIDs = append(resp.PieceGroupIDs, group.ID)
		}
		if remainder := pieces - requested; remainder > 0 {
			group, err := inventory.NewSprinklerSparePiece(target.ID, remainder, source.PieceLengthMeters, txn.ID)
			if err != nil {
				return err
			}
			group.Notes = "remainder"
			groups = append(groups, group)
			resp.RemainderGroupID = &group.ID
		}
		if err := repos.SparePieceRepo().SaveAll(ctx, groups); err != nil {
			return err
		}

		deriver := NewDeriver(repos)
		if err := deriver.DeriveStockAndBatch(ctx, target, &txn.ID, now); err != nil {
			return err
		}

		resp.TransactionID = txn.ID
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindTxn, txn.ID)
		resp.TargetStockID = target.ID
		resp.Pieces = pieces
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewBundleSplitEvent(req.SourceStockID, resp.TargetStockID, resp.TransactionID, 1, resp.Pieces))
	}
	return &resp, nil
}

// CombineSpares rebuilds intact bundles from loose spare pieces. Piece
// groups are locked without waiting; a group held by a live reservation or
// another session rejects the whole operation. A partially consumed group is
// retired and replaced by a remainder group, so a later revert can restore
// the exact pre-combine state.
func (s *TransformService) CombineSpares(ctx context.Context, req CombineSparesRequest) (*CombineSparesResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var resp CombineSparesResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		// Abandoned holds older than the timeout are garbage-collected here
		if _, err := repos.SparePieceRepo().ReleaseStaleReservations(ctx, now.Add(-s.reservationTimeout)); err != nil {
			return err
		}
		source, err := repos.StockRepo().FindByIDForUpdate(ctx, req.SourceStockID)
		if err != nil {
			return err
		}
		if source.StockType != inventory.StockTypeSpare {
			return shared.NewDomainError(shared.CodeInvalidCombine, "Combine source must be spare stock")
		}

		bundleStock, err := s.findOrCreateBundleStock(ctx, repos, source, req.BundleSize)
		if err != nil {
			return err
		}

		needed := req.NumberOfBundles * req.BundleSize
		txn, err := inventory.NewInventoryTransaction(inventory.TransactionTypeCombineSpares, req.CreatedBy)
		if err != nil {
			return err
		}

		groups, err := s.lockSpareGroups(ctx, repos, source.ID, req.SparePieceIDs, txn.ID, now)
		if err != nil {
			return err
		}

		used, remainderID, err := s.consumeSpareGroups(ctx, repos, groups, needed, source.ID, txn.ID, now)
		if err != nil {
			return err
		}

		if err := bundleStock.Increment(req.NumberOfBundles); err != nil {
			return err
		}
		if err := repos.StockRepo().Save(ctx, bundleStock); err != nil {
			return err
		}

		txn.WithBatch(source.BatchID).WithNotes(req.Notes)
		txn.WithFromStock(source.ID, used)
		txn.WithToStock(bundleStock.ID, req.NumberOfBundles)
		txn.FromPieces = &used
		if err := repos.TransactionRepo().Save(ctx, txn); err != nil {
			return err
		}

		deriver := NewDeriver(repos)
		if err := deriver.DeriveStockAndBatch(ctx, source, &txn.ID, now); err != nil {
			return err
		}

		resp.TransactionID = txn.ID
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindTxn, txn.ID)
		resp.TargetStockID = bundleStock.ID
		resp.PiecesUsed = used
		resp.RemainderGroupID = remainderID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewSparesCombinedEvent(req.SourceStockID, resp.TargetStockID, resp.TransactionID, req.NumberOfBundles, resp.PiecesUsed))
	}
	return &resp, nil
}

// findOrCreateBundleStock returns the batch's live bundle stock matching the
// requested bundle size, locked, creating one when the batch has none
func (s *TransformService) findOrCreateBundleStock(
	ctx context.Context,
	repos TransactionalRepositories,
	source *inventory.InventoryStock,
	bundleSize int,
) (*inventory.InventoryStock, error) {
	stocks, err := repos.StockRepo().FindByBatch(ctx, source.BatchID)
	if err != nil {
		return nil, err
	}
	for i := range stocks {
		candidate := &stocks[i]
		if candidate.StockType != inventory.StockTypeBundle || candidate.IsDeleted() {
			continue
		}
		if candidate.PiecesPerBundle != nil && *candidate.PiecesPerBundle == bundleSize {
			return repos.StockRepo().FindByIDForUpdate(ctx, candidate.ID)
		}
	}
	target, err := inventory.NewInventoryStock(source.BatchID, source.ProductVariantID, inventory.StockTypeBundle, 0)
	if err != nil {
		return nil, err
	}
	target.ParentStockID = &source.ID
	target.PiecesPerBundle = &bundleSize
	target.PieceLengthMeters = source.PieceLengthMeters
	if err := repos.StockRepo().Save(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// lockSpareGroups locks the requested groups, or every in-stock group of the
// stock when none are pinned, rejecting groups reserved by other sessions
func (s *TransformService) lockSpareGroups(
	ctx context.Context,
	repos TransactionalRepositories,
	stockID uuid.UUID,
	pinned []uuid.UUID,
	txnID uuid.UUID,
	now time.Time,
) ([]inventory.SprinklerSparePiece, error) {
	ids := pinned
	if len(ids) == 0 {
		available, err := repos.SparePieceRepo().FindInStockByStock(ctx, stockID)
		if err != nil {
			return nil, err
		}
		for _, g := range available {
			ids = append(ids, g.ID)
		}
	}
	if len(ids) == 0 {
		return nil, shared.ErrInsufficientPieces
	}
	groups, err := repos.SparePieceRepo().FindByIDsForUpdateNoWait(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(groups) != len(ids) {
		return nil, shared.ErrNotFound
	}
	for i := range groups {
		g := &groups[i]
		if g.StockID != stockID || !g.IsInStock() {
			return nil, shared.NewDomainError(shared.CodeInvalidCombine, "Piece group is not available in this stock")
		}
		if g.IsReserved(txnID, s.reservationTimeout, now) {
			return nil, shared.ErrPiecesLocked
		}
	}
	// Largest groups first keeps fragmentation down
	sort.Slice(groups, func(i, j int) bool { return groups[i].PieceCount > groups[j].PieceCount })
	return groups, nil
}

// consumeSpareGroups retires whole groups until the requirement is met,
// splitting the last group into a remainder when it is only partly needed
func (s *TransformService) consumeSpareGroups(
	ctx context.Context,
	repos TransactionalRepositories,
	groups []inventory.SprinklerSparePiece,
	needed int,
	stockID uuid.UUID,
	txnID uuid.UUID,
	now time.Time,
) (used int, remainderID *uuid.UUID, err error) {
	remaining := needed
	for i := range groups {
		if remaining == 0 {
			break
		}
		g := &groups[i]
		take := g.PieceCount
		if take > remaining {
			take = remaining
		}
		leftover := g.PieceCount - take
		g.SoftDelete(txnID, now)
		if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
			return 0, nil, err
		}
		if leftover > 0 {
			rem, err := inventory.NewSprinklerSparePiece(stockID, leftover, g.PieceLengthMeters, txnID)
			if err != nil {
				return 0, nil, err
			}
			rem.Notes = "remainder"
			if err := repos.SparePieceRepo().SaveAll(ctx, []*inventory.SprinklerSparePiece{rem}); err != nil {
				return 0, nil, err
			}
			remainderID = &rem.ID
		}
		remaining -= take
	}
	if remaining > 0 {
		return 0, nil, shared.ErrInsufficientPieces
	}
	return needed, remainderID, nil
}

// findOrCreateSibling returns the batch's live stock row of the given type,
// creating it on first use with the source row as parent
func (s *TransformService) findOrCreateSibling(
	ctx context.Context,
	repos TransactionalRepositories,
	source *inventory.InventoryStock,
	stockType inventory.StockType,
) (*inventory.InventoryStock, error) {
	target, err := repos.StockRepo().FindSibling(ctx, source.BatchID, stockType)
	if err == nil {
		return repos.StockRepo().FindByIDForUpdate(ctx, target.ID)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	target, err = inventory.NewInventoryStock(source.BatchID, source.ProductVariantID, stockType, 0)
	if err != nil {
		return nil, err
	}
	target.ParentStockID = &source.ID
	target.PieceLengthMeters = source.PieceLengthMeters
	if err := repos.StockRepo().Save(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
