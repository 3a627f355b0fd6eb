package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReturnService brings dispatched inventory back into stock
type ReturnService struct {
	scope          TransactionScope
	eventPublisher shared.EventPublisher
}

// NewReturnService creates a new ReturnService
func NewReturnService(scope TransactionScope) *ReturnService {
	return &ReturnService{scope: scope}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *ReturnService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// returnGroup collects the request lines that resolved to one product
// variant. Each group opens its own batch and writes one log entry.
type returnGroup struct {
	variant  *catalog.ProductVariant
	category catalog.ProductCategory
	items    []indexedReturnItem
}

type indexedReturnItem struct {
	index int
	in    ReturnItemRequest
}

// Return restores returned goods into fresh batches, one per product variant
// on the document. Returned goods never rejoin the batch they were produced
// in; a return for a variant that has never been produced simply opens its
// first batch. Variants are matched by normalized parameters and created on
// first use.
func (s *ReturnService) Return(ctx context.Context, req ReturnRequest) (*ReturnResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var resp ReturnResponse
	var ret *inventory.Return
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		year := req.ReturnDate.Year()
		returnNo, err := nextDocumentNo(ctx, repos.ReturnRepo(), returnNoFormat, year)
		if err != nil {
			return err
		}

		ret, err = inventory.NewReturn(returnNo, req.ReturnDate, req.CreatedBy)
		if err != nil {
			return err
		}
		ret.CustomerID = req.CustomerID
		ret.CustomerName = req.CustomerName
		ret.Reason = req.Reason
		ret.Notes = req.Notes
		if req.DispatchID != nil {
			if _, err := repos.DispatchRepo().FindByID(ctx, *req.DispatchID); err != nil {
				return err
			}
			ret.DispatchID = req.DispatchID
		}

		groups, err := s.groupByVariant(ctx, repos, req.Items)
		if err != nil {
			return err
		}

		deriver := NewDeriver(repos)
		for seq, group := range groups {
			batch, txn, err := s.returnGroup(ctx, repos, ret, group, seq+1, deriver, now)
			if err != nil {
				return err
			}
			resp.TransactionIDs = append(resp.TransactionIDs, txn.ID)
			resp.BatchIDs = append(resp.BatchIDs, batch.ID)
		}
		for _, roll := range ret.Rolls {
			resp.StockIDs = append(resp.StockIDs, roll.StockID)
		}
		for _, bundle := range ret.Bundles {
			resp.StockIDs = append(resp.StockIDs, bundle.StockID)
		}

		if err := repos.ReturnRepo().Save(ctx, ret); err != nil {
			return err
		}

		resp.ReturnID = ret.ID
		resp.ReturnNo = ret.ReturnNo
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindReturn, ret.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewStockReturnedEvent(ret))
	}
	return &resp, nil
}

// groupByVariant resolves each line's product variant and collects lines per
// variant, preserving first-appearance order
func (s *ReturnService) groupByVariant(
	ctx context.Context,
	repos TransactionalRepositories,
	items []ReturnItemRequest,
) ([]*returnGroup, error) {
	var groups []*returnGroup
	byVariant := make(map[uuid.UUID]*returnGroup)
	for i, in := range items {
		productType, err := repos.ProductTypeRepo().FindByID(ctx, in.ProductTypeID)
		if err != nil {
			return nil, wrapItemIndex(err, i)
		}
		if _, err := repos.BrandRepo().FindByID(ctx, in.BrandID); err != nil {
			return nil, wrapItemIndex(err, i)
		}
		variant, err := resolveVariant(ctx, repos, in.ProductTypeID, in.BrandID, in.Parameters)
		if err != nil {
			return nil, wrapItemIndex(err, i)
		}
		group, ok := byVariant[variant.ID]
		if !ok {
			group = &returnGroup{variant: variant, category: productType.Category}
			byVariant[variant.ID] = group
			groups = append(groups, group)
		}
		group.items = append(group.items, indexedReturnItem{index: i, in: in})
	}
	return groups, nil
}

// returnGroup opens a fresh batch for one variant, writes its log entry, and
// creates the stock and piece records for each of the variant's lines
func (s *ReturnService) returnGroup(
	ctx context.Context,
	repos TransactionalRepositories,
	ret *inventory.Return,
	group *returnGroup,
	seq int,
	deriver *Deriver,
	now time.Time,
) (*inventory.Batch, *inventory.InventoryTransaction, error) {
	for _, entry := range group.items {
		if err := validateReturnItem(entry.in); err != nil {
			return nil, nil, wrapItemIndex(err, entry.index)
		}
	}

	createdBy := uuid.Nil
	if ret.CreatedBy != nil {
		createdBy = *ret.CreatedBy
	}

	batchCode := fmt.Sprintf("%s-%02d", ret.ReturnNo, seq)
	batch, err := inventory.NewBatch(batchCode, seq, group.variant.ID, ret.ReturnDate, createdBy)
	if err != nil {
		return nil, nil, err
	}
	batch.Notes = fmt.Sprintf("Customer return %s", ret.ReturnNo)

	total := 0
	for _, entry := range group.items {
		total += returnUnits(entry.in)
	}
	if err := batch.SetInitialQuantity(total); err != nil {
		return nil, nil, err
	}
	if err := repos.BatchRepo().Save(ctx, batch); err != nil {
		return nil, nil, err
	}

	txn, err := inventory.NewInventoryTransaction(inventory.TransactionTypeReturn, createdBy)
	if err != nil {
		return nil, nil, err
	}
	txn.WithBatch(batch.ID).WithNotes(returnBreakdown(group.items))
	txn.ReturnID = &ret.ID
	txn.ToQuantity = &total
	if err := repos.TransactionRepo().Save(ctx, txn); err != nil {
		return nil, nil, err
	}

	stocks := newReturnStockSet(repos, batch, group.variant.ID)
	for _, entry := range group.items {
		if err := s.returnLine(ctx, repos, ret, batch, txn, group.category, entry.in, stocks); err != nil {
			return nil, nil, wrapItemIndex(err, entry.index)
		}

		item, err := inventory.NewReturnItem(ret.ID, batch.ID, group.variant.ID, entry.in.ItemKind, entry.in.Quantity)
		if err != nil {
			return nil, nil, wrapItemIndex(err, entry.index)
		}
		item.PieceCount = entry.in.PieceCount
		item.PieceLengthMeters = entry.in.PieceLength
		item.Condition = entry.in.Condition
		item.Notes = entry.in.Notes
		ret.Items = append(ret.Items, *item)
	}

	for _, stock := range stocks.created {
		if stock.StockType.IsPieceBacked() {
			if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := deriver.DeriveBatch(ctx, batch.ID, now); err != nil {
		return nil, nil, err
	}
	return batch, txn, nil
}

// returnLine creates the stock and piece records for one request line
func (s *ReturnService) returnLine(
	ctx context.Context,
	repos TransactionalRepositories,
	ret *inventory.Return,
	batch *inventory.Batch,
	txn *inventory.InventoryTransaction,
	category catalog.ProductCategory,
	in ReturnItemRequest,
	stocks *returnStockSet,
) error {
	switch in.ItemKind {
	case inventory.ReturnItemKindFullRoll:
		for _, lot := range groupLengths(in.RollLengths) {
			stock, err := stocks.fullRoll(ctx, lot.length, lot.count)
			if err != nil {
				return err
			}
			ret.Rolls = append(ret.Rolls, *inventory.NewReturnRoll(ret.ID, stock.ID, in.ItemKind, lot.length, lot.count))
		}

	case inventory.ReturnItemKindCutRoll:
		for _, lot := range groupLengths(in.RollLengths) {
			stock, err := stocks.cutRoll(ctx, lot.length)
			if err != nil {
				return err
			}
			pieces := make([]*inventory.HdpeCutPiece, 0, lot.count)
			for j := 0; j < lot.count; j++ {
				p, err := inventory.NewHdpeCutPiece(stock.ID, lot.length, txn.ID)
				if err != nil {
					return err
				}
				pieces = append(pieces, p)
			}
			if err := repos.HdpePieceRepo().SaveAll(ctx, pieces); err != nil {
				return err
			}
			ret.Rolls = append(ret.Rolls, *inventory.NewReturnRoll(ret.ID, stock.ID, in.ItemKind, lot.length, lot.count))
		}

	case inventory.ReturnItemKindBundle:
		for _, lot := range groupSizes(in.BundleSizes) {
			stock, err := stocks.bundle(ctx, lot.size, in.PieceLength, lot.count)
			if err != nil {
				return err
			}
			ret.Bundles = append(ret.Bundles, *inventory.NewReturnBundle(ret.ID, stock.ID, lot.size, in.PieceLength, lot.count))
		}

	case inventory.ReturnItemKindSpare:
		stock, err := stocks.spare(ctx, in.PieceLength)
		if err != nil {
			return err
		}
		count := *in.PieceCount
		if category == catalog.CategoryHDPEPipe {
			pieces := make([]*inventory.HdpeCutPiece, 0, count)
			for j := 0; j < count; j++ {
				p, err := inventory.NewHdpeCutPiece(stock.ID, *in.PieceLength, txn.ID)
				if err != nil {
					return err
				}
				pieces = append(pieces, p)
			}
			if err := repos.HdpePieceRepo().SaveAll(ctx, pieces); err != nil {
				return err
			}
		} else {
			groups := make([]*inventory.SprinklerSparePiece, 0, count)
			for j := 0; j < count; j++ {
				g, err := inventory.NewSprinklerSparePiece(stock.ID, 1, in.PieceLength, txn.ID)
				if err != nil {
					return err
				}
				groups = append(groups, g)
			}
			if err := repos.SparePieceRepo().SaveAll(ctx, groups); err != nil {
				return err
			}
		}
		ret.Rolls = append(ret.Rolls, *inventory.NewReturnRoll(ret.ID, stock.ID, in.ItemKind, pieceLengthOrZero(in.PieceLength), count))
	}
	return nil
}

// validateReturnItem checks the per-kind shape of one request line
func validateReturnItem(in ReturnItemRequest) error {
	switch in.ItemKind {
	case inventory.ReturnItemKindFullRoll, inventory.ReturnItemKindCutRoll:
		if len(in.RollLengths) != in.Quantity {
			return shared.NewDomainError(shared.CodeInvalidReturn, "Roll returns require one length per roll")
		}
	case inventory.ReturnItemKindBundle:
		if len(in.BundleSizes) != in.Quantity {
			return shared.NewDomainError(shared.CodeInvalidReturn, "Bundle returns require one size per bundle")
		}
		for _, size := range in.BundleSizes {
			if size < 1 {
				return shared.NewDomainError(shared.CodeInvalidReturn, "Bundle sizes must be positive")
			}
		}
	case inventory.ReturnItemKindSpare:
		if in.PieceCount == nil || *in.PieceCount < 1 {
			return shared.NewDomainError(shared.CodeInvalidReturn, "Spare returns require a piece count")
		}
		if in.PieceLength == nil {
			return shared.NewDomainError(shared.CodeInvalidReturn, "Spare returns require a piece length")
		}
	}
	return nil
}

// returnUnits is one line's contribution to the new batch's initial
// quantity: rolls for the roll kinds, physical pieces for the bundle and
// spare kinds
func returnUnits(in ReturnItemRequest) int {
	switch in.ItemKind {
	case inventory.ReturnItemKindBundle:
		total := 0
		for _, size := range in.BundleSizes {
			total += size
		}
		return total
	case inventory.ReturnItemKindSpare:
		if in.PieceCount == nil {
			return 0
		}
		return *in.PieceCount
	}
	return in.Quantity
}

// returnBreakdown renders a variant group's lines as "{N}R + {N}C + {N}B + {N}S"
func returnBreakdown(items []indexedReturnItem) string {
	var rolls, cuts, bundles, spares int
	for _, entry := range items {
		switch entry.in.ItemKind {
		case inventory.ReturnItemKindFullRoll:
			rolls += entry.in.Quantity
		case inventory.ReturnItemKindCutRoll:
			cuts += entry.in.Quantity
		case inventory.ReturnItemKindBundle:
			bundles += entry.in.Quantity
		case inventory.ReturnItemKindSpare:
			if entry.in.PieceCount != nil {
				spares += *entry.in.PieceCount
			}
		}
	}
	return fmt.Sprintf("%dR + %dC + %dB + %dS", rolls, cuts, bundles, spares)
}

// lengthLot is a run of returned rolls sharing one length
type lengthLot struct {
	length decimal.Decimal
	count  int
}

// groupLengths collapses a length list into per-length counts, preserving
// first-appearance order
func groupLengths(lengths []decimal.Decimal) []lengthLot {
	var lots []lengthLot
	for _, length := range lengths {
		found := false
		for i := range lots {
			if lots[i].length.Equal(length) {
				lots[i].count++
				found = true
				break
			}
		}
		if !found {
			lots = append(lots, lengthLot{length: length, count: 1})
		}
	}
	return lots
}

// sizeLot is a run of returned bundles sharing one size
type sizeLot struct {
	size  int
	count int
}

func groupSizes(sizes []int) []sizeLot {
	var lots []sizeLot
	for _, size := range sizes {
		found := false
		for i := range lots {
			if lots[i].size == size {
				lots[i].count++
				found = true
				break
			}
		}
		if !found {
			lots = append(lots, sizeLot{size: size, count: 1})
		}
	}
	return lots
}

func pieceLengthOrZero(l *decimal.Decimal) decimal.Decimal {
	if l == nil {
		return decimal.Zero
	}
	return *l
}

// returnStockSet creates the batch's stock rows, reusing a row when two
// lines of the same variant land on the same shape
type returnStockSet struct {
	repos     TransactionalRepositories
	batch     *inventory.Batch
	variantID uuid.UUID
	created   []*inventory.InventoryStock
}

func newReturnStockSet(repos TransactionalRepositories, batch *inventory.Batch, variantID uuid.UUID) *returnStockSet {
	return &returnStockSet{repos: repos, batch: batch, variantID: variantID}
}

func (r *returnStockSet) fullRoll(ctx context.Context, length decimal.Decimal, count int) (*inventory.InventoryStock, error) {
	for _, s := range r.created {
		if s.StockType == inventory.StockTypeFullRoll && s.LengthPerUnit != nil && s.LengthPerUnit.Equal(length) {
			if err := s.Increment(count); err != nil {
				return nil, err
			}
			return s, r.repos.StockRepo().Save(ctx, s)
		}
	}
	stock, err := inventory.NewInventoryStock(r.batch.ID, r.variantID, inventory.StockTypeFullRoll, count)
	if err != nil {
		return nil, err
	}
	l := length
	stock.LengthPerUnit = &l
	return r.save(ctx, stock)
}

func (r *returnStockSet) cutRoll(ctx context.Context, length decimal.Decimal) (*inventory.InventoryStock, error) {
	for _, s := range r.created {
		if s.StockType == inventory.StockTypeCutRoll && s.PieceLengthMeters != nil && s.PieceLengthMeters.Equal(length) {
			return s, nil
		}
	}
	stock, err := inventory.NewInventoryStock(r.batch.ID, r.variantID, inventory.StockTypeCutRoll, 0)
	if err != nil {
		return nil, err
	}
	l := length
	stock.PieceLengthMeters = &l
	return r.save(ctx, stock)
}

func (r *returnStockSet) bundle(ctx context.Context, size int, pieceLength *decimal.Decimal, count int) (*inventory.InventoryStock, error) {
	for _, s := range r.created {
		if s.StockType == inventory.StockTypeBundle && s.PiecesPerBundle != nil && *s.PiecesPerBundle == size &&
			decimalPtrEqual(s.PieceLengthMeters, pieceLength) {
			if err := s.Increment(count); err != nil {
				return nil, err
			}
			return s, r.repos.StockRepo().Save(ctx, s)
		}
	}
	stock, err := inventory.NewInventoryStock(r.batch.ID, r.variantID, inventory.StockTypeBundle, count)
	if err != nil {
		return nil, err
	}
	sz := size
	stock.PiecesPerBundle = &sz
	stock.PieceLengthMeters = pieceLength
	return r.save(ctx, stock)
}

func (r *returnStockSet) spare(ctx context.Context, pieceLength *decimal.Decimal) (*inventory.InventoryStock, error) {
	for _, s := range r.created {
		if s.StockType == inventory.StockTypeSpare && decimalPtrEqual(s.PieceLengthMeters, pieceLength) {
			return s, nil
		}
	}
	stock, err := inventory.NewInventoryStock(r.batch.ID, r.variantID, inventory.StockTypeSpare, 0)
	if err != nil {
		return nil, err
	}
	stock.PieceLengthMeters = pieceLength
	return r.save(ctx, stock)
}

func (r *returnStockSet) save(ctx context.Context, stock *inventory.InventoryStock) (*inventory.InventoryStock, error) {
	if err := r.repos.StockRepo().Save(ctx, stock); err != nil {
		return nil, err
	}
	r.created = append(r.created, stock)
	return stock, nil
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// wrapItemIndex stamps a domain error with the offending item's position
func wrapItemIndex(err error, index int) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.WithItemIndex(index)
	}
	return err
}
