package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
)

// ProductionService records production runs as batches with stock
type ProductionService struct {
	scope          TransactionScope
	eventPublisher shared.EventPublisher
}

// NewProductionService creates a new ProductionService
func NewProductionService(scope TransactionScope) *ProductionService {
	return &ProductionService{scope: scope}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *ProductionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RecordProduction creates a batch, its stock rows, and piece records for
// piece-backed rows, all in one transaction. The batch code is derived from
// the variant and a per-year sequence; a duplicate code rejects the run.
func (s *ProductionService) RecordProduction(ctx context.Context, req ProductionRequest) (*ProductionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var resp ProductionResponse
	var batch *inventory.Batch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		productType, err := repos.ProductTypeRepo().FindByID(ctx, req.ProductTypeID)
		if err != nil {
			return err
		}
		brand, err := repos.BrandRepo().FindByID(ctx, req.BrandID)
		if err != nil {
			return err
		}
		if err := validateStocksForCategory(productType.Category, req.Stocks); err != nil {
			return err
		}

		variant, err := resolveVariant(ctx, repos, req.ProductTypeID, req.BrandID, req.Parameters)
		if err != nil {
			return err
		}

		year := req.ProductionDate.Year()
		maxNo, err := repos.BatchRepo().MaxBatchNoForYear(ctx, variant.ID, year)
		if err != nil {
			return err
		}
		batchNo := maxNo + 1
		code := inventory.BuildBatchCode(productType.Name, catalog.EncodeParams(variant.Parameters), brand.Name, year, batchNo)

		if _, err := repos.BatchRepo().FindByCode(ctx, code); err == nil {
			return shared.ErrDuplicateBatchCode
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		batch, err = inventory.NewBatch(code, batchNo, variant.ID, req.ProductionDate, req.CreatedBy)
		if err != nil {
			return err
		}
		batch.WeightPerMeter = req.WeightPerMeter
		batch.TotalWeight = req.TotalWeight
		batch.Notes = req.Notes
		batch.AttachmentRef = req.AttachmentRef

		total := 0
		for _, in := range req.Stocks {
			total += initialUnits(in)
		}
		if err := batch.SetInitialQuantity(total); err != nil {
			return err
		}
		if err := repos.BatchRepo().Save(ctx, batch); err != nil {
			return err
		}

		txn, err := inventory.NewInventoryTransaction(inventory.TransactionTypeProduction, req.CreatedBy)
		if err != nil {
			return err
		}
		txn.WithBatch(batch.ID).WithNotes(req.Notes)
		txn.ToQuantity = &total

		now := time.Now()
		deriver := NewDeriver(repos)
		snapshot := make(inventory.StockSnapshots, 0, len(req.Stocks))
		var details inventory.CutPieceDetails

		for i, in := range req.Stocks {
			stock, err := s.createStockRow(ctx, repos, batch, variant.ID, in, txn.ID, &details)
			if err != nil {
				var de *shared.DomainError
				if errors.As(err, &de) {
					return de.WithItemIndex(i)
				}
				return err
			}
			resp.StockIDs = append(resp.StockIDs, stock.ID)
			snap := inventory.StockSnapshot{
				StockID:         stock.ID,
				StockType:       stock.StockType,
				Quantity:        stock.Quantity,
				LengthPerUnit:   stock.LengthPerUnit,
				PiecesPerBundle: stock.PiecesPerBundle,
				PieceLength:     stock.PieceLengthMeters,
			}
			if in.StockType == inventory.StockTypeCutRoll {
				snap.PieceLengths = in.PieceLengths
			}
			snapshot = append(snapshot, snap)
			if err := deriver.DeriveStock(ctx, stock, nil, now); err != nil {
				return err
			}
		}

		txn.StockSnapshot = snapshot
		txn.CutPieceDetails = details
		if err := repos.TransactionRepo().Save(ctx, txn); err != nil {
			return err
		}
		if err := deriver.DeriveBatch(ctx, batch.ID, now); err != nil {
			return err
		}

		resp.BatchID = batch.ID
		resp.BatchCode = batch.BatchCode
		resp.TransactionID = txn.ID
		resp.Handle = inventory.EncodeHandle(inventory.HandleKindTxn, txn.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, inventory.NewBatchProducedEvent(batch, resp.TransactionID, batch.InitialQuantity))
	}
	return &resp, nil
}

// createStockRow builds one stock row and, for piece-backed rows, its piece
// records
func (s *ProductionService) createStockRow(
	ctx context.Context,
	repos TransactionalRepositories,
	batch *inventory.Batch,
	variantID uuid.UUID,
	in ProductionStockInput,
	txnID uuid.UUID,
	details *inventory.CutPieceDetails,
) (*inventory.InventoryStock, error) {
	stock, err := inventory.NewInventoryStock(batch.ID, variantID, in.StockType, in.Quantity)
	if err != nil {
		return nil, err
	}
	stock.LengthPerUnit = in.LengthPerUnit
	stock.PiecesPerBundle = in.PiecesPerBundle
	stock.PieceLengthMeters = in.PieceLength

	switch in.StockType {
	case inventory.StockTypeFullRoll:
		if in.LengthPerUnit == nil {
			return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Full roll stock requires a length per unit")
		}
	case inventory.StockTypeBundle:
		if in.PiecesPerBundle == nil || in.PieceLength == nil {
			return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Bundle stock requires pieces per bundle and piece length")
		}
	case inventory.StockTypeCutRoll:
		if len(in.PieceLengths) != in.Quantity {
			return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Cut roll stock requires one length per piece")
		}
	case inventory.StockTypeSpare:
		if in.PieceLength == nil {
			return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Spare stock requires a piece length")
		}
		if len(in.SpareGroups) == 0 {
			return nil, shared.NewDomainError(shared.CodeInvalidProduction, "Spare stock requires per-group piece counts")
		}
	}

	if err := repos.StockRepo().Save(ctx, stock); err != nil {
		return nil, err
	}

	switch in.StockType {
	case inventory.StockTypeCutRoll:
		pieces := make([]*inventory.HdpeCutPiece, 0, len(in.PieceLengths))
		for _, length := range in.PieceLengths {
			p, err := inventory.NewHdpeCutPiece(stock.ID, length, txnID)
			if err != nil {
				return nil, err
			}
			pieces = append(pieces, p)
			*details = append(*details, inventory.CutPieceDetail{Length: length, PieceID: p.ID})
		}
		if err := repos.HdpePieceRepo().SaveAll(ctx, pieces); err != nil {
			return nil, err
		}
	case inventory.StockTypeSpare:
		groups := make([]*inventory.SprinklerSparePiece, 0, len(in.SpareGroups))
		for _, count := range in.SpareGroups {
			group, err := inventory.NewSprinklerSparePiece(stock.ID, count, in.PieceLength, txnID)
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
		}
		if err := repos.SparePieceRepo().SaveAll(ctx, groups); err != nil {
			return nil, err
		}
	}
	return stock, nil
}

// initialUnits is one production entry's contribution to the batch's initial
// quantity: rolls for the HDPE kinds, physical pieces for the sprinkler kinds
func initialUnits(in ProductionStockInput) int {
	switch in.StockType {
	case inventory.StockTypeBundle:
		if in.PiecesPerBundle == nil {
			return in.Quantity
		}
		return in.Quantity * *in.PiecesPerBundle
	case inventory.StockTypeSpare:
		total := 0
		for _, count := range in.SpareGroups {
			total += count
		}
		return total
	}
	return in.Quantity
}

// validateStocksForCategory rejects stock kinds that do not belong to the
// product category (rolls are HDPE, bundles are sprinkler)
func validateStocksForCategory(category catalog.ProductCategory, stocks []ProductionStockInput) error {
	for _, in := range stocks {
		switch in.StockType {
		case inventory.StockTypeFullRoll, inventory.StockTypeCutRoll:
			if category != catalog.CategoryHDPEPipe {
				return shared.NewDomainError(shared.CodeInvalidProduction, "Roll stock requires an HDPE product")
			}
		case inventory.StockTypeBundle, inventory.StockTypeSpare:
			if category != catalog.CategorySprinklerPipe {
				return shared.NewDomainError(shared.CodeInvalidProduction, "Bundle stock requires a sprinkler product")
			}
		}
		if in.StockType != inventory.StockTypeSpare && in.Quantity < 1 {
			return shared.NewDomainError(shared.CodeInvalidProduction, "Stock quantity must be positive")
		}
	}
	return nil
}

// resolveVariant finds the variant matching the normalized parameters,
// creating it on first use
func resolveVariant(ctx context.Context, repos TransactionalRepositories, productTypeID, brandID uuid.UUID, params catalog.ParamMap) (*catalog.ProductVariant, error) {
	variant, err := repos.VariantRepo().FindMatching(ctx, productTypeID, brandID, params)
	if err == nil {
		return variant, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	variant, err = catalog.NewProductVariant(productTypeID, brandID, params)
	if err != nil {
		return nil, err
	}
	if err := repos.VariantRepo().Save(ctx, variant); err != nil {
		return nil, err
	}
	return variant, nil
}
