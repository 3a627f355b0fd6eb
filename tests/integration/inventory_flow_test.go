package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	appinv "github.com/pipemill/backend/internal/application/inventory"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/pipemill/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// productionDate keeps document numbers and batch codes deterministic
func productionDate() time.Time {
	return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
}

type stack struct {
	scope      *persistence.GormTransactionScope
	production *appinv.ProductionService
	transform  *appinv.TransformService
	dispatch   *appinv.DispatchService
	returns    *appinv.ReturnService
	scrap      *appinv.ScrapService
	revert     *appinv.RevertService
	query      *appinv.QueryService

	hdpeType *catalog.ProductType
	brand    *catalog.Brand
	customer *catalog.Customer
	operator uuid.UUID
}

func newStack(t *testing.T, db *gorm.DB) *stack {
	t.Helper()
	s := &stack{
		scope:    persistence.NewGormTransactionScope(db),
		operator: uuid.New(),
	}
	s.production = appinv.NewProductionService(s.scope)
	s.transform = appinv.NewTransformService(s.scope)
	s.dispatch = appinv.NewDispatchService(s.scope)
	s.returns = appinv.NewReturnService(s.scope)
	s.scrap = appinv.NewScrapService(s.scope)
	s.revert = appinv.NewRevertService(s.scope)
	s.query = appinv.NewQueryService(s.scope)

	ctx := context.Background()
	err := s.scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		hdpe, err := catalog.NewProductType("HDPE", catalog.CategoryHDPEPipe)
		if err != nil {
			return err
		}
		if err := repos.ProductTypeRepo().Save(ctx, hdpe); err != nil {
			return err
		}
		brand, err := catalog.NewBrand("JALDHARA")
		if err != nil {
			return err
		}
		if err := repos.BrandRepo().Save(ctx, brand); err != nil {
			return err
		}
		customer, err := catalog.NewCustomer("Patel Agro Traders")
		if err != nil {
			return err
		}
		if err := repos.CustomerRepo().Save(ctx, customer); err != nil {
			return err
		}
		s.hdpeType = hdpe
		s.brand = brand
		s.customer = customer
		return nil
	})
	require.NoError(t, err)
	return s
}

// TestInventoryLifecycle drives the full flow against real PostgreSQL:
// the deferred lineage constraints, row locks and derivation all behave
// as the SQLite suite assumes.
func TestInventoryLifecycle(t *testing.T) {
	tdb := NewTestDB(t)
	s := newStack(t, tdb.DB)
	ctx := context.Background()

	hundred := decimal.NewFromInt(100)
	prod, err := s.production.RecordProduction(ctx, appinv.ProductionRequest{
		ProductTypeID:  s.hdpeType.ID,
		BrandID:        s.brand.ID,
		Parameters:     catalog.ParamMap{"size": "32", "grade": "PN4"},
		ProductionDate: productionDate(),
		Stocks: []appinv.ProductionStockInput{
			{StockType: inventory.StockTypeFullRoll, Quantity: 5, LengthPerUnit: &hundred},
		},
		CreatedBy: s.operator,
	})
	require.NoError(t, err)

	// Cut pieces commit together with their creating log entry; the
	// deferred lineage constraint holds at commit time
	rolls := findStock(t, s, prod.BatchID, inventory.StockTypeFullRoll)
	cut, err := s.transform.CutRoll(ctx, appinv.CutRollRequest{
		SourceStockID: rolls.ID,
		PieceLengths:  []decimal.Decimal{decimal.NewFromInt(40), decimal.NewFromInt(60)},
		CreatedBy:     s.operator,
	})
	require.NoError(t, err)

	disp, err := s.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   s.customer.ID,
		DispatchDate: productionDate(),
		Items: []appinv.DispatchItemRequest{
			{StockID: rolls.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 2},
			{StockID: cut.TargetStockID, ItemType: inventory.DispatchItemTypeCutPiece, PieceIDs: cut.PieceIDs},
		},
		CreatedBy: s.operator,
	})
	require.NoError(t, err)

	batch, err := s.query.GetBatch(ctx, prod.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.CurrentQuantity)

	_, err = s.revert.Revert(ctx, appinv.RevertRequest{Handle: disp.Handle, CreatedBy: s.operator})
	require.NoError(t, err)

	batch, err = s.query.GetBatch(ctx, prod.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 6, batch.CurrentQuantity, "4 rolls plus 2 cut pieces after the dispatch rollback")
}

// TestOptimisticLockingConflict verifies the version-guarded update on a
// real connection: a stale aggregate cannot overwrite a newer row.
func TestOptimisticLockingConflict(t *testing.T) {
	tdb := NewTestDB(t)
	s := newStack(t, tdb.DB)
	ctx := context.Background()

	hundred := decimal.NewFromInt(100)
	prod, err := s.production.RecordProduction(ctx, appinv.ProductionRequest{
		ProductTypeID:  s.hdpeType.ID,
		BrandID:        s.brand.ID,
		Parameters:     catalog.ParamMap{"size": "32"},
		ProductionDate: productionDate(),
		Stocks: []appinv.ProductionStockInput{
			{StockType: inventory.StockTypeFullRoll, Quantity: 5, LengthPerUnit: &hundred},
		},
		CreatedBy: s.operator,
	})
	require.NoError(t, err)

	repo := persistence.NewGormInventoryStockRepository(tdb.DB)
	rolls := findStock(t, s, prod.BatchID, inventory.StockTypeFullRoll)

	first, err := repo.FindByID(ctx, rolls.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, rolls.ID)
	require.NoError(t, err)

	require.NoError(t, first.Decrement(1, productionDate()))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.Decrement(2, productionDate()))
	err = repo.Save(ctx, second)
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

// TestRowLockNoWait verifies that NOWAIT piece locks surface contention as
// the pieces-locked domain error instead of blocking.
func TestRowLockNoWait(t *testing.T) {
	tdb := NewTestDB(t)
	s := newStack(t, tdb.DB)
	ctx := context.Background()

	hundred := decimal.NewFromInt(100)
	prod, err := s.production.RecordProduction(ctx, appinv.ProductionRequest{
		ProductTypeID:  s.hdpeType.ID,
		BrandID:        s.brand.ID,
		Parameters:     catalog.ParamMap{"size": "32"},
		ProductionDate: productionDate(),
		Stocks: []appinv.ProductionStockInput{
			{StockType: inventory.StockTypeFullRoll, Quantity: 1, LengthPerUnit: &hundred},
		},
		CreatedBy: s.operator,
	})
	require.NoError(t, err)

	rolls := findStock(t, s, prod.BatchID, inventory.StockTypeFullRoll)
	cut, err := s.transform.CutRoll(ctx, appinv.CutRollRequest{
		SourceStockID: rolls.ID,
		PieceLengths:  []decimal.Decimal{decimal.NewFromInt(50), decimal.NewFromInt(50)},
		CreatedBy:     s.operator,
	})
	require.NoError(t, err)

	// Hold a row lock on the pieces from a second connection
	holder := tdb.DB.Begin()
	require.NoError(t, holder.Error)
	defer holder.Rollback()
	var locked []inventory.HdpeCutPiece
	require.NoError(t, holder.
		Raw(`SELECT * FROM hdpe_cut_pieces WHERE id IN ? FOR UPDATE`, []uuid.UUID{cut.PieceIDs[0], cut.PieceIDs[1]}).
		Scan(&locked).Error)
	require.Len(t, locked, 2)

	_, err = s.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   s.customer.ID,
		DispatchDate: productionDate(),
		Items: []appinv.DispatchItemRequest{
			{StockID: cut.TargetStockID, ItemType: inventory.DispatchItemTypeCutPiece, PieceIDs: cut.PieceIDs},
		},
		CreatedBy: s.operator,
	})
	require.ErrorIs(t, err, shared.ErrPiecesLocked)
}

func findStock(t *testing.T, s *stack, batchID uuid.UUID, stockType inventory.StockType) *inventory.InventoryStock {
	t.Helper()
	var found *inventory.InventoryStock
	ctx := context.Background()
	err := s.scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		stocks, err := repos.StockRepo().FindByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		for i := range stocks {
			if stocks[i].StockType == stockType {
				found = &stocks[i]
				return nil
			}
		}
		return shared.ErrNotFound
	})
	require.NoError(t, err)
	return found
}
