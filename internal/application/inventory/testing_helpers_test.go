package inventory_test

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
)

// productionDate keeps document numbers and batch codes deterministic
var productionDate = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

// testEnv wires the full service stack against a fresh in-memory database
type testEnv struct {
	scope *persistence.GormTransactionScope

	hdpeType      *catalog.ProductType
	sprinklerType *catalog.ProductType
	brand         *catalog.Brand
	customer      *catalog.Customer
	operator      uuid.UUID

	production *appinv.ProductionService
	transform  *appinv.TransformService
	dispatch   *appinv.DispatchService
	returns    *appinv.ReturnService
	scrap      *appinv.ScrapService
	revert     *appinv.RevertService
	query      *appinv.QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := persistence.NewSQLiteDatabase()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.AutoMigrate(db.DB))

	env := &testEnv{
		scope:    persistence.NewGormTransactionScope(db.DB),
		operator: uuid.New(),
	}
	env.production = appinv.NewProductionService(env.scope)
	env.transform = appinv.NewTransformService(env.scope)
	env.dispatch = appinv.NewDispatchService(env.scope)
	env.returns = appinv.NewReturnService(env.scope)
	env.scrap = appinv.NewScrapService(env.scope)
	env.revert = appinv.NewRevertService(env.scope)
	env.query = appinv.NewQueryService(env.scope)

	ctx := context.Background()
	err = env.scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		hdpe, err := catalog.NewProductType("HDPE", catalog.CategoryHDPEPipe)
		if err != nil {
			return err
		}
		if err := repos.ProductTypeRepo().Save(ctx, hdpe); err != nil {
			return err
		}
		sprinkler, err := catalog.NewProductType("SPRINKLER", catalog.CategorySprinklerPipe)
		if err != nil {
			return err
		}
		if err := repos.ProductTypeRepo().Save(ctx, sprinkler); err != nil {
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
		env.hdpeType = hdpe
		env.sprinklerType = sprinkler
		env.brand = brand
		env.customer = customer
		return nil
	})
	require.NoError(t, err)
	return env
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intp(v int) *int {
	return &v
}

// produceRolls records an HDPE production run of full rolls
func (e *testEnv) produceRolls(t *testing.T, quantity int, lengthPerUnit string) *appinv.ProductionResponse {
	t.Helper()
	resp, err := e.production.RecordProduction(context.Background(), appinv.ProductionRequest{
		ProductTypeID:  e.hdpeType.ID,
		BrandID:        e.brand.ID,
		Parameters:     catalog.ParamMap{"size": "32", "grade": "PN4"},
		ProductionDate: productionDate,
		Stocks: []appinv.ProductionStockInput{
			{
				StockType:     inventory.StockTypeFullRoll,
				Quantity:      quantity,
				LengthPerUnit: decp(lengthPerUnit),
			},
		},
		CreatedBy: e.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.StockIDs, 1)
	return resp
}

// produceBundles records a sprinkler production run of intact bundles
func (e *testEnv) produceBundles(t *testing.T, bundles, piecesPerBundle int, pieceLength string) *appinv.ProductionResponse {
	t.Helper()
	resp, err := e.production.RecordProduction(context.Background(), appinv.ProductionRequest{
		ProductTypeID:  e.sprinklerType.ID,
		BrandID:        e.brand.ID,
		Parameters:     catalog.ParamMap{"size": "63"},
		ProductionDate: productionDate,
		Stocks: []appinv.ProductionStockInput{
			{
				StockType:       inventory.StockTypeBundle,
				Quantity:        bundles,
				PiecesPerBundle: intp(piecesPerBundle),
				PieceLength:     decp(pieceLength),
			},
		},
		CreatedBy: e.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.StockIDs, 1)
	return resp
}

// stockByType loads the batch's stock row of the given kind, soft-deleted
// rows included
func (e *testEnv) stockByType(t *testing.T, batchID uuid.UUID, stockType inventory.StockType) *inventory.InventoryStock {
	t.Helper()
	var found *inventory.InventoryStock
	err := e.scope.Execute(context.Background(), func(repos appinv.TransactionalRepositories) error {
		stocks, err := repos.StockRepo().FindByBatch(context.Background(), batchID)
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

// getBatch loads a batch, soft-deleted ones included
func (e *testEnv) getBatch(t *testing.T, id uuid.UUID) *inventory.Batch {
	t.Helper()
	batch, err := e.query.GetBatch(context.Background(), id)
	require.NoError(t, err)
	return batch
}

// getTransaction loads one log entry
func (e *testEnv) getTransaction(t *testing.T, id uuid.UUID) *inventory.InventoryTransaction {
	t.Helper()
	var txn *inventory.InventoryTransaction
	err := e.scope.Execute(context.Background(), func(repos appinv.TransactionalRepositories) error {
		var err error
		txn, err = repos.TransactionRepo().FindByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return txn
}

// sparePieceGroups lists the in-stock spare groups of a stock row
func (e *testEnv) sparePieceGroups(t *testing.T, stockID uuid.UUID) []inventory.SprinklerSparePiece {
	t.Helper()
	var groups []inventory.SprinklerSparePiece
	err := e.scope.Execute(context.Background(), func(repos appinv.TransactionalRepositories) error {
		var err error
		groups, err = repos.SparePieceRepo().FindInStockByStock(context.Background(), stockID)
		return err
	})
	require.NoError(t, err)
	return groups
}

// cutPieces lists the in-stock cut pieces of a stock row
func (e *testEnv) cutPieces(t *testing.T, stockID uuid.UUID) []inventory.HdpeCutPiece {
	t.Helper()
	var pieces []inventory.HdpeCutPiece
	err := e.scope.Execute(context.Background(), func(repos appinv.TransactionalRepositories) error {
		var err error
		pieces, err = repos.HdpePieceRepo().FindInStockByStock(context.Background(), stockID)
		return err
	})
	require.NoError(t, err)
	return pieces
}

// verifyDerivation recomputes both derivation rules from raw piece rows and
// checks them against the persisted quantities. A cut stock's quantity is
// its live in-stock piece count; a spare stock's quantity is its number of
// live groups. The batch total counts rolls, bundles as their physical
// pieces, cut stock as pieces, and spare stock as the sum of group counts.
func (e *testEnv) verifyDerivation(t *testing.T, batchID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	err := e.scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		batch, err := repos.BatchRepo().FindByID(ctx, batchID)
		if err != nil {
			return err
		}
		stocks, err := repos.StockRepo().FindByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		total := 0
		for i := range stocks {
			s := &stocks[i]
			if s.IsDeleted() {
				continue
			}
			contribution := 0
			switch s.StockType {
			case inventory.StockTypeFullRoll:
				contribution = s.Quantity
			case inventory.StockTypeBundle:
				require.NotNil(t, s.PiecesPerBundle)
				contribution = s.Quantity * *s.PiecesPerBundle
			case inventory.StockTypeCutRoll:
				pieces, err := repos.HdpePieceRepo().FindInStockByStock(ctx, s.ID)
				if err != nil {
					return err
				}
				assert.Equal(t, len(pieces), s.Quantity, "cut roll stock quantity must match live piece count")
				contribution = len(pieces)
			case inventory.StockTypeSpare:
				groups, err := repos.SparePieceRepo().FindInStockByStock(ctx, s.ID)
				if err != nil {
					return err
				}
				cut, err := repos.HdpePieceRepo().FindInStockByStock(ctx, s.ID)
				if err != nil {
					return err
				}
				assert.Equal(t, len(groups)+len(cut), s.Quantity, "spare stock quantity must match live group count")
				for j := range groups {
					contribution += groups[j].PieceCount
				}
				contribution += len(cut)
			}
			total += contribution
		}
		assert.Equal(t, total, batch.CurrentQuantity, "batch quantity must match the sum of its live stock rows")
		if total == 0 {
			assert.True(t, batch.IsDeleted(), "exhausted batch must be soft-deleted")
		} else {
			assert.False(t, batch.IsDeleted(), "batch with stock must be live")
		}
		return nil
	})
	require.NoError(t, err)
}

// requireDomainCode asserts that err is a domain error carrying the code
func requireDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}
