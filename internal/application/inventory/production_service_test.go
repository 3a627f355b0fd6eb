package inventory_test

import (
	"context"
	"strings"
	"testing"

	appinv "github.com/pipemill/backend/internal/application/inventory"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProductionFullRolls(t *testing.T) {
	env := newTestEnv(t)

	resp := env.produceRolls(t, 5, "100")

	assert.True(t, strings.HasPrefix(resp.Handle, "txn_"))
	assert.Equal(t, "HDPE-GRADEPN4-SIZE32-JALDHARA-2026-0001", resp.BatchCode)

	batch := env.getBatch(t, resp.BatchID)
	assert.Equal(t, 5, batch.InitialQuantity)
	assert.Equal(t, 5, batch.CurrentQuantity)
	assert.False(t, batch.IsDeleted())

	stock := env.stockByType(t, resp.BatchID, inventory.StockTypeFullRoll)
	assert.Equal(t, 5, stock.Quantity)
	assert.Equal(t, inventory.StockStatusInStock, stock.Status)
	require.NotNil(t, stock.LengthPerUnit)
	assert.True(t, stock.LengthPerUnit.Equal(dec("100")))

	txn := env.getTransaction(t, resp.TransactionID)
	assert.Equal(t, inventory.TransactionTypeProduction, txn.TransactionType)
	require.NotNil(t, txn.ToQuantity)
	assert.Equal(t, 5, *txn.ToQuantity)
	require.Len(t, txn.StockSnapshot, 1)
	assert.Equal(t, stock.ID, txn.StockSnapshot[0].StockID)

	env.verifyDerivation(t, resp.BatchID)
}

func TestRecordProductionCutRollPieces(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.production.RecordProduction(context.Background(), appinv.ProductionRequest{
		ProductTypeID:  env.hdpeType.ID,
		BrandID:        env.brand.ID,
		Parameters:     catalog.ParamMap{"size": "40"},
		ProductionDate: productionDate,
		Stocks: []appinv.ProductionStockInput{
			{
				StockType:    inventory.StockTypeCutRoll,
				Quantity:     3,
				PieceLengths: []decimal.Decimal{dec("30"), dec("45.5"), dec("24.5")},
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	stock := env.stockByType(t, resp.BatchID, inventory.StockTypeCutRoll)
	assert.Equal(t, 3, stock.Quantity)

	pieces := env.cutPieces(t, stock.ID)
	require.Len(t, pieces, 3)
	for i := range pieces {
		assert.Equal(t, resp.TransactionID, pieces[i].CreatedByTransactionID)
		assert.Equal(t, stock.ID, pieces[i].OriginalStockID)
	}

	txn := env.getTransaction(t, resp.TransactionID)
	require.Len(t, txn.CutPieceDetails, 3)

	env.verifyDerivation(t, resp.BatchID)
}

func TestRecordProductionSprinklerBundlesAndSpares(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.production.RecordProduction(context.Background(), appinv.ProductionRequest{
		ProductTypeID:  env.sprinklerType.ID,
		BrandID:        env.brand.ID,
		Parameters:     catalog.ParamMap{"size": "63"},
		ProductionDate: productionDate,
		Stocks: []appinv.ProductionStockInput{
			{
				StockType:       inventory.StockTypeBundle,
				Quantity:        10,
				PiecesPerBundle: intp(5),
				PieceLength:     decp("6"),
			},
			{
				StockType:   inventory.StockTypeSpare,
				PieceLength: decp("6"),
				SpareGroups: []int{4, 3},
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.StockIDs, 2)

	bundles := env.stockByType(t, resp.BatchID, inventory.StockTypeBundle)
	assert.Equal(t, 10, bundles.Quantity)
	require.NotNil(t, bundles.PiecesPerBundle)
	assert.Equal(t, 5, *bundles.PiecesPerBundle)

	// Spare stock counts groups, not physical pieces
	spares := env.stockByType(t, resp.BatchID, inventory.StockTypeSpare)
	assert.Equal(t, 2, spares.Quantity)
	groups := env.sparePieceGroups(t, spares.ID)
	require.Len(t, groups, 2)
	counts := []int{groups[0].PieceCount, groups[1].PieceCount}
	assert.ElementsMatch(t, []int{4, 3}, counts)

	// 10 bundles of 5 plus 7 loose pieces, all in physical pieces
	batch := env.getBatch(t, resp.BatchID)
	assert.Equal(t, 57, batch.InitialQuantity)
	assert.Equal(t, 57, batch.CurrentQuantity)

	env.verifyDerivation(t, resp.BatchID)
}

func TestRecordProductionBundleInitialQuantityCountsPieces(t *testing.T) {
	env := newTestEnv(t)

	resp := env.produceBundles(t, 5, 50, "6")

	batch := env.getBatch(t, resp.BatchID)
	assert.Equal(t, 250, batch.InitialQuantity)
	assert.Equal(t, 250, batch.CurrentQuantity)

	txn := env.getTransaction(t, resp.TransactionID)
	require.NotNil(t, txn.ToQuantity)
	assert.Equal(t, 250, *txn.ToQuantity)
	env.verifyDerivation(t, resp.BatchID)
}

func TestRecordProductionBatchNumbering(t *testing.T) {
	env := newTestEnv(t)

	first := env.produceRolls(t, 2, "100")
	second := env.produceRolls(t, 3, "100")

	assert.True(t, strings.HasSuffix(first.BatchCode, "-0001"))
	assert.True(t, strings.HasSuffix(second.BatchCode, "-0002"))
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestRecordProductionVariantReuseAcrossUnitSuffixes(t *testing.T) {
	env := newTestEnv(t)

	// "32mm" and "32" normalize to the same variant, so the second run gets
	// the next batch number rather than restarting at one
	ctx := context.Background()
	first, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
		ProductTypeID:  env.hdpeType.ID,
		BrandID:        env.brand.ID,
		Parameters:     catalog.ParamMap{"size": "32mm"},
		ProductionDate: productionDate,
		Stocks: []appinv.ProductionStockInput{
			{StockType: inventory.StockTypeFullRoll, Quantity: 1, LengthPerUnit: decp("100")},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	second, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
		ProductTypeID:  env.hdpeType.ID,
		BrandID:        env.brand.ID,
		Parameters:     catalog.ParamMap{"size": "32"},
		ProductionDate: productionDate,
		Stocks: []appinv.ProductionStockInput{
			{StockType: inventory.StockTypeFullRoll, Quantity: 1, LengthPerUnit: decp("100")},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	assert.Equal(t, "HDPE-SIZE32-JALDHARA-2026-0001", first.BatchCode)
	assert.Equal(t, "HDPE-SIZE32-JALDHARA-2026-0002", second.BatchCode)
}

func TestRecordProductionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("rejects empty stock list", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.hdpeType.ID,
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			CreatedBy:      env.operator,
		})
		require.Error(t, err)
	})

	t.Run("rejects roll stock under a sprinkler product", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.sprinklerType.ID,
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			Stocks: []appinv.ProductionStockInput{
				{StockType: inventory.StockTypeFullRoll, Quantity: 1, LengthPerUnit: decp("100")},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidProduction)
	})

	t.Run("rejects bundle stock under an HDPE product", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.hdpeType.ID,
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			Stocks: []appinv.ProductionStockInput{
				{StockType: inventory.StockTypeBundle, Quantity: 1, PiecesPerBundle: intp(5), PieceLength: decp("6")},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidProduction)
	})

	t.Run("rejects full roll stock without a length", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.hdpeType.ID,
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			Stocks: []appinv.ProductionStockInput{
				{StockType: inventory.StockTypeFullRoll, Quantity: 1},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidProduction)
	})

	t.Run("rejects cut roll stock when lengths do not match the count", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.hdpeType.ID,
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			Stocks: []appinv.ProductionStockInput{
				{StockType: inventory.StockTypeCutRoll, Quantity: 3, PieceLengths: []decimal.Decimal{dec("30")}},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidProduction)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		require.NotNil(t, de.ItemIndex)
		assert.Equal(t, 0, *de.ItemIndex)
	})

	t.Run("rejects spare stock without group counts", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.sprinklerType.ID,
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			Stocks: []appinv.ProductionStockInput{
				{StockType: inventory.StockTypeSpare, PieceLength: decp("6")},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidProduction)
	})

	t.Run("rejects unknown product type", func(t *testing.T) {
		_, err := env.production.RecordProduction(ctx, appinv.ProductionRequest{
			ProductTypeID:  env.operator, // not a product type
			BrandID:        env.brand.ID,
			ProductionDate: productionDate,
			Stocks: []appinv.ProductionStockInput{
				{StockType: inventory.StockTypeFullRoll, Quantity: 1, LengthPerUnit: decp("100")},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrNotFound)
	})
}
