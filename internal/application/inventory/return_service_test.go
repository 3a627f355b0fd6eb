package inventory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	appinv "github.com/pipemill/backend/internal/application/inventory"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnOpensFreshBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 5, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	disp, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   env.customer.ID,
		DispatchDate: productionDate,
		Items: []appinv.DispatchItemRequest{
			{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 3},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerID:   &env.customer.ID,
		CustomerName: env.customer.Name,
		DispatchID:   &disp.DispatchID,
		ReturnDate:   productionDate,
		Reason:       "wrong size delivered",
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "32", "grade": "PN4"},
				ItemKind:      inventory.ReturnItemKindFullRoll,
				Quantity:      2,
				RollLengths:   []decimal.Decimal{dec("100"), dec("100")},
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	assert.Equal(t, "RET-2026-001", resp.ReturnNo)
	assert.True(t, strings.HasPrefix(resp.Handle, "return_"))
	require.Len(t, resp.BatchIDs, 1)
	require.Len(t, resp.TransactionIDs, 1)
	require.Len(t, resp.StockIDs, 1)

	// Returned rolls never rejoin the production batch
	assert.NotEqual(t, prod.BatchID, resp.BatchIDs[0])
	original := env.getBatch(t, prod.BatchID)
	assert.Equal(t, 2, original.CurrentQuantity)

	batch := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, "RET-2026-001-01", batch.BatchCode)
	assert.Equal(t, 2, batch.InitialQuantity)
	assert.Equal(t, 2, batch.CurrentQuantity)
	assert.Equal(t, "Customer return RET-2026-001", batch.Notes)

	returned := env.stockByType(t, batch.ID, inventory.StockTypeFullRoll)
	assert.Equal(t, resp.StockIDs[0], returned.ID)
	assert.Equal(t, 2, returned.Quantity)
	require.NotNil(t, returned.LengthPerUnit)
	assert.True(t, returned.LengthPerUnit.Equal(dec("100")))

	txn := env.getTransaction(t, resp.TransactionIDs[0])
	assert.Equal(t, inventory.TransactionTypeReturn, txn.TransactionType)
	require.NotNil(t, txn.ReturnID)
	assert.Equal(t, resp.ReturnID, *txn.ReturnID)
	require.NotNil(t, txn.ToQuantity)
	assert.Equal(t, 2, *txn.ToQuantity)
	assert.Equal(t, "2R + 0C + 0B + 0S", txn.Notes)

	env.verifyDerivation(t, prod.BatchID)
	env.verifyDerivation(t, batch.ID)
}

func TestReturnBeforeProductionOpensFirstBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Nothing of this product was ever produced; the return still lands
	lengths := make([]decimal.Decimal, 5)
	for i := range lengths {
		lengths[i] = dec("500")
	}
	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerName: env.customer.Name,
		ReturnDate:   productionDate,
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "75"},
				ItemKind:      inventory.ReturnItemKindFullRoll,
				Quantity:      5,
				RollLengths:   lengths,
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchIDs, 1)

	batch := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, 5, batch.InitialQuantity)
	assert.Equal(t, 5, batch.CurrentQuantity)
	assert.False(t, batch.IsDeleted())

	stock := env.stockByType(t, batch.ID, inventory.StockTypeFullRoll)
	assert.Equal(t, 5, stock.Quantity)
	require.NotNil(t, stock.LengthPerUnit)
	assert.True(t, stock.LengthPerUnit.Equal(dec("500")))
	env.verifyDerivation(t, batch.ID)
}

func TestReturnGroupsLinesPerVariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerName: env.customer.Name,
		ReturnDate:   productionDate,
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "32"},
				ItemKind:      inventory.ReturnItemKindFullRoll,
				Quantity:      1,
				RollLengths:   []decimal.Decimal{dec("100")},
			},
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "40"},
				ItemKind:      inventory.ReturnItemKindFullRoll,
				Quantity:      2,
				RollLengths:   []decimal.Decimal{dec("200"), dec("200")},
			},
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "32mm"}, // same variant as "32"
				ItemKind:      inventory.ReturnItemKindFullRoll,
				Quantity:      1,
				RollLengths:   []decimal.Decimal{dec("100")},
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	// One batch and one log entry per distinct variant, numbered in
	// first-appearance order
	require.Len(t, resp.BatchIDs, 2)
	require.Len(t, resp.TransactionIDs, 2)

	first := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, "RET-2026-001-01", first.BatchCode)
	assert.Equal(t, 2, first.InitialQuantity)

	second := env.getBatch(t, resp.BatchIDs[1])
	assert.Equal(t, "RET-2026-001-02", second.BatchCode)
	assert.Equal(t, 2, second.InitialQuantity)

	env.verifyDerivation(t, first.ID)
	env.verifyDerivation(t, second.ID)
}

func TestReturnCutRollCreatesPieces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerName: env.customer.Name,
		ReturnDate:   productionDate,
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "32"},
				ItemKind:      inventory.ReturnItemKindCutRoll,
				Quantity:      3,
				RollLengths:   []decimal.Decimal{dec("25"), dec("35"), dec("25")},
				Condition:     "good",
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchIDs, 1)
	// One cut stock per distinct length: 2 x 25m and 1 x 35m
	require.Len(t, resp.StockIDs, 2)

	pieceCounts := make([]int, 0, 2)
	for _, stockID := range resp.StockIDs {
		pieces := env.cutPieces(t, stockID)
		pieceCounts = append(pieceCounts, len(pieces))
		for i := range pieces {
			assert.Equal(t, resp.TransactionIDs[0], pieces[i].CreatedByTransactionID)
			assert.Equal(t, stockID, pieces[i].OriginalStockID)
		}
	}
	assert.ElementsMatch(t, []int{2, 1}, pieceCounts)

	batch := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, 3, batch.InitialQuantity)
	assert.Equal(t, 3, batch.CurrentQuantity)

	txn := env.getTransaction(t, resp.TransactionIDs[0])
	assert.Equal(t, "0R + 3C + 0B + 0S", txn.Notes)
	env.verifyDerivation(t, batch.ID)
}

func TestReturnBundlesPerSizeStocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerName: env.customer.Name,
		ReturnDate:   productionDate,
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.sprinklerType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "63"},
				ItemKind:      inventory.ReturnItemKindBundle,
				Quantity:      3,
				BundleSizes:   []int{50, 50, 30},
				PieceLength:   decp("6"),
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchIDs, 1)
	// One bundle stock per distinct size
	require.Len(t, resp.StockIDs, 2)

	type shape struct{ ppb, qty int }
	shapes := make([]shape, 0, 2)
	for _, stockID := range resp.StockIDs {
		var stock *inventory.InventoryStock
		err := env.scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
			var err error
			stock, err = repos.StockRepo().FindByID(ctx, stockID)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, inventory.StockTypeBundle, stock.StockType)
		require.NotNil(t, stock.PiecesPerBundle)
		shapes = append(shapes, shape{ppb: *stock.PiecesPerBundle, qty: stock.Quantity})
	}
	assert.ElementsMatch(t, []shape{{ppb: 50, qty: 2}, {ppb: 30, qty: 1}}, shapes)

	// 2x50 + 1x30 physical pieces
	batch := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, 130, batch.InitialQuantity)
	assert.Equal(t, 130, batch.CurrentQuantity)
	env.verifyDerivation(t, batch.ID)
}

func TestReturnSprinklerSpares(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerName: env.customer.Name,
		ReturnDate:   productionDate,
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.sprinklerType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "63"},
				ItemKind:      inventory.ReturnItemKindSpare,
				Quantity:      1,
				PieceCount:    intp(3),
				PieceLength:   decp("6"),
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchIDs, 1)

	// Each returned loose piece lands as its own single-piece group
	spare := env.stockByType(t, resp.BatchIDs[0], inventory.StockTypeSpare)
	assert.Equal(t, 3, spare.Quantity)
	groups := env.sparePieceGroups(t, spare.ID)
	require.Len(t, groups, 3)
	for i := range groups {
		assert.Equal(t, 1, groups[i].PieceCount)
		assert.Equal(t, resp.TransactionIDs[0], groups[i].CreatedByTransactionID)
	}

	batch := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, 3, batch.InitialQuantity)
	assert.Equal(t, 3, batch.CurrentQuantity)

	txn := env.getTransaction(t, resp.TransactionIDs[0])
	assert.Equal(t, "0R + 0C + 0B + 3S", txn.Notes)
	env.verifyDerivation(t, batch.ID)
}

func TestReturnHdpeSparesLandAsCutPieces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.returns.Return(ctx, appinv.ReturnRequest{
		CustomerName: env.customer.Name,
		ReturnDate:   productionDate,
		Items: []appinv.ReturnItemRequest{
			{
				ProductTypeID: env.hdpeType.ID,
				BrandID:       env.brand.ID,
				Parameters:    catalog.ParamMap{"size": "32"},
				ItemKind:      inventory.ReturnItemKindSpare,
				Quantity:      1,
				PieceCount:    intp(2),
				PieceLength:   decp("10"),
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchIDs, 1)

	spare := env.stockByType(t, resp.BatchIDs[0], inventory.StockTypeSpare)
	assert.Equal(t, 2, spare.Quantity)
	pieces := env.cutPieces(t, spare.ID)
	require.Len(t, pieces, 2)
	for i := range pieces {
		assert.True(t, pieces[i].LengthMeters.Equal(dec("10")))
		assert.Equal(t, resp.TransactionIDs[0], pieces[i].CreatedByTransactionID)
	}

	batch := env.getBatch(t, resp.BatchIDs[0])
	assert.Equal(t, 2, batch.CurrentQuantity)
	env.verifyDerivation(t, batch.ID)
}

func TestReturnRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("rejects roll returns when lengths do not match the count", func(t *testing.T) {
		_, err := env.returns.Return(ctx, appinv.ReturnRequest{
			CustomerName: env.customer.Name,
			ReturnDate:   productionDate,
			Items: []appinv.ReturnItemRequest{
				{
					ProductTypeID: env.hdpeType.ID,
					BrandID:       env.brand.ID,
					Parameters:    catalog.ParamMap{"size": "32"},
					ItemKind:      inventory.ReturnItemKindCutRoll,
					Quantity:      3,
					RollLengths:   []decimal.Decimal{dec("25")},
				},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidReturn)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		require.NotNil(t, de.ItemIndex)
		assert.Equal(t, 0, *de.ItemIndex)
	})

	t.Run("rejects bundle returns when sizes do not match the count", func(t *testing.T) {
		_, err := env.returns.Return(ctx, appinv.ReturnRequest{
			CustomerName: env.customer.Name,
			ReturnDate:   productionDate,
			Items: []appinv.ReturnItemRequest{
				{
					ProductTypeID: env.sprinklerType.ID,
					BrandID:       env.brand.ID,
					Parameters:    catalog.ParamMap{"size": "63"},
					ItemKind:      inventory.ReturnItemKindBundle,
					Quantity:      2,
					BundleSizes:   []int{50},
					PieceLength:   decp("6"),
				},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidReturn)
	})

	t.Run("rejects spare returns without a piece count", func(t *testing.T) {
		_, err := env.returns.Return(ctx, appinv.ReturnRequest{
			CustomerName: env.customer.Name,
			ReturnDate:   productionDate,
			Items: []appinv.ReturnItemRequest{
				{
					ProductTypeID: env.sprinklerType.ID,
					BrandID:       env.brand.ID,
					Parameters:    catalog.ParamMap{"size": "63"},
					ItemKind:      inventory.ReturnItemKindSpare,
					Quantity:      1,
					PieceLength:   decp("6"),
				},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidReturn)
	})

	t.Run("rejects unknown dispatch reference", func(t *testing.T) {
		ghost := uuid.New()
		_, err := env.returns.Return(ctx, appinv.ReturnRequest{
			CustomerName: env.customer.Name,
			DispatchID:   &ghost,
			ReturnDate:   productionDate,
			Items: []appinv.ReturnItemRequest{
				{
					ProductTypeID: env.hdpeType.ID,
					BrandID:       env.brand.ID,
					Parameters:    catalog.ParamMap{"size": "32"},
					ItemKind:      inventory.ReturnItemKindFullRoll,
					Quantity:      1,
					RollLengths:   []decimal.Decimal{dec("100")},
				},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects unknown product type reference", func(t *testing.T) {
		_, err := env.returns.Return(ctx, appinv.ReturnRequest{
			CustomerName: env.customer.Name,
			ReturnDate:   productionDate,
			Items: []appinv.ReturnItemRequest{
				{
					ProductTypeID: uuid.New(),
					BrandID:       env.brand.ID,
					ItemKind:      inventory.ReturnItemKindFullRoll,
					Quantity:      1,
					RollLengths:   []decimal.Decimal{dec("100")},
				},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrNotFound)
	})
}
