package inventory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	appinv "github.com/pipemill/backend/internal/application/inventory"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchFullRolls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 5, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	invoice := "INV-2026-117"
	resp, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:    env.customer.ID,
		BillToID:      &env.customer.ID,
		InvoiceNumber: &invoice,
		DispatchDate:  productionDate,
		Items: []appinv.DispatchItemRequest{
			{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 2, RatePerUnit: decp("12.5")},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	assert.Equal(t, "DISP-2026-0001", resp.DispatchNo)
	assert.True(t, strings.HasPrefix(resp.Handle, "dispatch_"))
	require.Len(t, resp.TransactionIDs, 1)

	stock = env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)
	assert.Equal(t, 3, stock.Quantity)

	d, err := env.query.GetDispatch(ctx, resp.DispatchID)
	require.NoError(t, err)
	assert.Equal(t, env.customer.ID, d.CustomerID)
	require.NotNil(t, d.BillToID)
	assert.Equal(t, env.customer.ID, *d.BillToID)
	require.NotNil(t, d.InvoiceNumber)
	assert.Equal(t, invoice, *d.InvoiceNumber)
	require.Len(t, d.Items, 1)
	item := d.Items[0]
	assert.Equal(t, 2, item.Quantity)
	require.NotNil(t, item.TotalLength)
	assert.True(t, item.TotalLength.Equal(dec("200")))
	require.NotNil(t, item.Amount)
	assert.True(t, item.Amount.Equal(dec("2500")), "amount is rate times total length")

	txn := env.getTransaction(t, resp.TransactionIDs[0])
	assert.Equal(t, inventory.TransactionTypeDispatch, txn.TransactionType)
	require.NotNil(t, txn.DispatchID)
	assert.Equal(t, resp.DispatchID, *txn.DispatchID)

	env.verifyDerivation(t, prod.BatchID)
}

func TestDispatchNumberSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 5, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	for i, want := range []string{"DISP-2026-0001", "DISP-2026-0002", "DISP-2026-0003"} {
		resp, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 1},
			},
			CreatedBy: env.operator,
		})
		require.NoError(t, err, "dispatch %d", i)
		assert.Equal(t, want, resp.DispatchNo)
	}
}

func TestDispatchCutPieces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 2, "100")
	rolls := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)
	cut, err := env.transform.CutRoll(ctx, appinv.CutRollRequest{
		SourceStockID: rolls.ID,
		PieceLengths:  []decimal.Decimal{dec("30"), dec("40"), dec("30")},
		CreatedBy:     env.operator,
	})
	require.NoError(t, err)

	resp, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   env.customer.ID,
		DispatchDate: productionDate,
		Items: []appinv.DispatchItemRequest{
			{
				StockID:  cut.TargetStockID,
				ItemType: inventory.DispatchItemTypeCutPiece,
				PieceIDs: cut.PieceIDs[:2],
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	target := env.stockByType(t, prod.BatchID, inventory.StockTypeCutRoll)
	assert.Equal(t, 1, target.Quantity)

	d, err := env.query.GetDispatch(ctx, resp.DispatchID)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 2, d.Items[0].Quantity)
	require.NotNil(t, d.Items[0].TotalLength)
	assert.True(t, d.Items[0].TotalLength.Equal(dec("70")))
	assert.ElementsMatch(t, []uuid.UUID(d.Items[0].PieceIDs), cut.PieceIDs[:2])

	env.verifyDerivation(t, prod.BatchID)
}

func TestDispatchCutRollByCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 1, "100")
	rolls := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)
	cut, err := env.transform.CutRoll(ctx, appinv.CutRollRequest{
		SourceStockID: rolls.ID,
		PieceLengths:  []decimal.Decimal{dec("30"), dec("40"), dec("30")},
		CreatedBy:     env.operator,
	})
	require.NoError(t, err)
	require.Len(t, cut.PieceIDs, 3)

	resp, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   env.customer.ID,
		DispatchDate: productionDate,
		Items: []appinv.DispatchItemRequest{
			{StockID: cut.TargetStockID, ItemType: inventory.DispatchItemTypeCutRoll, Quantity: 2},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	// The two oldest pieces (30m and 40m) ship; the last one stays
	d, err := env.query.GetDispatch(ctx, resp.DispatchID)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	item := d.Items[0]
	assert.Equal(t, inventory.DispatchItemTypeCutRoll, item.ItemType)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, []uuid.UUID(item.PieceIDs), cut.PieceIDs[:2])
	require.NotNil(t, item.TotalLength)
	assert.True(t, item.TotalLength.Equal(dec("70")))

	target := env.stockByType(t, prod.BatchID, inventory.StockTypeCutRoll)
	assert.Equal(t, 1, target.Quantity)
	left := env.cutPieces(t, target.ID)
	require.Len(t, left, 1)
	assert.Equal(t, cut.PieceIDs[2], left[0].ID)

	_, err = env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   env.customer.ID,
		DispatchDate: productionDate,
		Items: []appinv.DispatchItemRequest{
			{StockID: cut.TargetStockID, ItemType: inventory.DispatchItemTypeCutRoll, Quantity: 5},
		},
		CreatedBy: env.operator,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientPieces)

	env.verifyDerivation(t, prod.BatchID)
}

func TestDispatchSparePiecesSplitsGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceBundles(t, 4, 5, "6")
	bundles := env.stockByType(t, prod.BatchID, inventory.StockTypeBundle)
	split, err := env.transform.SplitBundle(ctx, appinv.SplitBundleRequest{
		SourceStockID: bundles.ID, PiecesToSplit: []int{5}, CreatedBy: env.operator,
	})
	require.NoError(t, err)
	require.Len(t, split.PieceGroupIDs, 1)
	groupID := split.PieceGroupIDs[0]

	// Repeating the group id draws that many physical pieces from it
	resp, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   env.customer.ID,
		DispatchDate: productionDate,
		Items: []appinv.DispatchItemRequest{
			{
				StockID:       split.TargetStockID,
				ItemType:      inventory.DispatchItemTypeSparePieces,
				SparePieceIDs: []uuid.UUID{groupID, groupID, groupID},
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	// The 5-piece group shrinks to 2; the spare stock still holds one group
	spare := env.stockByType(t, prod.BatchID, inventory.StockTypeSpare)
	assert.Equal(t, 1, spare.Quantity)
	groups := env.sparePieceGroups(t, spare.ID)
	require.Len(t, groups, 1)
	assert.Equal(t, groupID, groups[0].ID)
	assert.Equal(t, 2, groups[0].PieceCount)

	d, err := env.query.GetDispatch(ctx, resp.DispatchID)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 3, d.Items[0].Quantity)
	require.Len(t, d.Items[0].PieceIDs, 3)
	require.NotNil(t, d.Items[0].TotalLength)
	assert.True(t, d.Items[0].TotalLength.Equal(dec("18")))

	// Each shipped piece becomes a single-piece record carrying the source
	// group's lineage
	var shipped []inventory.SprinklerSparePiece
	err = env.scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		all, err := repos.SparePieceRepo().FindByCreatedTransaction(ctx, split.TransactionID)
		if err != nil {
			return err
		}
		for i := range all {
			if all[i].Status == inventory.PieceStatusDispatched {
				shipped = append(shipped, all[i])
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, shipped, 3)
	for _, s := range shipped {
		assert.Equal(t, 1, s.PieceCount)
		assert.Equal(t, split.TransactionID, s.CreatedByTransactionID)
		assert.Equal(t, split.TargetStockID, s.OriginalStockID)
		require.NotNil(t, s.DispatchID)
		assert.Equal(t, resp.DispatchID, *s.DispatchID)
	}

	env.verifyDerivation(t, prod.BatchID)
}

func TestDispatchExhaustsBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 2, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	_, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
		CustomerID:   env.customer.ID,
		DispatchDate: productionDate,
		Items: []appinv.DispatchItemRequest{
			{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 2},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	stock = env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)
	assert.Equal(t, 0, stock.Quantity)
	assert.True(t, stock.IsDeleted())
	assert.Equal(t, inventory.StockStatusSoldOut, stock.Status)

	batch := env.getBatch(t, prod.BatchID)
	assert.Equal(t, 0, batch.CurrentQuantity)
	assert.True(t, batch.IsDeleted())
}

func TestDispatchRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 3, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	t.Run("rejects item type that does not match the stock kind", func(t *testing.T) {
		_, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: stock.ID, ItemType: inventory.DispatchItemTypeBundle, Quantity: 1},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidDispatch)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		require.NotNil(t, de.ItemIndex)
		assert.Equal(t, 0, *de.ItemIndex)
	})

	t.Run("rejects over-dispatch", func(t *testing.T) {
		_, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 4},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrInsufficientPieces)
	})

	t.Run("rejects unknown customer reference", func(t *testing.T) {
		_, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   uuid.New(),
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 1},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects cut piece lines without piece IDs", func(t *testing.T) {
		cutProd := env.produceRolls(t, 1, "50")
		rolls := env.stockByType(t, cutProd.BatchID, inventory.StockTypeFullRoll)
		cut, err := env.transform.CutRoll(ctx, appinv.CutRollRequest{
			SourceStockID: rolls.ID,
			PieceLengths:  []decimal.Decimal{dec("50")},
			CreatedBy:     env.operator,
		})
		require.NoError(t, err)

		_, err = env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: cut.TargetStockID, ItemType: inventory.DispatchItemTypeCutPiece},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidDispatch)
	})

	t.Run("rejects spare lines without group ids", func(t *testing.T) {
		spareProd := env.produceBundles(t, 1, 5, "6")
		bundles := env.stockByType(t, spareProd.BatchID, inventory.StockTypeBundle)
		split, err := env.transform.SplitBundle(ctx, appinv.SplitBundleRequest{
			SourceStockID: bundles.ID, PiecesToSplit: []int{5}, CreatedBy: env.operator,
		})
		require.NoError(t, err)

		_, err = env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: split.TargetStockID, ItemType: inventory.DispatchItemTypeSparePieces, Quantity: 4},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidDispatch)
	})

	t.Run("rejects drawing more pieces than a group holds", func(t *testing.T) {
		spareProd := env.produceBundles(t, 1, 3, "6")
		bundles := env.stockByType(t, spareProd.BatchID, inventory.StockTypeBundle)
		split, err := env.transform.SplitBundle(ctx, appinv.SplitBundleRequest{
			SourceStockID: bundles.ID, PiecesToSplit: []int{3}, CreatedBy: env.operator,
		})
		require.NoError(t, err)
		groupID := split.PieceGroupIDs[0]

		ids := []uuid.UUID{groupID, groupID, groupID, groupID}
		_, err = env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: split.TargetStockID, ItemType: inventory.DispatchItemTypeSparePieces, SparePieceIDs: ids},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrInsufficientPieces)
	})

	t.Run("failed line rolls the whole dispatch back", func(t *testing.T) {
		before := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll).Quantity
		_, err := env.dispatch.Dispatch(ctx, appinv.DispatchRequest{
			CustomerID:   env.customer.ID,
			DispatchDate: productionDate,
			Items: []appinv.DispatchItemRequest{
				{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 1},
				{StockID: stock.ID, ItemType: inventory.DispatchItemTypeFullRoll, Quantity: 99},
			},
			CreatedBy: env.operator,
		})
		require.Error(t, err)
		assert.Equal(t, before, env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll).Quantity)
	})
}
