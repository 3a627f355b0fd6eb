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

func TestScrapFullRolls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 5, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	resp, err := env.scrap.Scrap(ctx, appinv.ScrapRequest{
		ScrapDate: productionDate,
		Reason:    "kinked during handling",
		Items: []appinv.ScrapItemRequest{
			{StockID: stock.ID, ItemKind: inventory.ScrapItemKindFullRoll, Quantity: 2},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)
	assert.Equal(t, "SCR-2026-001", resp.ScrapNo)
	assert.True(t, strings.HasPrefix(resp.Handle, "scrap_"))

	stock = env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)
	assert.Equal(t, 3, stock.Quantity)

	batch := env.getBatch(t, prod.BatchID)
	assert.Equal(t, 3, batch.CurrentQuantity)
	env.verifyDerivation(t, prod.BatchID)
}

func TestScrapCutPieces(t *testing.T) {
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

	resp, err := env.scrap.Scrap(ctx, appinv.ScrapRequest{
		ScrapDate: productionDate,
		Reason:    "surface cracks",
		Items: []appinv.ScrapItemRequest{
			{
				StockID:  cut.TargetStockID,
				ItemKind: inventory.ScrapItemKindCutPiece,
				PieceIDs: cut.PieceIDs[:2],
			},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	target := env.stockByType(t, prod.BatchID, inventory.StockTypeCutRoll)
	assert.Equal(t, 1, target.Quantity)

	scrap, err := env.query.GetScrap(ctx, resp.ScrapID)
	require.NoError(t, err)
	require.Len(t, scrap.Items, 1)
	item := scrap.Items[0]
	assert.Equal(t, 2, item.Quantity)
	require.Len(t, item.Pieces, 2)
	require.NotNil(t, item.TotalLength)
	assert.True(t, item.TotalLength.Equal(dec("70")))

	env.verifyDerivation(t, prod.BatchID)
}

func TestScrapSparePiecesSplitsGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceBundles(t, 4, 5, "6")
	bundles := env.stockByType(t, prod.BatchID, inventory.StockTypeBundle)
	split, err := env.transform.SplitBundle(ctx, appinv.SplitBundleRequest{
		SourceStockID: bundles.ID, PiecesToSplit: []int{5}, CreatedBy: env.operator,
	})
	require.NoError(t, err)

	resp, err := env.scrap.Scrap(ctx, appinv.ScrapRequest{
		ScrapDate: productionDate,
		Reason:    "crushed under pallet",
		Items: []appinv.ScrapItemRequest{
			{StockID: split.TargetStockID, ItemKind: inventory.ScrapItemKindSpare, Quantity: 3},
		},
		CreatedBy: env.operator,
	})
	require.NoError(t, err)

	// 5-piece group shrinks to 2; a 3-piece scrapped group records the loss
	spare := env.stockByType(t, prod.BatchID, inventory.StockTypeSpare)
	assert.Equal(t, 1, spare.Quantity)
	groups := env.sparePieceGroups(t, spare.ID)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].PieceCount)

	scrap, err := env.query.GetScrap(ctx, resp.ScrapID)
	require.NoError(t, err)
	require.Len(t, scrap.Items, 1)
	require.Len(t, scrap.Items[0].Pieces, 1)
	assert.Equal(t, 3, scrap.Items[0].Pieces[0].PieceCount)

	env.verifyDerivation(t, prod.BatchID)
}

func TestScrapRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prod := env.produceRolls(t, 3, "100")
	stock := env.stockByType(t, prod.BatchID, inventory.StockTypeFullRoll)

	t.Run("rejects mixed item kinds", func(t *testing.T) {
		_, err := env.scrap.Scrap(ctx, appinv.ScrapRequest{
			ScrapDate: productionDate,
			Reason:    "mixed",
			Items: []appinv.ScrapItemRequest{
				{StockID: stock.ID, ItemKind: inventory.ScrapItemKindFullRoll, Quantity: 1},
				{StockID: stock.ID, ItemKind: inventory.ScrapItemKindCutPiece, PieceIDs: []uuid.UUID{uuid.New()}},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrMixedScrapForbidden)
	})

	t.Run("rejects item kind that does not match the stock kind", func(t *testing.T) {
		_, err := env.scrap.Scrap(ctx, appinv.ScrapRequest{
			ScrapDate: productionDate,
			Reason:    "wrong kind",
			Items: []appinv.ScrapItemRequest{
				{StockID: stock.ID, ItemKind: inventory.ScrapItemKindBundle, Quantity: 1},
			},
			CreatedBy: env.operator,
		})
		requireDomainCode(t, err, shared.CodeInvalidScrap)
	})

	t.Run("rejects scrap without a reason", func(t *testing.T) {
		_, err := env.scrap.Scrap(ctx, appinv.ScrapRequest{
			ScrapDate: productionDate,
			Items: []appinv.ScrapItemRequest{
				{StockID: stock.ID, ItemKind: inventory.ScrapItemKindFullRoll, Quantity: 1},
			},
			CreatedBy: env.operator,
		})
		require.Error(t, err)
	})

	t.Run("rejects scrapping more spares than available", func(t *testing.T) {
		bundleProd := env.produceBundles(t, 2, 5, "6")
		bundles := env.stockByType(t, bundleProd.BatchID, inventory.StockTypeBundle)
		split, err := env.transform.SplitBundle(ctx, appinv.SplitBundleRequest{
			SourceStockID: bundles.ID, PiecesToSplit: []int{5}, CreatedBy: env.operator,
		})
		require.NoError(t, err)

		_, err = env.scrap.Scrap(ctx, appinv.ScrapRequest{
			ScrapDate: productionDate,
			Reason:    "too many",
			Items: []appinv.ScrapItemRequest{
				{StockID: split.TargetStockID, ItemKind: inventory.ScrapItemKindSpare, Quantity: 6},
			},
			CreatedBy: env.operator,
		})
		require.ErrorIs(t, err, shared.ErrInsufficientPieces)
	})
}
