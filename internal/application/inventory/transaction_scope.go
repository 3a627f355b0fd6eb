package inventory

import (
	"context"

	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a
// transaction. All repositories returned share the same underlying database
// transaction.
//
// Aggregate boundary notes:
//   - StockRepo owns the InventoryStock aggregate; its derived quantities
//     are recomputed through the Deriver, never adjusted in place.
//   - HdpePieceRepo and SparePieceRepo store piece records whose lineage
//     columns are write-once; both enforce a mutable-column whitelist.
//   - TransactionRepo is append-only apart from the cut-detail backfill and
//     revert markers.
type TransactionalRepositories interface {
	// BatchRepo returns the batch repository scoped to the current transaction
	BatchRepo() inventory.BatchRepository
	// StockRepo returns the stock repository scoped to the current transaction
	StockRepo() inventory.InventoryStockRepository
	// HdpePieceRepo returns the cut piece repository scoped to the current transaction
	HdpePieceRepo() inventory.HdpeCutPieceRepository
	// SparePieceRepo returns the spare piece repository scoped to the current transaction
	SparePieceRepo() inventory.SprinklerSparePieceRepository
	// TransactionRepo returns the transaction log repository scoped to the current transaction
	TransactionRepo() inventory.InventoryTransactionRepository
	// DispatchRepo returns the dispatch repository scoped to the current transaction
	DispatchRepo() inventory.DispatchRepository
	// ReturnRepo returns the return repository scoped to the current transaction
	ReturnRepo() inventory.ReturnRepository
	// ScrapRepo returns the scrap repository scoped to the current transaction
	ScrapRepo() inventory.ScrapRepository
	// ProductTypeRepo returns the product type repository scoped to the current transaction
	ProductTypeRepo() catalog.ProductTypeRepository
	// BrandRepo returns the brand repository scoped to the current transaction
	BrandRepo() catalog.BrandRepository
	// VariantRepo returns the product variant repository scoped to the current transaction
	VariantRepo() catalog.ProductVariantRepository
	// CustomerRepo returns the customer repository scoped to the current transaction
	CustomerRepo() catalog.CustomerRepository
}
