package persistence

import (
	"context"

	appinv "github.com/pipemill/backend/internal/application/inventory"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within
// a transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// BatchRepo returns the batch repository scoped to the current transaction
func (r *gormTransactionalRepositories) BatchRepo() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

// StockRepo returns the stock repository scoped to the current transaction
func (r *gormTransactionalRepositories) StockRepo() inventory.InventoryStockRepository {
	return NewGormInventoryStockRepository(r.tx)
}

// HdpePieceRepo returns the cut piece repository scoped to the current transaction
func (r *gormTransactionalRepositories) HdpePieceRepo() inventory.HdpeCutPieceRepository {
	return NewGormHdpeCutPieceRepository(r.tx)
}

// SparePieceRepo returns the spare piece repository scoped to the current transaction
func (r *gormTransactionalRepositories) SparePieceRepo() inventory.SprinklerSparePieceRepository {
	return NewGormSprinklerSparePieceRepository(r.tx)
}

// TransactionRepo returns the transaction log repository scoped to the current transaction
func (r *gormTransactionalRepositories) TransactionRepo() inventory.InventoryTransactionRepository {
	return NewGormInventoryTransactionRepository(r.tx)
}

// DispatchRepo returns the dispatch repository scoped to the current transaction
func (r *gormTransactionalRepositories) DispatchRepo() inventory.DispatchRepository {
	return NewGormDispatchRepository(r.tx)
}

// ReturnRepo returns the return repository scoped to the current transaction
func (r *gormTransactionalRepositories) ReturnRepo() inventory.ReturnRepository {
	return NewGormReturnRepository(r.tx)
}

// ScrapRepo returns the scrap repository scoped to the current transaction
func (r *gormTransactionalRepositories) ScrapRepo() inventory.ScrapRepository {
	return NewGormScrapRepository(r.tx)
}

// ProductTypeRepo returns the product type repository scoped to the current transaction
func (r *gormTransactionalRepositories) ProductTypeRepo() catalog.ProductTypeRepository {
	return NewGormProductTypeRepository(r.tx)
}

// BrandRepo returns the brand repository scoped to the current transaction
func (r *gormTransactionalRepositories) BrandRepo() catalog.BrandRepository {
	return NewGormBrandRepository(r.tx)
}

// VariantRepo returns the product variant repository scoped to the current transaction
func (r *gormTransactionalRepositories) VariantRepo() catalog.ProductVariantRepository {
	return NewGormProductVariantRepository(r.tx)
}

// CustomerRepo returns the customer repository scoped to the current transaction
func (r *gormTransactionalRepositories) CustomerRepo() catalog.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
