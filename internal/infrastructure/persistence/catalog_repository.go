package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormProductTypeRepository implements ProductTypeRepository using GORM
type GormProductTypeRepository struct {
	db *gorm.DB
}

// NewGormProductTypeRepository creates a new GormProductTypeRepository
func NewGormProductTypeRepository(db *gorm.DB) *GormProductTypeRepository {
	return &GormProductTypeRepository{db: db}
}

// FindByID finds a product type by its ID
func (r *GormProductTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.ProductType, error) {
	var pt catalog.ProductType
	if err := r.db.WithContext(ctx).First(&pt, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &pt, nil
}

// Save creates or updates a product type
func (r *GormProductTypeRepository) Save(ctx context.Context, pt *catalog.ProductType) error {
	return r.db.WithContext(ctx).Save(pt).Error
}

// GormBrandRepository implements BrandRepository using GORM
type GormBrandRepository struct {
	db *gorm.DB
}

// NewGormBrandRepository creates a new GormBrandRepository
func NewGormBrandRepository(db *gorm.DB) *GormBrandRepository {
	return &GormBrandRepository{db: db}
}

// FindByID finds a brand by its ID
func (r *GormBrandRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Brand, error) {
	var b catalog.Brand
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &b, nil
}

// Save creates or updates a brand
func (r *GormBrandRepository) Save(ctx context.Context, b *catalog.Brand) error {
	return r.db.WithContext(ctx).Save(b).Error
}

// GormProductVariantRepository implements ProductVariantRepository using GORM
type GormProductVariantRepository struct {
	db *gorm.DB
}

// NewGormProductVariantRepository creates a new GormProductVariantRepository
func NewGormProductVariantRepository(db *gorm.DB) *GormProductVariantRepository {
	return &GormProductVariantRepository{db: db}
}

// FindByID finds a variant by its ID
func (r *GormProductVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	var v catalog.ProductVariant
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &v, nil
}

// FindByTypeAndBrand finds all variants for a (product type, brand) pair
func (r *GormProductVariantRepository) FindByTypeAndBrand(ctx context.Context, productTypeID, brandID uuid.UUID) ([]catalog.ProductVariant, error) {
	var variants []catalog.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("product_type_id = ? AND brand_id = ?", productTypeID, brandID).
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// FindMatching finds the variant whose parameters equal the given set under
// normalization. Parameter JSON is not queryable portably, so candidates
// are compared in memory; variant counts per type/brand stay small.
func (r *GormProductVariantRepository) FindMatching(ctx context.Context, productTypeID, brandID uuid.UUID, params catalog.ParamMap) (*catalog.ProductVariant, error) {
	variants, err := r.FindByTypeAndBrand(ctx, productTypeID, brandID)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		if variants[i].Matches(params) {
			return &variants[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

// Save creates or updates a variant
func (r *GormProductVariantRepository) Save(ctx context.Context, v *catalog.ProductVariant) error {
	return r.db.WithContext(ctx).Save(v).Error
}

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Customer, error) {
	var c catalog.Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &c, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, c *catalog.Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}
