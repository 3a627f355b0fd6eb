package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductTypeRepository defines the interface for product type persistence
type ProductTypeRepository interface {
	// FindByID finds a product type by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*ProductType, error)
	// Save creates or updates a product type
	Save(ctx context.Context, pt *ProductType) error
}

// BrandRepository defines the interface for brand persistence
type BrandRepository interface {
	// FindByID finds a brand by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Brand, error)
	// Save creates or updates a brand
	Save(ctx context.Context, b *Brand) error
}

// ProductVariantRepository defines the interface for variant persistence
type ProductVariantRepository interface {
	// FindByID finds a variant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*ProductVariant, error)
	// FindByTypeAndBrand finds all variants for a (product type, brand) pair
	FindByTypeAndBrand(ctx context.Context, productTypeID, brandID uuid.UUID) ([]ProductVariant, error)
	// FindMatching finds the variant whose parameters equal the given set
	// under normalization, or shared.ErrNotFound
	FindMatching(ctx context.Context, productTypeID, brandID uuid.UUID, params ParamMap) (*ProductVariant, error)
	// Save creates or updates a variant
	Save(ctx context.Context, v *ProductVariant) error
}

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	// FindByID finds a customer by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// Save creates or updates a customer
	Save(ctx context.Context, c *Customer) error
}
