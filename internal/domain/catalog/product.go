package catalog

import (
	"github.com/pipemill/backend/internal/domain/shared"
)

// ProductCategory identifies the product family. HDPE pipe is measured in
// rolls; sprinkler pipe in pieces. A batch never mixes families.
type ProductCategory string

const (
	CategoryHDPEPipe      ProductCategory = "HDPE_PIPE"
	CategorySprinklerPipe ProductCategory = "SPRINKLER_PIPE"
)

// String returns the string representation of ProductCategory
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid returns true if the category is a known product family
func (c ProductCategory) IsValid() bool {
	return c == CategoryHDPEPipe || c == CategorySprinklerPipe
}

// ProductType represents a kind of product (e.g. "HDPE Pipe", "Sprinkler Pipe")
type ProductType struct {
	shared.BaseEntity
	Name     string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	Category ProductCategory `gorm:"type:varchar(30);not null"`
}

// TableName returns the table name for GORM
func (ProductType) TableName() string {
	return "product_types"
}

// NewProductType creates a new product type
func NewProductType(name string, category ProductCategory) (*ProductType, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_TYPE", "Product type name cannot be empty")
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_PRODUCT_TYPE", "Unknown product category")
	}
	return &ProductType{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Category:   category,
	}, nil
}

// Brand represents a product brand
type Brand struct {
	shared.BaseEntity
	Name string `gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (Brand) TableName() string {
	return "brands"
}

// NewBrand creates a new brand
func NewBrand(name string) (*Brand, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_BRAND", "Brand name cannot be empty")
	}
	return &Brand{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
	}, nil
}
