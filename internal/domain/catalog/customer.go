package catalog

import (
	"github.com/pipemill/backend/internal/domain/shared"
)

// Customer is the dispatch/return counterparty. Customer management is
// handled outside the inventory engine; only the reference shape lives here.
type Customer struct {
	shared.BaseEntity
	Name  string `gorm:"type:varchar(200);not null"`
	Phone string `gorm:"type:varchar(30)"`
	City  string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a new customer
func NewCustomer(name string) (*Customer, error) {
	if name == "" {
		return nil, shared.NewDomainError("DUPLICATE_CUSTOMER", "Customer name cannot be empty")
	}
	return &Customer{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
	}, nil
}
