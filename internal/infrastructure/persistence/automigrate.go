package persistence

import (
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the schema for all entities. Production
// deployments run the SQL migrations instead; this is for SQLite test
// databases and local scratch setups.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&catalog.ProductType{},
		&catalog.Brand{},
		&catalog.ProductVariant{},
		&catalog.Customer{},
		&inventory.Batch{},
		&inventory.InventoryStock{},
		&inventory.HdpeCutPiece{},
		&inventory.SprinklerSparePiece{},
		&inventory.InventoryTransaction{},
		&inventory.Dispatch{},
		&inventory.DispatchItem{},
		&inventory.Return{},
		&inventory.ReturnItem{},
		&inventory.ReturnRoll{},
		&inventory.ReturnBundle{},
		&inventory.Scrap{},
		&inventory.ScrapItem{},
		&inventory.ScrapPiece{},
	)
}
