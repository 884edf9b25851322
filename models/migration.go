package models

import (
	"log"

	"github.com/MerlinStacks/overseek-sub002/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Product{}, &ProductVariation{}, &InternalProduct{},
		&Supplier{}, &SupplierItem{},
		&BOM{}, &BOMItem{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
	)
}
