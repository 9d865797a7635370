package models

import (
	"log"

	"gorm.io/gorm"
)

// AllModels lists every table of the schema in migration order.
func AllModels() []any {
	return []any{
		&Entity{}, &Affiliation{},
		&User{}, &Person{}, &RoleMembership{},
		&Organisation{}, &Site{}, &Warehouse{},
		&Item{}, &ItemPack{}, &KitItem{},
		&InvItem{}, &Minimum{}, &Adj{}, &AdjItem{}, &Kitting{},
		&StockCard{}, &StockLog{},
		&Req{}, &ReqItem{}, &Approver{}, &ReqApproval{}, &OrderItem{},
		&Send{}, &Recv{}, &TrackItem{},
		&Notification{}, &EmailOutbox{},
		&Location{},
		&HumanResource{}, &Course{}, &Training{},
	}
}

func MigrateTable(db *gorm.DB) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		log.Fatal(err)
	}
}
