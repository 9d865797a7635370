package models

import "github.com/shopspring/decimal"

type Item struct {
	ID        int    `gorm:"primary_key" json:"id"`
	Code      string `gorm:"size:64;index" json:"code"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Kit       bool   `gorm:"not null;default:false" json:"kit"`
	CatalogId *int   `gorm:"index" json:"catalog_id"`
}

func (Item) TableName() string { return "supply_item" }

// ItemPack is a packaging unit of an item. Quantity is the number of base
// units per pack, Volume the space (m3) one pack occupies.
type ItemPack struct {
	ID       int              `gorm:"primary_key" json:"id"`
	ItemId   int              `gorm:"index;not null" json:"item_id"`
	Name     string           `gorm:"size:64;not null" json:"name"`
	Quantity decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Volume   *decimal.Decimal `gorm:"type:decimal(20,6)" json:"volume"`
}

func (ItemPack) TableName() string { return "supply_item_pack" }

// BaseQuantity converts qty packs into base units.
func (p *ItemPack) BaseQuantity(qty decimal.Decimal) decimal.Decimal {
	if p == nil || p.Quantity.IsZero() {
		return qty
	}
	return qty.Mul(p.Quantity)
}

// KitItem is one component line of a kit definition.
type KitItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	KitId      int             `gorm:"index;not null" json:"kit_id"`
	ItemId     int             `gorm:"not null" json:"item_id"`
	ItemPackId int             `gorm:"not null" json:"item_pack_id"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
}

func (KitItem) TableName() string { return "supply_kit_item" }
