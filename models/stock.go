package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockCard is the header of the movement ledger of one item at one site.
type StockCard struct {
	ID        int       `gorm:"primary_key" json:"id"`
	SiteId    int       `gorm:"uniqueIndex:idx_stock_card_site_item;not null" json:"site_id"`
	ItemId    int       `gorm:"uniqueIndex:idx_stock_card_site_item;not null" json:"item_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StockCard) TableName() string { return "inv_stock_card" }

// StockLog is one append-only ledger line. Balance is the stock (base units)
// at the site after the movement.
type StockLog struct {
	ID             int               `gorm:"primary_key" json:"id"`
	CardId         int               `gorm:"index;not null" json:"card_id"`
	Date           time.Time         `gorm:"not null" json:"date"`
	Kind           StockMovementKind `gorm:"size:16;not null" json:"kind"`
	SiteId         int               `gorm:"not null" json:"site_id"`
	Counterparty   string            `gorm:"size:128" json:"counterparty"`
	QuantityDelta  decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"quantity_delta"`
	Balance        decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"balance"`
	ReferenceTable string            `gorm:"size:32" json:"reference_table"`
	ReferenceId    int               `json:"reference_id"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (StockLog) TableName() string { return "inv_stock_log" }
