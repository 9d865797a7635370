package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvItem is a stock line of one item/pack at a site.
type InvItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	SiteId     int             `gorm:"index:idx_inv_item_site_item;not null" json:"site_id"`
	ItemId     int             `gorm:"index:idx_inv_item_site_item;not null" json:"item_id"`
	ItemPackId int             `gorm:"not null" json:"item_pack_id"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	Bin        string          `gorm:"size:64" json:"bin"`
	ExpiryDate *time.Time      `json:"expiry_date"`
	Audit
}

func (InvItem) TableName() string { return "inv_inv_item" }

func (i *InvItem) Row() Row {
	return i.auditRow(RowOf("id", i.ID, "site_id", i.SiteId))
}

// Minimum is the stock level (base units) below which a site is alerted.
type Minimum struct {
	ID       int             `gorm:"primary_key" json:"id"`
	SiteId   int             `gorm:"uniqueIndex:idx_minimum_site_item;not null" json:"site_id"`
	ItemId   int             `gorm:"uniqueIndex:idx_minimum_site_item;not null" json:"item_id"`
	Quantity decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Audit
}

func (Minimum) TableName() string { return "inv_minimum" }

func (m *Minimum) Row() Row {
	return m.auditRow(RowOf("id", m.ID, "site_id", m.SiteId))
}

type Adj struct {
	ID         int        `gorm:"primary_key" json:"id"`
	SiteId     int        `gorm:"index;not null" json:"site_id"`
	AdjusterId *int       `json:"adjuster_id"`
	Status     AdjStatus  `gorm:"not null;default:0" json:"status"`
	Date       time.Time  `json:"date"`
	Comments   string     `gorm:"type:text" json:"comments"`
	Items      []*AdjItem `gorm:"foreignKey:AdjId" json:"items"`
	Audit
}

func (Adj) TableName() string { return "inv_adj" }

func (a *Adj) Row() Row {
	return a.auditRow(RowOf("id", a.ID, "site_id", a.SiteId))
}

type AdjItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	AdjId       int             `gorm:"index;not null" json:"adj_id"`
	InvItemId   *int            `json:"inv_item_id"`
	ItemId      int             `gorm:"not null" json:"item_id"`
	ItemPackId  int             `gorm:"not null" json:"item_pack_id"`
	OldQuantity decimal.Decimal `gorm:"type:decimal(20,4)" json:"old_quantity"`
	NewQuantity decimal.Decimal `gorm:"type:decimal(20,4)" json:"new_quantity"`
}

func (AdjItem) TableName() string { return "inv_adj_item" }

// Kitting records the assembly of Quantity kits at a site.
type Kitting struct {
	ID         int             `gorm:"primary_key" json:"id"`
	SiteId     int             `gorm:"index;not null" json:"site_id"`
	ItemId     int             `gorm:"not null" json:"item_id"`
	ItemPackId int             `gorm:"not null" json:"item_pack_id"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Date       time.Time       `json:"date"`
	Audit
}

func (Kitting) TableName() string { return "inv_kitting" }

func (k *Kitting) Row() Row {
	return k.auditRow(RowOf("id", k.ID, "site_id", k.SiteId))
}
