package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Send struct {
	ID       int            `gorm:"primary_key" json:"id"`
	SendRef  string         `gorm:"size:64;uniqueIndex;not null" json:"send_ref"`
	SiteId   int            `gorm:"index;not null" json:"site_id"`
	ToSiteId *int           `gorm:"index" json:"to_site_id"`
	Status   ShipmentStatus `gorm:"not null;default:0" json:"status"`
	Date     time.Time      `json:"date"`
	Comments string         `gorm:"type:text" json:"comments"`
	Audit
}

func (Send) TableName() string { return "inv_send" }

func (s *Send) Row() Row {
	return s.auditRow(RowOf("id", s.ID, "site_id", s.SiteId))
}

type Recv struct {
	ID          int            `gorm:"primary_key" json:"id"`
	RecvRef     string         `gorm:"size:64;uniqueIndex;not null" json:"recv_ref"`
	SiteId      int            `gorm:"index;not null" json:"site_id"`
	FromSiteId  *int           `gorm:"index" json:"from_site_id"`
	SendId      *int           `gorm:"index" json:"send_id"`
	PurchaseRef string         `gorm:"size:64" json:"purchase_ref"`
	Status      ShipmentStatus `gorm:"not null;default:0" json:"status"`
	Date        time.Time      `json:"date"`
	Audit
}

func (Recv) TableName() string { return "inv_recv" }

func (r *Recv) Row() Row {
	return r.auditRow(RowOf("id", r.ID, "site_id", r.SiteId))
}

// TrackItem follows one line of goods through a send and the matching recv.
type TrackItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SendId        *int            `gorm:"index" json:"send_id"`
	RecvId        *int            `gorm:"index" json:"recv_id"`
	ReqItemId     *int            `gorm:"index" json:"req_item_id"`
	ItemId        int             `gorm:"not null" json:"item_id"`
	ItemPackId    int             `gorm:"not null" json:"item_pack_id"`
	SendInvItemId *int            `json:"send_inv_item_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	// RecvQuantity is nil until the line is counted at the destination.
	RecvQuantity *decimal.Decimal `gorm:"type:decimal(20,4)" json:"recv_quantity"`
	Status       TrackStatus      `gorm:"not null;default:1" json:"status"`
	Audit
}

func (TrackItem) TableName() string { return "inv_track_item" }

func (t *TrackItem) Row() Row {
	return t.auditRow(RowOf("id", t.ID, "send_id", t.SendId, "recv_id", t.RecvId))
}

// ReceivedQuantity is the counted quantity, defaulting to the sent quantity.
func (t *TrackItem) ReceivedQuantity() decimal.Decimal {
	if t.RecvQuantity != nil {
		return *t.RecvQuantity
	}
	return t.Quantity
}
