package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Req struct {
	ID             int               `gorm:"primary_key" json:"id"`
	ReqRef         string            `gorm:"size:64;uniqueIndex;not null" json:"req_ref"`
	SiteId         int               `gorm:"index;not null" json:"site_id"`
	RequesterId    int               `gorm:"index;not null" json:"requester_id"`
	Date           time.Time         `json:"date"`
	DateRequired   *time.Time        `json:"date_required"`
	Priority       int               `gorm:"not null;default:2" json:"priority"`
	WorkflowStatus ReqWorkflowStatus `gorm:"not null;default:1" json:"workflow_status"`
	TransitStatus  ReqProgress       `gorm:"not null;default:0" json:"transit_status"`
	FulfilStatus   ReqProgress       `gorm:"not null;default:0" json:"fulfil_status"`
	Comments       string            `gorm:"type:text" json:"comments"`
	Items          []*ReqItem        `gorm:"foreignKey:ReqId" json:"items,omitempty"`
	Audit
}

func (Req) TableName() string { return "inv_req" }

func (r *Req) Row() Row {
	return r.auditRow(RowOf("id", r.ID, "site_id", r.SiteId))
}

type ReqItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ReqId            int             `gorm:"index;not null" json:"req_id"`
	ItemId           int             `gorm:"not null" json:"item_id"`
	ItemPackId       int             `gorm:"not null" json:"item_pack_id"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	QuantityReserved decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_reserved"`
	QuantityTransit  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_transit"`
	QuantityFulfil   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_fulfil"`
	// SiteId is the sourcing site chosen to supply this line.
	SiteId *int `gorm:"index" json:"site_id"`
	Audit
}

func (ReqItem) TableName() string { return "inv_req_item" }

func (i *ReqItem) Row() Row {
	return i.auditRow(RowOf("id", i.ID, "req_id", i.ReqId, "site_id", i.SiteId))
}

// Approver attaches an approval rule for PersonId to entity PeId (and the
// sites below it). A Matcher approver also completes the approval.
type Approver struct {
	ID       int    `gorm:"primary_key" json:"id"`
	PeId     int    `gorm:"uniqueIndex:idx_req_approver;not null" json:"pe_id"`
	PersonId int    `gorm:"uniqueIndex:idx_req_approver;not null" json:"person_id"`
	Title    string `gorm:"size:64" json:"title"`
	Matcher  bool   `gorm:"not null;default:false" json:"matcher"`
	Audit
}

func (Approver) TableName() string { return "inv_req_approver" }

func (a *Approver) Row() Row {
	return a.auditRow(RowOf("id", a.ID, "pe_id", a.PeId))
}

// ReqApproval records that an approver approved a requisition.
type ReqApproval struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ReqId     int       `gorm:"uniqueIndex:idx_req_approval;not null" json:"req_id"`
	PersonId  int       `gorm:"uniqueIndex:idx_req_approval;not null" json:"person_id"`
	Title     string    `gorm:"size:64" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReqApproval) TableName() string { return "inv_req_approver_req" }

// OrderItem is a purchase-order line raised against a requisition.
type OrderItem struct {
	ID          int    `gorm:"primary_key" json:"id"`
	ReqId       int    `gorm:"index:idx_order_item_match;not null" json:"req_id"`
	ItemId      int    `gorm:"index:idx_order_item_match;not null" json:"item_id"`
	PurchaseRef string `gorm:"size:64;index:idx_order_item_match" json:"purchase_ref"`
	RecvId      *int   `gorm:"index" json:"recv_id"`
	Audit
}

func (OrderItem) TableName() string { return "inv_order_item" }

func (o *OrderItem) Row() Row {
	return o.auditRow(RowOf("id", o.ID, "req_id", o.ReqId))
}
