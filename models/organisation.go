package models

import "github.com/shopspring/decimal"

type Organisation struct {
	ID               int    `gorm:"primary_key" json:"id"`
	PeId             int    `gorm:"index" json:"pe_id"`
	Name             string `gorm:"size:128;not null" json:"name"`
	Acronym          string `gorm:"size:32" json:"acronym"`
	OrganisationType string `gorm:"size:64" json:"organisation_type"`
	// RootOrganisation is the id of the top of the branch hierarchy (itself for roots).
	RootOrganisation int `gorm:"index" json:"root_organisation"`
	Audit
}

func (Organisation) TableName() string { return "org_organisation" }

func (o *Organisation) Row() Row {
	return o.auditRow(RowOf("id", o.ID, "pe_id", o.PeId, "organisation_type", o.OrganisationType))
}

// Site merges the org_site super-entity with its instance. PeId is the
// instance entity (warehouse, office or facility).
type Site struct {
	ID             int     `gorm:"primary_key" json:"id"`
	InstanceType   string  `gorm:"size:32;not null" json:"instance_type"`
	PeId           int     `gorm:"index" json:"pe_id"`
	OrganisationId int     `gorm:"index" json:"organisation_id"`
	Name           string  `gorm:"size:128;not null" json:"name"`
	Code           string  `gorm:"size:32" json:"code"`
	Phone          *string `gorm:"size:32" json:"phone"`
	LocationId     *int    `gorm:"index" json:"location_id"`
	Audit
}

func (Site) TableName() string { return "org_site" }

func (s *Site) Row() Row {
	return s.auditRow(RowOf("id", s.ID, "instance_type", s.InstanceType, "pe_id", s.PeId, "organisation_id", s.OrganisationId, "location_id", s.LocationId))
}

const (
	SiteTypeWarehouse = "inv_warehouse"
	SiteTypeOffice    = "org_office"
	SiteTypeFacility  = "org_facility"
)

// Warehouse holds the storage capacity (m3) of a warehouse site.
type Warehouse struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SiteId       int             `gorm:"uniqueIndex;not null" json:"site_id"`
	Capacity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"capacity"`
	FreeCapacity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"free_capacity"`
	Audit
}

func (Warehouse) TableName() string { return "inv_warehouse" }

func (w *Warehouse) Row() Row {
	return w.auditRow(RowOf("id", w.ID, "site_id", w.SiteId))
}
