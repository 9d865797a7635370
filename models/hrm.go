package models

type HumanResource struct {
	ID             int  `gorm:"primary_key" json:"id"`
	PersonId       int  `gorm:"index;not null" json:"person_id"`
	OrganisationId int  `gorm:"index" json:"organisation_id"`
	SiteId         *int `gorm:"index" json:"site_id"`
	Audit
}

func (HumanResource) TableName() string { return "hrm_human_resource" }

func (h *HumanResource) Row() Row {
	return h.auditRow(RowOf("id", h.ID, "organisation_id", h.OrganisationId, "site_id", h.SiteId))
}

type Course struct {
	ID             int    `gorm:"primary_key" json:"id"`
	Name           string `gorm:"size:128;not null" json:"name"`
	OrganisationId *int   `gorm:"index" json:"organisation_id"`
	Audit
}

func (Course) TableName() string { return "hrm_course" }

type Training struct {
	ID       int `gorm:"primary_key" json:"id"`
	PersonId int `gorm:"index;not null" json:"person_id"`
	CourseId int `gorm:"index;not null" json:"course_id"`
	Audit
}

func (Training) TableName() string { return "hrm_training" }

func (t *Training) Row() Row {
	return t.auditRow(RowOf("id", t.ID, "person_id", t.PersonId, "course_id", t.CourseId))
}
