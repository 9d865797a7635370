package models

import "time"

type User struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName      string    `gorm:"size:128" json:"first_name"`
	LastName       string    `gorm:"size:128" json:"last_name"`
	Language       string    `gorm:"size:16" json:"language"`
	OrganisationId *int      `gorm:"index" json:"organisation_id"`
	PeId           int       `gorm:"index" json:"pe_id"`
	Deleted        bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "auth_user" }

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Person struct {
	ID        int    `gorm:"primary_key" json:"id"`
	PeId      int    `gorm:"index" json:"pe_id"`
	UserId    *int   `gorm:"index" json:"user_id"`
	FirstName string `gorm:"size:128" json:"first_name"`
	LastName  string `gorm:"size:128" json:"last_name"`
	Audit
}

func (Person) TableName() string { return "pr_person" }

// RoleMembership grants Role to UserId. A nil PeId makes the grant global,
// otherwise it applies to PeId and every entity descending from it.
type RoleMembership struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    int       `gorm:"not null;index" json:"user_id"`
	Role      string    `gorm:"size:64;not null;index" json:"role"`
	PeId      *int      `gorm:"index" json:"pe_id"`
	Deleted   bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RoleMembership) TableName() string { return "auth_membership" }
