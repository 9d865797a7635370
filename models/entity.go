package models

import "time"

// Entity is a node of the ownership graph (pr_pentity). Organisations, sites,
// persons and realms all own one. Realm entities carry a unique Name.
type Entity struct {
	ID            int        `gorm:"primary_key" json:"id"`
	Kind          EntityKind `gorm:"size:32;index;not null" json:"kind"`
	Name          *string    `gorm:"size:128;uniqueIndex" json:"name"`
	InstanceTable string     `gorm:"size:64" json:"instance_table"`
	InstanceId    int        `gorm:"index" json:"instance_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Entity) TableName() string { return "pr_pentity" }

func (e *Entity) IsRealm() bool {
	return e != nil && e.Kind == EntityKindRealm
}

// Affiliation is a directed parent -> child edge of the ownership graph.
type Affiliation struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ParentId  int       `gorm:"not null;uniqueIndex:idx_affiliation_edge" json:"parent_id"`
	ChildId   int       `gorm:"not null;index;uniqueIndex:idx_affiliation_edge" json:"child_id"`
	Role      string    `gorm:"size:64;not null;uniqueIndex:idx_affiliation_edge" json:"role"`
	RoleType  int       `gorm:"not null;default:1" json:"role_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Affiliation) TableName() string { return "pr_affiliation" }
