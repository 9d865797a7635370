package models

import "time"

// Location levels of the administrative hierarchy.
var LocationLevels = []string{"L0", "L1", "L2", "L3", "L4", "L5"}

// LevelIndex returns the depth of an Lx level, or -1 for unlevelled features.
func LevelIndex(level *string) int {
	if level == nil {
		return -1
	}
	for i, l := range LocationLevels {
		if l == *level {
			return i
		}
	}
	return -1
}

type Location struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Level     *string   `gorm:"size:2;index" json:"level"`
	ParentId  *int      `gorm:"index" json:"parent"`
	Path      string    `gorm:"size:256;index" json:"path"`
	L0        *string   `gorm:"column:L0;size:255" json:"L0"`
	L1        *string   `gorm:"column:L1;size:255" json:"L1"`
	L2        *string   `gorm:"column:L2;size:255" json:"L2"`
	L3        *string   `gorm:"column:L3;size:255" json:"L3"`
	L4        *string   `gorm:"column:L4;size:255" json:"L4"`
	L5        *string   `gorm:"column:L5;size:255" json:"L5"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	Wkt       *string   `gorm:"type:longtext" json:"wkt"`
	Inherited bool      `gorm:"not null;default:false" json:"inherited"`
	LatMin    *float64  `json:"lat_min"`
	LatMax    *float64  `json:"lat_max"`
	LonMin    *float64  `json:"lon_min"`
	LonMax    *float64  `json:"lon_max"`
	Deleted   bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Location) TableName() string { return "gis_location" }

// LevelName returns the Lx column value for index i (0..5).
func (l *Location) LevelName(i int) *string {
	switch i {
	case 0:
		return l.L0
	case 1:
		return l.L1
	case 2:
		return l.L2
	case 3:
		return l.L3
	case 4:
		return l.L4
	case 5:
		return l.L5
	}
	return nil
}

func (l *Location) SetLevelName(i int, v *string) {
	switch i {
	case 0:
		l.L0 = v
	case 1:
		l.L1 = v
	case 2:
		l.L2 = v
	case 3:
		l.L3 = v
	case 4:
		l.L4 = v
	case 5:
		l.L5 = v
	}
}
