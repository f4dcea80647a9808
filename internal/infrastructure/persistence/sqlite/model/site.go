package model

import "time"

type Site struct {
	SiteID    string    `gorm:"column:site_id;size:64;primaryKey"`
	Name      string    `gorm:"column:name;size:255;not null"`
	Timezone  string    `gorm:"column:timezone;size:64;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Site) TableName() string {
	return "sites"
}

type RosterMember struct {
	SiteID    string    `gorm:"column:site_id;size:64;primaryKey"`
	SubjectID string    `gorm:"column:subject_id;size:64;primaryKey;index"`
	Name      string    `gorm:"column:name;size:255;not null"`
	Role      string    `gorm:"column:role;size:64;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (RosterMember) TableName() string {
	return "roster_members"
}
