package model

import "time"

type DailyMark struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	MarkID    string    `gorm:"column:mark_id;size:64;not null;uniqueIndex"`
	SubjectID string    `gorm:"column:subject_id;size:64;not null;index:idx_daily_marks_subject_date,priority:1"`
	MarkDate  string    `gorm:"column:mark_date;size:10;not null;index:idx_daily_marks_subject_date,priority:2"`
	Status    string    `gorm:"column:status;size:16;not null"`
	MarkedBy  string    `gorm:"column:marked_by;size:64;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (DailyMark) TableName() string {
	return "daily_marks"
}
