package model

import "time"

// EventColumns are the evidentiary columns shared by accepted events and local copies.
type EventColumns struct {
	SubjectID  string    `gorm:"column:subject_id;size:64;not null;index"`
	Kind       string    `gorm:"column:kind;size:16;not null"`
	CapturedAt time.Time `gorm:"column:captured_at;not null;index"`

	PhotoID          string    `gorm:"column:photo_id;size:64;not null"`
	PhotoContentType string    `gorm:"column:photo_content_type;size:64;not null"`
	PhotoData        []byte    `gorm:"column:photo_data;not null"`
	PhotoWidth       int       `gorm:"column:photo_width;not null;default:0"`
	PhotoHeight      int       `gorm:"column:photo_height;not null;default:0"`
	PhotoDigest      string    `gorm:"column:photo_digest;size:128;not null;default:''"`
	PhotoCapturedAt  time.Time `gorm:"column:photo_captured_at;not null"`

	HasLocation     bool       `gorm:"column:has_location;not null;default:false"`
	Latitude        float64    `gorm:"column:latitude;not null;default:0"`
	Longitude       float64    `gorm:"column:longitude;not null;default:0"`
	AccuracyMeters  float64    `gorm:"column:accuracy_meters;not null;default:0"`
	ResolvedAddress string     `gorm:"column:resolved_address;type:text"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
	FixedAt         *time.Time `gorm:"column:fixed_at"`
	LocationStale   bool       `gorm:"column:location_stale;not null;default:false"`
	LocationFlagged bool       `gorm:"column:location_flagged;not null;default:false"`
}

// AttendanceEvent is an event accepted by the store. Rows are insert-only.
type AttendanceEvent struct {
	EventID      string `gorm:"column:event_id;size:64;primaryKey"`
	EventColumns `gorm:"embedded"`
	SubmittedAt  time.Time `gorm:"column:submitted_at;not null"`
}

func (AttendanceEvent) TableName() string {
	return "attendance_events"
}

// LocalEvent is the client-side copy kept until the store acknowledges it.
type LocalEvent struct {
	EventID         string `gorm:"column:event_id;size:64;primaryKey"`
	EventColumns    `gorm:"embedded"`
	SubmissionState string     `gorm:"column:submission_state;size:16;not null;index"`
	Attempts        int        `gorm:"column:attempts;not null;default:0"`
	LastError       string     `gorm:"column:last_error;type:text"`
	SubmittedAt     *time.Time `gorm:"column:submitted_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null"`
}

func (LocalEvent) TableName() string {
	return "local_events"
}
