package model

// All lists every table migrated by init-db.
func All() []any {
	return []any{
		&Site{},
		&RosterMember{},
		&AttendanceEvent{},
		&LocalEvent{},
		&DailyMark{},
		&CacheEntry{},
	}
}
