package attendance

import (
	"sort"
	"time"
)

type DayClass string

const (
	DayFull      DayClass = "full"
	DayPartial   DayClass = "partial"
	DayAnomalous DayClass = "anomalous"
	DayEmpty     DayClass = "empty"
)

type DayClassification struct {
	Date        Date
	HasCheckIn  bool
	HasCheckOut bool
	Class       DayClass
}

// GroupByDate buckets events by calendar day in loc. Each bucket is ordered by
// CapturedAt ascending.
func GroupByDate(events []AttendanceEvent, loc *time.Location) map[Date][]AttendanceEvent {
	groups := make(map[Date][]AttendanceEvent)
	for _, event := range events {
		day := event.Day(loc)
		groups[day] = append(groups[day], event)
	}
	for day := range groups {
		bucket := groups[day]
		sort.SliceStable(bucket, func(i, j int) bool {
			if !bucket[i].CapturedAt.Equal(bucket[j].CapturedAt) {
				return bucket[i].CapturedAt.Before(bucket[j].CapturedAt)
			}
			return bucket[i].ID < bucket[j].ID
		})
	}
	return groups
}

// ClassifyDay classifies date from the set of event kinds present on it.
// A check-out with no check-in is anomalous and is reported, not hidden.
func ClassifyDay(events []AttendanceEvent, date Date, loc *time.Location) DayClassification {
	out := DayClassification{Date: date}
	for _, event := range events {
		if event.Day(loc) != date {
			continue
		}
		switch event.Kind {
		case KindCheckIn:
			out.HasCheckIn = true
		case KindCheckOut:
			out.HasCheckOut = true
		}
	}
	out.Class = classify(out.HasCheckIn, out.HasCheckOut)
	return out
}

// ClassifyRange classifies every day from..to inclusive.
func ClassifyRange(events []AttendanceEvent, from Date, to Date, loc *time.Location) []DayClassification {
	if to.Before(from) {
		return nil
	}

	type kinds struct{ in, out bool }
	seen := make(map[Date]kinds)
	for _, event := range events {
		day := event.Day(loc)
		if day.Before(from) || day.After(to) {
			continue
		}
		k := seen[day]
		switch event.Kind {
		case KindCheckIn:
			k.in = true
		case KindCheckOut:
			k.out = true
		}
		seen[day] = k
	}

	days := make([]DayClassification, 0, 31)
	for day := from; !day.After(to); day = day.AddDays(1) {
		k := seen[day]
		days = append(days, DayClassification{
			Date:        day,
			HasCheckIn:  k.in,
			HasCheckOut: k.out,
			Class:       classify(k.in, k.out),
		})
	}
	return days
}

func classify(hasIn, hasOut bool) DayClass {
	switch {
	case hasIn && hasOut:
		return DayFull
	case hasIn:
		return DayPartial
	case hasOut:
		return DayAnomalous
	default:
		return DayEmpty
	}
}
