package attendance

import (
	"math"
	"sort"
	"time"
)

// DailyMark is a supervisor-entered status for one subject on one calendar day.
// Marks are append-only; a correction is a newer mark for the same day.
type DailyMark struct {
	ID        string
	SubjectID string
	Date      Date
	Status    Status
	MarkedBy  string
	CreatedAt time.Time
	Seq       uint64
}

// createdAfter is the creation order used to reconcile marks of the same day:
// CreatedAt, then store sequence, then ID. It is a total order so the winner
// never depends on how the caller ordered its slice.
func createdAfter(a, b DailyMark) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.ID > b.ID
}

// LatestMark returns the most recently created mark on date.
func LatestMark(marks []DailyMark, date Date) (DailyMark, bool) {
	var (
		latest DailyMark
		found  bool
	)
	for _, mark := range marks {
		if mark.Date != date {
			continue
		}
		if !found || createdAfter(mark, latest) {
			latest = mark
			found = true
		}
	}
	return latest, found
}

// DeriveStatus returns the authoritative status for date: the status of the
// last created mark on that day, or StatusNotMarked when there is none.
func DeriveStatus(marks []DailyMark, date Date) Status {
	latest, ok := LatestMark(marks, date)
	if !ok {
		return StatusNotMarked
	}
	return latest.Status
}

// MarkHistory returns the marks of date ordered newest first.
func MarkHistory(marks []DailyMark, date Date) []DailyMark {
	out := make([]DailyMark, 0, 2)
	for _, mark := range marks {
		if mark.Date == date {
			out = append(out, mark)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return createdAfter(out[i], out[j])
	})
	return out
}

// SubjectRecords is one roster entry with its mark collection.
type SubjectRecords struct {
	SubjectID string
	Name      string
	Marks     []DailyMark
}

type SubjectStatus struct {
	SubjectID string
	Name      string
	Status    Status
}

type Summary struct {
	Date       Date
	Present    int
	Absent     int
	NotMarked  int
	Total      int
	Percentage int
	Subjects   []SubjectStatus
}

// Aggregate derives every subject's status on date and rolls them up.
// An empty roster has Percentage 0.
func Aggregate(roster []SubjectRecords, date Date) Summary {
	summary := Summary{
		Date:     date,
		Total:    len(roster),
		Subjects: make([]SubjectStatus, 0, len(roster)),
	}

	for _, subject := range roster {
		status := DeriveStatus(subject.Marks, date)
		switch status {
		case StatusPresent:
			summary.Present++
		case StatusAbsent:
			summary.Absent++
		default:
			status = StatusNotMarked
			summary.NotMarked++
		}
		summary.Subjects = append(summary.Subjects, SubjectStatus{
			SubjectID: subject.SubjectID,
			Name:      subject.Name,
			Status:    status,
		})
	}

	sort.SliceStable(summary.Subjects, func(i, j int) bool {
		return summary.Subjects[i].SubjectID < summary.Subjects[j].SubjectID
	})
	summary.Percentage = Percentage(summary.Present, summary.Total)
	return summary
}

// Percentage rounds part/total*100 half away from zero; total 0 yields 0.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
