package attendance

import (
	"testing"
	"time"
)

var (
	jan1 = Date{Year: 2024, Month: time.January, Day: 1}
	jan2 = Date{Year: 2024, Month: time.January, Day: 2}
	t0   = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
)

func mark(id, subject string, date Date, status Status, createdAt time.Time, seq uint64) DailyMark {
	return DailyMark{
		ID:        id,
		SubjectID: subject,
		Date:      date,
		Status:    status,
		CreatedAt: createdAt,
		Seq:       seq,
	}
}

func permutations(items []DailyMark) [][]DailyMark {
	if len(items) <= 1 {
		return [][]DailyMark{append([]DailyMark(nil), items...)}
	}
	var out [][]DailyMark
	for i := range items {
		rest := make([]DailyMark, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, perm := range permutations(rest) {
			out = append(out, append([]DailyMark{items[i]}, perm...))
		}
	}
	return out
}

func TestDeriveStatusNotMarkedWithoutEntryOnDate(t *testing.T) {
	marks := []DailyMark{
		mark("m1", "w1", jan2, StatusPresent, t0, 1),
		mark("m2", "w1", jan2, StatusAbsent, t0.Add(time.Hour), 2),
	}
	if got := DeriveStatus(marks, jan1); got != StatusNotMarked {
		t.Fatalf("DeriveStatus() = %q, want not_marked", got)
	}
	if got := DeriveStatus(nil, jan1); got != StatusNotMarked {
		t.Fatalf("DeriveStatus(nil) = %q, want not_marked", got)
	}
}

func TestDeriveStatusSingleEntryAnyPosition(t *testing.T) {
	target := mark("m-target", "w1", jan1, StatusAbsent, t0, 5)
	others := []DailyMark{
		mark("m1", "w1", jan2, StatusPresent, t0.Add(48*time.Hour), 9),
		mark("m2", "w1", jan2, StatusPresent, t0.Add(49*time.Hour), 10),
	}

	for pos := 0; pos <= len(others); pos++ {
		marks := make([]DailyMark, 0, len(others)+1)
		marks = append(marks, others[:pos]...)
		marks = append(marks, target)
		marks = append(marks, others[pos:]...)

		if got := DeriveStatus(marks, jan1); got != StatusAbsent {
			t.Fatalf("position %d: DeriveStatus() = %q, want absent", pos, got)
		}
	}
}

func TestDeriveStatusLastCreatedWinsForEveryPermutation(t *testing.T) {
	marks := []DailyMark{
		mark("a", "w1", jan1, StatusPresent, t0, 1),
		mark("b", "w1", jan1, StatusAbsent, t0.Add(time.Minute), 2),
		mark("c", "w1", jan2, StatusPresent, t0.Add(time.Hour), 3),
	}

	for i, perm := range permutations(marks) {
		if got := DeriveStatus(perm, jan1); got != StatusAbsent {
			t.Fatalf("permutation %d: DeriveStatus() = %q, want absent", i, got)
		}
	}
}

func TestDeriveStatusTieBreaksBySequenceThenID(t *testing.T) {
	sameTime := []DailyMark{
		mark("a", "w1", jan1, StatusAbsent, t0, 7),
		mark("b", "w1", jan1, StatusPresent, t0, 3),
	}
	for i, perm := range permutations(sameTime) {
		if got := DeriveStatus(perm, jan1); got != StatusAbsent {
			t.Fatalf("permutation %d: DeriveStatus() = %q, want absent (higher seq)", i, got)
		}
	}

	sameSeq := []DailyMark{
		mark("a", "w1", jan1, StatusAbsent, t0, 0),
		mark("b", "w1", jan1, StatusPresent, t0, 0),
	}
	for i, perm := range permutations(sameSeq) {
		if got := DeriveStatus(perm, jan1); got != StatusPresent {
			t.Fatalf("permutation %d: DeriveStatus() = %q, want present (higher id)", i, got)
		}
	}
}

func TestMarkHistoryNewestFirst(t *testing.T) {
	marks := []DailyMark{
		mark("a", "w1", jan1, StatusPresent, t0, 1),
		mark("c", "w1", jan1, StatusPresent, t0.Add(2*time.Minute), 3),
		mark("x", "w1", jan2, StatusAbsent, t0, 4),
		mark("b", "w1", jan1, StatusAbsent, t0.Add(time.Minute), 2),
	}

	history := MarkHistory(marks, jan1)
	if len(history) != 3 {
		t.Fatalf("MarkHistory() len = %d, want 3", len(history))
	}
	if history[0].ID != "c" || history[1].ID != "b" || history[2].ID != "a" {
		t.Fatalf("MarkHistory() order = %s,%s,%s", history[0].ID, history[1].ID, history[2].ID)
	}
}

func TestAggregateEmptyRoster(t *testing.T) {
	got := Aggregate(nil, jan1)
	if got.Total != 0 || got.Percentage != 0 {
		t.Fatalf("Aggregate(empty) = %+v, want total=0 percentage=0", got)
	}
}

func TestAggregateAllPresent(t *testing.T) {
	roster := []SubjectRecords{
		{SubjectID: "w1", Marks: []DailyMark{mark("a", "w1", jan1, StatusPresent, t0, 1)}},
		{SubjectID: "w2", Marks: []DailyMark{mark("b", "w2", jan1, StatusPresent, t0, 2)}},
		{SubjectID: "w3", Marks: []DailyMark{mark("c", "w3", jan1, StatusPresent, t0, 3)}},
	}
	got := Aggregate(roster, jan1)
	if got.Present != 3 || got.Percentage != 100 {
		t.Fatalf("Aggregate(all present) = %+v, want present=3 percentage=100", got)
	}
}

func TestAggregateFourWorkerScenario(t *testing.T) {
	roster := []SubjectRecords{
		{SubjectID: "w1", Marks: []DailyMark{mark("m1", "w1", jan1, StatusPresent, t0, 1)}},
		{SubjectID: "w2", Marks: []DailyMark{mark("m2", "w2", jan1, StatusAbsent, t0, 2)}},
		{SubjectID: "w3", Marks: []DailyMark{
			mark("m4", "w3", jan1, StatusAbsent, t0.Add(time.Second), 4),
			mark("m3", "w3", jan1, StatusPresent, t0, 3),
		}},
		{SubjectID: "w4"},
	}

	got := Aggregate(roster, jan1)
	if got.Present != 1 || got.Absent != 2 || got.NotMarked != 1 || got.Total != 4 || got.Percentage != 25 {
		t.Fatalf("Aggregate() = present=%d absent=%d notMarked=%d total=%d pct=%d, want 1/2/1/4/25",
			got.Present, got.Absent, got.NotMarked, got.Total, got.Percentage)
	}
	if got.Subjects[2].SubjectID != "w3" || got.Subjects[2].Status != StatusAbsent {
		t.Fatalf("Aggregate() w3 = %+v, want absent", got.Subjects[2])
	}
}

func TestPercentageRounding(t *testing.T) {
	cases := []struct {
		part, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{5, 5, 100},
	}
	for _, tc := range cases {
		if got := Percentage(tc.part, tc.total); got != tc.want {
			t.Fatalf("Percentage(%d, %d) = %d, want %d", tc.part, tc.total, got, tc.want)
		}
	}
}
