package usecase

import (
	"testing"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestTimelineScoreEmptyIsNeutral(t *testing.T) {
	if got := timelineScore(nil, date(2026, time.January, 1)); got != 50 {
		t.Fatalf("empty timeline = %.1f, want 50", got)
	}
}

func TestTimelineScoreContiguousHistoryIsClean(t *testing.T) {
	entries := []domain.TimelineEntry{
		{Start: date(2020, time.January, 1), End: datePtr(2022, time.June, 1), FullTime: true},
		{Start: date(2022, time.July, 1), FullTime: true},
	}
	if got := timelineScore(entries, date(2026, time.January, 1)); got != 100 {
		t.Fatalf("contiguous timeline = %.1f, want 100", got)
	}
}

func TestTimelineScoreLongGapPenalized(t *testing.T) {
	entries := []domain.TimelineEntry{
		{Start: date(2020, time.January, 1), End: datePtr(2021, time.January, 1), FullTime: true},
		{Start: date(2021, time.September, 1), FullTime: true},
	}
	if got := timelineScore(entries, date(2026, time.January, 1)); got != 85 {
		t.Fatalf("eight month gap = %.1f, want 85", got)
	}
}

func TestTimelineScoreOverlappingFullTimePenalized(t *testing.T) {
	entries := []domain.TimelineEntry{
		{Start: date(2020, time.January, 1), End: datePtr(2023, time.January, 1), FullTime: true},
		{Start: date(2021, time.January, 1), End: datePtr(2022, time.January, 1), FullTime: true},
	}
	if got := timelineScore(entries, date(2026, time.January, 1)); got != 80 {
		t.Fatalf("full-time overlap = %.1f, want 80", got)
	}
}

func TestTimelineScorePartTimeOverlapAllowed(t *testing.T) {
	entries := []domain.TimelineEntry{
		{Start: date(2020, time.January, 1), End: datePtr(2023, time.January, 1), FullTime: true},
		{Start: date(2021, time.January, 1), End: datePtr(2022, time.January, 1)},
	}
	if got := timelineScore(entries, date(2026, time.January, 1)); got != 100 {
		t.Fatalf("part-time overlap = %.1f, want 100", got)
	}
}

func TestTimelineScoreClampsAtZero(t *testing.T) {
	var entries []domain.TimelineEntry
	for i := 0; i < 6; i++ {
		entries = append(entries, domain.TimelineEntry{
			Start:    date(2020, time.January, 1),
			End:      datePtr(2024, time.January, 1),
			FullTime: true,
		})
	}
	if got := timelineScore(entries, date(2026, time.January, 1)); got != 0 {
		t.Fatalf("score must clamp at zero, got %.1f", got)
	}
}
