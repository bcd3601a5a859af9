package usecase

import (
	"sort"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

const (
	timelineGapPenalty     = 15.0
	timelineOverlapPenalty = 20.0
	maxTimelineGap         = 183 * 24 * time.Hour // six months
)

// timelineScore rates the claimed work/education history for internal
// consistency: unexplained gaps longer than six months and overlapping
// full-time engagements are penalized. An empty timeline scores a
// neutral 50 rather than a perfect 100.
func timelineScore(entries []domain.TimelineEntry, now time.Time) float64 {
	if len(entries) == 0 {
		return 50
	}

	sorted := make([]domain.TimelineEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	score := 100.0

	for i := 1; i < len(sorted); i++ {
		prevEnd := entryEnd(sorted[i-1], now)
		if sorted[i].Start.Sub(prevEnd) > maxTimelineGap {
			score -= timelineGapPenalty
		}
	}

	for i := 0; i < len(sorted); i++ {
		if !sorted[i].FullTime {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			if !sorted[j].FullTime {
				continue
			}
			if overlaps(sorted[i], sorted[j], now) {
				score -= timelineOverlapPenalty
			}
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

func entryEnd(entry domain.TimelineEntry, now time.Time) time.Time {
	if entry.End == nil {
		return now
	}
	return *entry.End
}

func overlaps(a, b domain.TimelineEntry, now time.Time) bool {
	aEnd := entryEnd(a, now)
	bEnd := entryEnd(b, now)
	return a.Start.Before(bEnd) && b.Start.Before(aEnd)
}
