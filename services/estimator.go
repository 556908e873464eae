// services/estimator.go - Completion time projection
package services

import (
	"time"

	"lifelog/models"
)

// estimatorWindow caps how much history the projection looks at.
const estimatorWindow = 5

// EstimateCompletion projects when a record will hit its target by linear
// extrapolation over the tail of its progress history. Returns nil when
// there are fewer than two history points or the recent slope is flat or
// negative. The projection is a heuristic recomputed on read, never stored.
func EstimateCompletion(history []models.ProgressEntry, target int, now time.Time) *time.Time {
	if len(history) < 2 {
		return nil
	}
	tail := history
	if len(tail) > estimatorWindow {
		tail = tail[len(tail)-estimatorWindow:]
	}

	first := tail[0]
	last := tail[len(tail)-1]

	dt := last.Timestamp.Sub(first.Timestamp).Seconds()
	dv := float64(last.Value - first.Value)
	if dt <= 0 || dv <= 0 {
		return nil
	}

	slope := dv / dt // progress per second
	remaining := float64(target - last.Value)
	if remaining <= 0 {
		t := now
		return &t
	}

	projected := now.Add(time.Duration(remaining/slope) * time.Second)
	return &projected
}
