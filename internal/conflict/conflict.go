// Package conflict reports overlaps between a candidate time interval
// and a set of existing events.
package conflict

import (
	"fmt"
	"time"

	"aical/internal/model"
)

// Candidate is the interval (plus all-day flag) being tested before an
// event is committed.
type Candidate struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	IsAllDay bool      `json:"isAllDay"`
}

// Result lists every existing event the candidate overlaps, in input
// order.
type Result struct {
	HasConflict bool                  `json:"hasConflict"`
	Conflicts   []model.CalendarEvent `json:"conflicts"`
}

// Check tests the candidate against existing events. All-day events
// take no part in conflict detection, on either side. Overlap is
// half-open: touching intervals (candidate ending exactly when an
// existing event starts, or vice versa) do not conflict.
func Check(candidate Candidate, existing []model.CalendarEvent) Result {
	if candidate.IsAllDay {
		return Result{Conflicts: []model.CalendarEvent{}}
	}

	conflicts := make([]model.CalendarEvent, 0)
	for _, ev := range existing {
		if ev.IsAllDay {
			continue
		}
		if candidate.Start.Before(ev.End) && candidate.End.After(ev.Start) {
			conflicts = append(conflicts, ev)
		}
	}

	return Result{
		HasConflict: len(conflicts) > 0,
		Conflicts:   conflicts,
	}
}

// Message renders a short Chinese description of the conflicts, empty
// when there are none.
func Message(conflicts []model.CalendarEvent) string {
	switch len(conflicts) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("与「%s」时间冲突", conflicts[0].Title)
	default:
		return fmt.Sprintf("与 %d 个日程时间冲突", len(conflicts))
	}
}
