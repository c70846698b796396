// Package recur expands a recurring event definition into concrete
// occurrences over a display window. Expansion is a pure function of
// its inputs: occurrences are recomputed on every window change and
// never stored.
package recur

import (
	"fmt"
	"time"

	"aical/internal/model"
)

// DefaultMaxOccurrences caps expansion when the rule carries neither
// until nor count, so expansion always terminates (roughly one year of
// weekly occurrences).
const DefaultMaxOccurrences = 52

// Expand enumerates the occurrences of event within [rangeStart,
// rangeEnd]. Events without a recurrence rule are returned as a
// singleton regardless of the range. The first emitted occurrence
// keeps the defining event's id; later ones get synthesized
// "<id>_instance_<n>" ids and the IsRecurringInstance flag.
//
// The cursor walks from the event's own start. Weekly rules advance
// one day at a time so every day is tested against byDay; the rule's
// interval is not applied for weekly frequencies. byMonthDay values
// that do not exist in a month roll over into the next month.
func Expand(event model.CalendarEvent, rangeStart, rangeEnd time.Time) []model.CalendarEvent {
	if event.Recurrence == nil {
		return []model.CalendarEvent{event}
	}

	rule := *event.Recurrence
	rule.Normalize()

	duration := event.Duration()
	maxInstances := rule.Count
	if maxInstances <= 0 {
		maxInstances = DefaultMaxOccurrences
	}

	instances := make([]model.CalendarEvent, 0)
	count := 0
	cur := event.Start

	for !cur.After(rangeEnd) && count < maxInstances {
		// The until bound is inclusive: a cursor equal to until is
		// still eligible for emission.
		if rule.Until != nil && cur.After(*rule.Until) {
			break
		}

		if !cur.Before(rangeStart) && eligible(rule, cur, event.Start) {
			start := time.Date(cur.Year(), cur.Month(), cur.Day(),
				event.Start.Hour(), event.Start.Minute(), event.Start.Second(), 0,
				event.Start.Location())

			inst := event
			inst.Start = start
			inst.End = start.Add(duration)
			inst.OriginalEventID = event.ID
			inst.IsRecurringInstance = count > 0
			if count > 0 {
				inst.ID = fmt.Sprintf("%s_instance_%d", event.ID, count)
			}

			instances = append(instances, inst)
			count++
		}

		switch rule.Freq {
		case model.FreqDaily:
			cur = cur.AddDate(0, 0, rule.Interval)
		case model.FreqWeekly:
			cur = cur.AddDate(0, 0, 1)
		case model.FreqMonthly:
			cur = cur.AddDate(0, rule.Interval, 0)
		case model.FreqYearly:
			cur = cur.AddDate(rule.Interval, 0, 0)
		default:
			// Unknown frequency: the cursor cannot advance.
			return instances
		}
	}

	return instances
}

func eligible(rule model.RecurrenceRule, cur, originalStart time.Time) bool {
	switch rule.Freq {
	case model.FreqDaily:
		return true
	case model.FreqWeekly:
		if len(rule.ByDay) == 0 {
			return true
		}
		return rule.ContainsDay(cur.Weekday())
	case model.FreqMonthly:
		if rule.ByMonthDay != 0 {
			return cur.Day() == rule.ByMonthDay
		}
		return cur.Day() == originalStart.Day()
	case model.FreqYearly:
		return cur.Month() == originalStart.Month() && cur.Day() == originalStart.Day()
	default:
		return false
	}
}

// ExpandAll expands every event in events over the same window.
func ExpandAll(events []model.CalendarEvent, rangeStart, rangeEnd time.Time) []model.CalendarEvent {
	expanded := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		expanded = append(expanded, Expand(ev, rangeStart, rangeEnd)...)
	}
	return expanded
}
