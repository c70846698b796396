// Package ics serializes calendar events into RFC 5545 iCalendar text
// for export. Times are written as floating local values since the
// application operates in local wall-clock time.
package ics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"aical/internal/model"
)

const (
	prodID       = "-//AI Calendar//AI Schedule Planning//CN"
	calName      = "AI 日程规划"
	uidDomain    = "ai-calendar"
	dateTimeForm = "20060102T150405"
	dateForm     = "20060102"
)

// Calendar renders events into a complete VCALENDAR document.
func Calendar(events []model.CalendarEvent, timezone string, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetVersion("2.0")
	cal.SetProductId(prodID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(calName)
	if timezone != "" {
		cal.SetXWRTimezone(timezone)
	}

	for _, ev := range events {
		if err := addEvent(cal, ev, now); err != nil {
			return "", err
		}
	}

	return cal.Serialize(), nil
}

// SingleEvent renders one event into its own VCALENDAR document.
func SingleEvent(ev model.CalendarEvent, timezone string, now time.Time) (string, error) {
	return Calendar([]model.CalendarEvent{ev}, timezone, now)
}

func addEvent(cal *ical.Calendar, ev model.CalendarEvent, now time.Time) error {
	e := cal.AddEvent(fmt.Sprintf("%s@%s", ev.ID, uidDomain))
	e.SetDtStampTime(now)

	if ev.IsAllDay {
		e.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Format(dateForm), dateValueParam())
		// The exclusive DTEND convention: the day after the event ends.
		e.SetProperty(ical.ComponentPropertyDtEnd, ev.End.AddDate(0, 0, 1).Format(dateForm), dateValueParam())
	} else {
		e.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Format(dateTimeForm))
		e.SetProperty(ical.ComponentPropertyDtEnd, ev.End.Format(dateTimeForm))
	}

	e.SetSummary(ev.Title)
	if ev.Location != "" {
		e.SetLocation(ev.Location)
	}
	if ev.Description != "" {
		e.SetDescription(ev.Description)
	}

	for _, attendee := range ev.Attendees {
		e.AddAttendee(syntheticMailbox(attendee), ical.WithCN(attendee))
	}

	if !ev.CreatedAt.IsZero() {
		e.SetCreatedTime(ev.CreatedAt)
	}
	if !ev.UpdatedAt.IsZero() {
		e.SetModifiedAt(ev.UpdatedAt)
	}

	if ev.Recurrence != nil {
		rr, err := RuleString(*ev.Recurrence)
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.ID, err)
		}
		e.SetProperty(ical.ComponentPropertyRrule, rr)
	}

	return nil
}

func dateValueParam() ical.PropertyParameter {
	return &ical.KeyValues{Key: "VALUE", Value: []string{"DATE"}}
}

// syntheticMailbox derives a placeholder mailto address from an
// attendee name; only the CN carries the real name.
func syntheticMailbox(name string) string {
	addr := strings.ToLower(name)
	addr = strings.Join(strings.Fields(addr), "")
	return addr + "@example.com"
}

var rruleFreq = map[model.Frequency]rrule.Frequency{
	model.FreqDaily:   rrule.DAILY,
	model.FreqWeekly:  rrule.WEEKLY,
	model.FreqMonthly: rrule.MONTHLY,
	model.FreqYearly:  rrule.YEARLY,
}

var rruleWeekday = map[model.WeekDay]rrule.Weekday{
	model.Monday:    rrule.MO,
	model.Tuesday:   rrule.TU,
	model.Wednesday: rrule.WE,
	model.Thursday:  rrule.TH,
	model.Friday:    rrule.FR,
	model.Saturday:  rrule.SA,
	model.Sunday:    rrule.SU,
}

// RuleString serializes a recurrence rule into RFC 5545 RRULE value
// syntax (FREQ=WEEKLY;INTERVAL=1;BYDAY=TU).
func RuleString(rule model.RecurrenceRule) (string, error) {
	freq, ok := rruleFreq[rule.Freq]
	if !ok {
		return "", fmt.Errorf("unknown recurrence frequency %q", rule.Freq)
	}
	rule.Normalize()

	opt := rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
	}
	for _, d := range rule.ByDay {
		wd, ok := rruleWeekday[d]
		if !ok {
			return "", fmt.Errorf("unknown weekday token %q", d)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	if rule.ByMonthDay != 0 {
		opt.Bymonthday = []int{rule.ByMonthDay}
	}
	if rule.Until != nil {
		opt.Until = *rule.Until
	}
	if rule.Count > 0 {
		opt.Count = rule.Count
	}

	return opt.RRuleString(), nil
}

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9\p{Han}]`)

// Filename builds a dated export filename (prefix-YYYY-MM-DD.ics).
func Filename(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = "ai-calendar"
	}
	return fmt.Sprintf("%s-%s.ics", prefix, now.Format("2006-01-02"))
}

// EventFilename builds a per-event filename from the event title.
func EventFilename(ev model.CalendarEvent) string {
	safe := unsafeFilenameRe.ReplaceAllString(ev.Title, "-")
	runes := []rune(safe)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return string(runes) + ".ics"
}
