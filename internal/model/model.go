package model

import "time"

// EventType classifies an event for display and filtering purposes.
// The set is closed; the parser falls through to TypeOther when no
// keyword class matches.
type EventType string

const (
	TypeMeeting  EventType = "meeting"
	TypeTask     EventType = "task"
	TypeReminder EventType = "reminder"
	TypePersonal EventType = "personal"
	TypeOther    EventType = "other"
)

// EventColors maps each event type to its fixed display color.
var EventColors = map[EventType]string{
	TypeMeeting:  "#3b82f6",
	TypeTask:     "#22c55e",
	TypeReminder: "#eab308",
	TypePersonal: "#a855f7",
	TypeOther:    "#6b7280",
}

// Color returns the display color for the type, defaulting to the
// "other" color for unknown values.
func (t EventType) Color() string {
	if c, ok := EventColors[t]; ok {
		return c
	}
	return EventColors[TypeOther]
}

// Valid reports whether t is one of the closed set of event types.
func (t EventType) Valid() bool {
	switch t {
	case TypeMeeting, TypeTask, TypeReminder, TypePersonal, TypeOther:
		return true
	}
	return false
}

// Frequency is the base frequency of a recurrence rule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// WeekDay is an RFC 5545 two-letter weekday token.
type WeekDay string

const (
	Monday    WeekDay = "MO"
	Tuesday   WeekDay = "TU"
	Wednesday WeekDay = "WE"
	Thursday  WeekDay = "TH"
	Friday    WeekDay = "FR"
	Saturday  WeekDay = "SA"
	Sunday    WeekDay = "SU"
)

// weekDayNum maps tokens to time.Weekday numbering (Sunday = 0).
var weekDayNum = map[WeekDay]time.Weekday{
	Sunday:    time.Sunday,
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
}

// Weekday returns the time.Weekday for the token. Unknown tokens
// report ok=false.
func (d WeekDay) Weekday() (time.Weekday, bool) {
	wd, ok := weekDayNum[d]
	return wd, ok
}

// WeekDayOf converts a time.Weekday back into its token form.
func WeekDayOf(wd time.Weekday) WeekDay {
	switch wd {
	case time.Sunday:
		return Sunday
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	default:
		return Saturday
	}
}

// Workdays is the byDay set produced by the 工作日 phrase.
var Workdays = []WeekDay{Monday, Tuesday, Wednesday, Thursday, Friday}

// RecurrenceRule describes how an event repeats (a subset of RFC 5545
// RRULE semantics).
type RecurrenceRule struct {
	Freq     Frequency `json:"freq"`
	Interval int       `json:"interval"`
	// ByDay restricts weekly rules to specific weekdays.
	ByDay []WeekDay `json:"byDay,omitempty"`
	// ByMonthDay restricts monthly rules to a specific day of month.
	ByMonthDay int `json:"byMonthDay,omitempty"`
	// Until is the inclusive end bound of the recurrence.
	Until *time.Time `json:"until,omitempty"`
	// Count caps the total number of generated occurrences.
	Count int `json:"count,omitempty"`
}

// Normalize enforces the rule invariants (interval always present and >= 1).
func (r *RecurrenceRule) Normalize() {
	if r.Interval < 1 {
		r.Interval = 1
	}
}

// ContainsDay reports whether wd is in the rule's ByDay set.
func (r *RecurrenceRule) ContainsDay(wd time.Weekday) bool {
	for _, d := range r.ByDay {
		if n, ok := d.Weekday(); ok && n == wd {
			return true
		}
	}
	return false
}

// ParseMeta carries provenance information about a parse result.
type ParseMeta struct {
	// Confidence is a bounded [0.30, 0.90] heuristic score; lower means
	// more defaults were assumed.
	Confidence float64   `json:"confidence"`
	RawInput   string    `json:"rawInput"`
	ParsedAt   time.Time `json:"parsedAt"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// ParsedEventData is the parser's sole output: a candidate event plus
// parse metadata. It is produced once per parse call and never mutated.
type ParsedEventData struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	IsAllDay    bool            `json:"isAllDay"`
	Location    string          `json:"location,omitempty"`
	Attendees   []string        `json:"attendees,omitempty"`
	Type        EventType       `json:"type"`
	Recurrence  *RecurrenceRule `json:"recurrence,omitempty"`
	Description string          `json:"description,omitempty"`
	Meta        ParseMeta       `json:"meta"`
}

// CalendarEvent is the persisted entity. Expanded occurrences of a
// recurring event are CalendarEvent-shaped values carrying
// OriginalEventID and IsRecurringInstance; they are recomputed per
// display window and never stored.
type CalendarEvent struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	IsAllDay    bool            `json:"isAllDay"`
	Location    string          `json:"location,omitempty"`
	Description string          `json:"description,omitempty"`
	Attendees   []string        `json:"attendees,omitempty"`
	Color       string          `json:"color,omitempty"`
	Type        EventType       `json:"type,omitempty"`
	Recurrence  *RecurrenceRule `json:"recurrence,omitempty"`
	// ReminderMinutes is how many minutes before start a reminder
	// fires; 0 disables the reminder.
	ReminderMinutes int       `json:"reminder,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// OriginalEventID back-references the defining event when this
	// value is an expanded instance.
	OriginalEventID     string `json:"originalEventId,omitempty"`
	IsRecurringInstance bool   `json:"isRecurringInstance,omitempty"`
}

// FromParsed converts a confirmed parse result into a persistable event.
func FromParsed(p ParsedEventData, now time.Time) CalendarEvent {
	return CalendarEvent{
		ID:          p.ID,
		Title:       p.Title,
		Start:       p.Start,
		End:         p.End,
		IsAllDay:    p.IsAllDay,
		Location:    p.Location,
		Description: p.Description,
		Attendees:   p.Attendees,
		Color:       p.Type.Color(),
		Type:        p.Type,
		Recurrence:  p.Recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Duration returns the event's length.
func (e *CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
