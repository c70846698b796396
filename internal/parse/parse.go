// Package parse turns a casual Chinese phrase into a structured
// calendar event candidate. Matching is a fixed chain of ordered rule
// tables (dates, times, durations, type keywords, clause extraction);
// anything that cannot be resolved degrades to a documented default
// plus a warning, never an error.
package parse

import (
	"time"

	"github.com/google/uuid"

	"aical/internal/model"
)

const (
	baseConfidence     = 0.90
	warningPenalty     = 0.15
	vagueTimePenalty   = 0.10
	minConfidence      = 0.30
	idPrefix           = "evt_"
	idRandomComponents = 8
)

// Parser produces ParsedEventData from raw text. The zero value is not
// usable; construct with New.
type Parser struct {
	// Now supplies the parsedAt timestamp; swapped out in tests.
	Now func() time.Time
}

func New() *Parser {
	return &Parser{Now: time.Now}
}

// Parse resolves text against the reference instant ref. It is a pure
// function of its inputs apart from id generation and the parsedAt
// stamp, and by construction never fails: every regex test has an
// else-branch default.
func (p *Parser) Parse(text string, ref time.Time) model.ParsedEventData {
	var warnings []string

	targetDate, dateWarnings := resolveDate(text, ref)
	warnings = append(warnings, dateWarnings...)

	spec := resolveTime(text)
	warnings = append(warnings, spec.Warnings...)

	eventType := classifyType(text)

	var clauses []span
	var location string
	var attendees []string
	if loc, s, ok := extractLocation(text); ok {
		location = loc
		clauses = append(clauses, s)
	}
	if name, s, ok := extractAttendee(text); ok {
		attendees = []string{name}
		clauses = append(clauses, s)
	}

	recurrence := extractRecurrence(text)

	title := reduceTitle(text, clauses)

	start := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(),
		spec.Hour, spec.Minute, 0, 0, ref.Location())
	end := start.Add(time.Duration(spec.DurationMin) * time.Minute)

	confidence := baseConfidence - warningPenalty*float64(len(warnings))
	if !spec.HasPoint && !spec.HasRange && !spec.AllDay {
		confidence -= vagueTimePenalty
	}
	if confidence < minConfidence {
		confidence = minConfidence
	}

	return model.ParsedEventData{
		ID:         newEventID(),
		Title:      title,
		Start:      start,
		End:        end,
		IsAllDay:   spec.AllDay,
		Location:   location,
		Attendees:  attendees,
		Type:       eventType,
		Recurrence: recurrence,
		Meta: model.ParseMeta{
			Confidence: confidence,
			RawInput:   text,
			ParsedAt:   p.Now(),
			Warnings:   warnings,
		},
	}
}

func newEventID() string {
	return idPrefix + uuid.NewString()[:idRandomComponents]
}
