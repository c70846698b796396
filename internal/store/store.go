// Package store persists calendar events in SQLite. Date-like fields
// are serialized to ISO-8601 text so rows stay readable and portable;
// attendees and recurrence rules are stored as JSON columns.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"aical/internal/model"
)

// ErrNotFound is returned when no event exists for the given id.
var ErrNotFound = errors.New("event not found")

// Store wraps the SQLite database holding events.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
// A single connection avoids SQLite write contention.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		start_at     TEXT NOT NULL,
		end_at       TEXT NOT NULL,
		is_all_day   INTEGER NOT NULL DEFAULT 0,
		location     TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		attendees    TEXT,
		color        TEXT NOT NULL DEFAULT '',
		event_type   TEXT NOT NULL DEFAULT 'other',
		recurrence   TEXT,
		reminder_min INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("migrate events table: %w", err)
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func encodeJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// Create inserts a new event.
func (s *Store) Create(ctx context.Context, ev model.CalendarEvent) error {
	attendees, err := marshalAttendees(ev.Attendees)
	if err != nil {
		return fmt.Errorf("encode attendees: %w", err)
	}
	recurrence, err := marshalRecurrence(ev.Recurrence)
	if err != nil {
		return fmt.Errorf("encode recurrence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
			(id, title, start_at, end_at, is_all_day, location, description,
			 attendees, color, event_type, recurrence, reminder_min, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Title,
		ev.Start.Format(timeLayout), ev.End.Format(timeLayout),
		boolToInt(ev.IsAllDay), ev.Location, ev.Description,
		attendees, ev.Color, string(ev.Type), recurrence, ev.ReminderMinutes,
		ev.CreatedAt.Format(timeLayout), ev.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// Update rewrites an existing event and bumps updated_at to now.
func (s *Store) Update(ctx context.Context, ev model.CalendarEvent) error {
	attendees, err := marshalAttendees(ev.Attendees)
	if err != nil {
		return fmt.Errorf("encode attendees: %w", err)
	}
	recurrence, err := marshalRecurrence(ev.Recurrence)
	if err != nil {
		return fmt.Errorf("encode recurrence: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			title = ?, start_at = ?, end_at = ?, is_all_day = ?, location = ?,
			description = ?, attendees = ?, color = ?, event_type = ?,
			recurrence = ?, reminder_min = ?, updated_at = ?
		WHERE id = ?`,
		ev.Title,
		ev.Start.Format(timeLayout), ev.End.Format(timeLayout),
		boolToInt(ev.IsAllDay), ev.Location, ev.Description,
		attendees, ev.Color, string(ev.Type), recurrence, ev.ReminderMinutes,
		time.Now().Format(timeLayout),
		ev.ID,
	)
	if err != nil {
		return fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	return requireRow(res)
}

// Get loads a single event by id.
func (s *Store) Get(ctx context.Context, id string) (model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarEvent{}, ErrNotFound
	}
	return ev, err
}

// List returns all stored events ordered by start time.
func (s *Store) List(ctx context.Context) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY start_at`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]model.CalendarEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Delete removes an event entirely. For recurring events this is the
// delete-all semantics; delete-single falls back here because
// per-occurrence exception dates are not persisted.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return requireRow(res)
}

// TruncateRecurrence implements delete-future-tail: the defining rule's
// until bound is pulled back so no occurrence at or after cutoff is
// generated again.
func (s *Store) TruncateRecurrence(ctx context.Context, id string, cutoff time.Time) error {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if ev.Recurrence == nil {
		return fmt.Errorf("event %s has no recurrence rule", id)
	}

	until := cutoff.Add(-time.Second)
	ev.Recurrence.Until = &until
	return s.Update(ctx, ev)
}

// Clear removes every stored event.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events`)
	return err
}

const selectColumns = `
	SELECT id, title, start_at, end_at, is_all_day, location, description,
	       attendees, color, event_type, recurrence, reminder_min,
	       created_at, updated_at
	FROM events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.CalendarEvent, error) {
	var (
		ev                                   model.CalendarEvent
		startAt, endAt, createdAt, updatedAt string
		isAllDay                             int
		eventType                            string
		attendees, recurrence                sql.NullString
	)

	err := row.Scan(&ev.ID, &ev.Title, &startAt, &endAt, &isAllDay,
		&ev.Location, &ev.Description, &attendees, &ev.Color, &eventType,
		&recurrence, &ev.ReminderMinutes, &createdAt, &updatedAt)
	if err != nil {
		return ev, err
	}

	ev.IsAllDay = isAllDay != 0
	ev.Type = model.EventType(eventType)

	for name, pair := range map[string]struct {
		raw  string
		dest *time.Time
	}{
		"start_at":   {startAt, &ev.Start},
		"end_at":     {endAt, &ev.End},
		"created_at": {createdAt, &ev.CreatedAt},
		"updated_at": {updatedAt, &ev.UpdatedAt},
	} {
		t, perr := time.ParseInLocation(timeLayout, pair.raw, time.Local)
		if perr != nil {
			return ev, fmt.Errorf("decode %s for event %s: %w", name, ev.ID, perr)
		}
		*pair.dest = t
	}

	if attendees.Valid && attendees.String != "" {
		if err := json.Unmarshal([]byte(attendees.String), &ev.Attendees); err != nil {
			return ev, fmt.Errorf("decode attendees for event %s: %w", ev.ID, err)
		}
	}
	if recurrence.Valid && recurrence.String != "" {
		var rule model.RecurrenceRule
		if err := json.Unmarshal([]byte(recurrence.String), &rule); err != nil {
			return ev, fmt.Errorf("decode recurrence for event %s: %w", ev.ID, err)
		}
		ev.Recurrence = &rule
	}

	return ev, nil
}

func marshalAttendees(attendees []string) (sql.NullString, error) {
	if len(attendees) == 0 {
		return sql.NullString{}, nil
	}
	return encodeJSON(attendees)
}

func marshalRecurrence(rule *model.RecurrenceRule) (sql.NullString, error) {
	if rule == nil {
		return sql.NullString{}, nil
	}
	return encodeJSON(rule)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
