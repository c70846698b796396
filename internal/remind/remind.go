// Package remind fires due reminders for upcoming events. Delivery
// itself is pluggable; deduplication state lives behind SeenStore so
// callers decide how long "already reminded" survives.
package remind

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aical/internal/model"
	"aical/internal/recur"
)

// Notifier delivers a single reminder.
type Notifier interface {
	Notify(ctx context.Context, ev model.CalendarEvent) error
}

// LogNotifier writes reminders to the log. It stands in for real
// delivery channels during development and in tests.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, ev model.CalendarEvent) error {
	n.Log.Info().
		Str("event_id", ev.ID).
		Str("title", ev.Title).
		Time("start", ev.Start).
		Int("reminder_min", ev.ReminderMinutes).
		Msg("reminder due")
	return nil
}

// SeenStore records which reminders have already fired.
type SeenStore interface {
	Seen(key string) bool
	MarkSeen(key string)
	Forget(key string)
}

// MemorySeenStore keeps seen keys in memory with an expiry so the map
// does not grow without bound.
type MemorySeenStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	expiry time.Duration
}

// NewMemorySeenStore creates a store whose entries lapse after expiry.
func NewMemorySeenStore(expiry time.Duration) *MemorySeenStore {
	return &MemorySeenStore{
		seen:   make(map[string]time.Time),
		expiry: expiry,
	}
}

func (s *MemorySeenStore) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.seen[key]
	return ok && time.Since(at) < s.expiry
}

func (s *MemorySeenStore) MarkSeen(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = time.Now()
	for k, at := range s.seen {
		if time.Since(at) >= s.expiry {
			delete(s.seen, k)
		}
	}
}

func (s *MemorySeenStore) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}

// Key identifies one occurrence's reminder. Expanded instances share
// their defining event's id, so the occurrence start disambiguates.
func Key(ev model.CalendarEvent) string {
	id := ev.OriginalEventID
	if id == "" {
		id = ev.ID
	}
	return fmt.Sprintf("%s_%d", id, ev.Start.UnixMilli())
}

// EventSource lists the events eligible for reminders.
type EventSource interface {
	List(ctx context.Context) ([]model.CalendarEvent, error)
}

// DefaultDueWindow is how long after its fire time a reminder is
// still considered due. It should exceed the scan interval.
const DefaultDueWindow = 20 * time.Second

// forgetAfter is how long past an occurrence's start its seen key is
// dropped, so a future instance of the same recurring event can fire.
const forgetAfter = time.Hour

// Checker scans upcoming occurrences and fires reminders that have
// come due since the last scan.
type Checker struct {
	Events   EventSource
	Seen     SeenStore
	Notifier Notifier
	Log      zerolog.Logger

	// Horizon bounds how far ahead recurring events are expanded when
	// looking for due reminders.
	Horizon time.Duration

	// Window is the due window after a reminder's fire time; zero
	// means DefaultDueWindow.
	Window time.Duration

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// Run performs one scan. A reminder is due when now sits within the
// due window after start minus the reminder lead time; each one fires
// at most once per SeenStore entry. Keys of occurrences well past
// their start are forgotten.
func (c *Checker) Run(ctx context.Context) error {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	window := c.Window
	if window <= 0 {
		window = DefaultDueWindow
	}

	events, err := c.Events.List(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	fired := 0
	for _, occ := range recur.ExpandAll(events, now.Add(-2*forgetAfter), now.Add(c.Horizon)) {
		key := Key(occ)
		if now.After(occ.Start.Add(forgetAfter)) {
			c.Seen.Forget(key)
			continue
		}
		if occ.ReminderMinutes <= 0 {
			continue
		}
		elapsed := now.Sub(occ.Start.Add(-time.Duration(occ.ReminderMinutes) * time.Minute))
		if elapsed < 0 || elapsed >= window {
			continue
		}

		if c.Seen.Seen(key) {
			continue
		}
		if err := c.Notifier.Notify(ctx, occ); err != nil {
			c.Log.Error().Err(err).Str("event_id", occ.ID).Msg("reminder delivery failed")
			continue
		}
		c.Seen.MarkSeen(key)
		fired++
	}

	if fired > 0 {
		c.Log.Debug().Int("fired", fired).Msg("reminder scan complete")
	}
	return nil
}

// NextReminder reports the earliest upcoming reminder fire time across
// the given events, expanded over [now, now+horizon]. ok is false when
// nothing is pending.
func NextReminder(events []model.CalendarEvent, now time.Time, horizon time.Duration) (time.Time, bool) {
	var next time.Time
	found := false
	for _, occ := range recur.ExpandAll(events, now, now.Add(horizon)) {
		if occ.ReminderMinutes <= 0 {
			continue
		}
		fireAt := occ.Start.Add(-time.Duration(occ.ReminderMinutes) * time.Minute)
		if fireAt.Before(now) {
			continue
		}
		if !found || fireAt.Before(next) {
			next = fireAt
			found = true
		}
	}
	return next, found
}
