package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aical/internal/config"
	"aical/internal/model"
	"aical/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	s := NewServer(cfg, st, zerolog.Nop())
	s.now = func() time.Time {
		return time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	}
	return s, st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestParseEvent(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/parse-event", map[string]string{
		"text":          "明天下午3点开会",
		"referenceTime": "2024-01-01T10:00:00+08:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, "true", string(env["success"]))

	var parsed model.ParsedEventData
	require.NoError(t, json.Unmarshal(env["data"], &parsed))
	assert.Equal(t, "开会", parsed.Title)
	assert.Equal(t, model.TypeMeeting, parsed.Type)
	assert.Equal(t, 15, parsed.Start.Hour())
}

func TestParseEventRejectsBlankText(t *testing.T) {
	s, _ := newTestServer(t)

	for _, text := range []string{"", "   "} {
		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/parse-event",
			map[string]string{"text": text})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
		assert.Contains(t, rec.Body.String(), "请输入日程描述")
	}
}

func TestPanicRecovery(t *testing.T) {
	s, _ := newTestServer(t)
	s.router.PathPrefix("/api").Subrouter().
		HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "API_ERROR")
	assert.Contains(t, rec.Body.String(), "服务暂时不可用，请稍后重试")
}

func sampleEvent(id string, start time.Time) model.CalendarEvent {
	return model.CalendarEvent{
		ID:        id,
		Title:     "评审会",
		Start:     start,
		End:       start.Add(time.Hour),
		Type:      model.TypeMeeting,
		Color:     model.TypeMeeting.Color(),
		CreatedAt: start.Add(-time.Hour),
		UpdatedAt: start.Add(-time.Hour),
	}
}

func TestCreateEventReportsConflicts(t *testing.T) {
	s, st := newTestServer(t)
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.Local)
	require.NoError(t, st.Create(context.Background(), sampleEvent("evt_existing", start)))

	candidate := map[string]any{
		"title": "新会议",
		"start": time.Date(2024, 1, 2, 14, 0, 0, 0, time.Local).Format(time.RFC3339),
		"end":   time.Date(2024, 1, 2, 15, 0, 0, 0, time.Local).Format(time.RFC3339),
		"type":  "meeting",
	}
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/events", candidate)
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	var resp struct {
		Event struct {
			ID    string `json:"id"`
			Color string `json:"color"`
		} `json:"event"`
		Conflict struct {
			HasConflict bool   `json:"hasConflict"`
			Message     string `json:"message"`
		} `json:"conflict"`
	}
	require.NoError(t, json.Unmarshal(env["data"], &resp))
	assert.True(t, strings.HasPrefix(resp.Event.ID, "evt_"))
	assert.Equal(t, model.TypeMeeting.Color(), resp.Event.Color)
	assert.True(t, resp.Conflict.HasConflict)
	assert.Equal(t, "与「评审会」时间冲突", resp.Conflict.Message)

	stored, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCreateEventValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/events", map[string]any{
		"title": "没有时间",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestListEventsExpandsRecurrence(t *testing.T) {
	s, st := newTestServer(t)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	ev := sampleEvent("evt_daily", start)
	ev.Recurrence = &model.RecurrenceRule{Freq: model.FreqDaily, Interval: 1}
	require.NoError(t, st.Create(context.Background(), ev))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local).Format(time.RFC3339)
	to := time.Date(2024, 1, 3, 23, 59, 0, 0, time.Local).Format(time.RFC3339)
	rec := doJSON(t, s.Handler(), http.MethodGet,
		fmt.Sprintf("/api/events?from=%s&to=%s", url.QueryEscape(from), url.QueryEscape(to)), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var resp struct {
		Events []struct {
			ID             string `json:"id"`
			RecurrenceText string `json:"recurrenceText"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(env["data"], &resp))
	require.Len(t, resp.Events, 3)
	assert.Equal(t, "evt_daily", resp.Events[0].ID)
	assert.Equal(t, "evt_daily_instance_1", resp.Events[1].ID)
	assert.Equal(t, "每天", resp.Events[0].RecurrenceText)
}

func TestUpdateEvent(t *testing.T) {
	s, st := newTestServer(t)
	start := time.Date(2024, 1, 2, 14, 0, 0, 0, time.Local)
	require.NoError(t, st.Create(context.Background(), sampleEvent("evt_upd", start)))

	body := sampleEvent("evt_upd", start)
	body.Title = "改期的评审"
	rec := doJSON(t, s.Handler(), http.MethodPut, "/api/events/evt_upd", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "改期的评审")

	rec = doJSON(t, s.Handler(), http.MethodPut, "/api/events/evt_ghost", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestDeleteEventScopes(t *testing.T) {
	s, st := newTestServer(t)
	start := time.Date(2024, 1, 2, 14, 0, 0, 0, time.Local)

	ev := sampleEvent("evt_rec", start)
	ev.Recurrence = &model.RecurrenceRule{Freq: model.FreqDaily, Interval: 1}
	require.NoError(t, st.Create(context.Background(), ev))

	// future truncates the rule instead of deleting.
	at := start.AddDate(0, 0, 5).Format(time.RFC3339)
	rec := doJSON(t, s.Handler(), http.MethodDelete,
		"/api/events/evt_rec?scope=future&at="+url.QueryEscape(at), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := st.Get(context.Background(), "evt_rec")
	require.NoError(t, err)
	require.NotNil(t, got.Recurrence.Until)

	// single falls back to deleting the whole series.
	rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/events/evt_rec?scope=single", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = st.Get(context.Background(), "evt_rec")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/events/evt_rec", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/events/evt_rec?scope=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConflictsEndpoint(t *testing.T) {
	s, st := newTestServer(t)
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.Local)
	require.NoError(t, st.Create(context.Background(), sampleEvent("evt_busy", start)))

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/conflicts", map[string]any{
		"start": time.Date(2024, 1, 2, 14, 0, 0, 0, time.Local).Format(time.RFC3339),
		"end":   time.Date(2024, 1, 2, 15, 0, 0, 0, time.Local).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hasConflict":true`)
	assert.Contains(t, rec.Body.String(), "与「评审会」时间冲突")

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/conflicts", map[string]any{
		"start": time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local).Format(time.RFC3339),
		"end":   time.Date(2024, 1, 2, 10, 0, 0, 0, time.Local).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hasConflict":false`)
}

func TestExportICS(t *testing.T) {
	s, st := newTestServer(t)
	start := time.Date(2024, 1, 2, 14, 0, 0, 0, time.Local)
	require.NoError(t, st.Create(context.Background(), sampleEvent("evt_ics", start)))

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/export/ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ai-calendar-2024-01-01.ics")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "UID:evt_ics@ai-calendar")

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/events/evt_ics/ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUMMARY:评审会")

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/events/evt_nope/ics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := s.Handler()

	// /health stays open.
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
