package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"aical/internal/conflict"
	"aical/internal/ics"
	"aical/internal/model"
	"aical/internal/recur"
	"aical/internal/store"
)

// EventStore is the persistence surface the handlers need.
type EventStore interface {
	List(ctx context.Context) ([]model.CalendarEvent, error)
	Get(ctx context.Context, id string) (model.CalendarEvent, error)
	Create(ctx context.Context, ev model.CalendarEvent) error
	Update(ctx context.Context, ev model.CalendarEvent) error
	Delete(ctx context.Context, id string) error
	TruncateRecurrence(ctx context.Context, id string, cutoff time.Time) error
}

type parseRequest struct {
	Text          string `json:"text"`
	ReferenceTime string `json:"referenceTime,omitempty"`
}

func (s *Server) handleParseEvent(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "请输入日程描述")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "请输入日程描述")
		return
	}

	ref := s.now()
	if req.ReferenceTime != "" {
		t, err := time.Parse(time.RFC3339, req.ReferenceTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput,
				fmt.Sprintf("无法解析 referenceTime: %v", err))
			return
		}
		ref = t.In(time.Local)
	}

	parsed := s.parser.Parse(req.Text, ref)
	s.log.Debug().
		Str("input", req.Text).
		Float64("confidence", parsed.Meta.Confidence).
		Msg("parse-event request")
	writeData(w, http.StatusOK, parsed)
}

// eventDTO decorates a calendar event with the human-readable
// recurrence description for display clients.
type eventDTO struct {
	model.CalendarEvent
	RecurrenceText string `json:"recurrenceText,omitempty"`
}

func toDTO(ev model.CalendarEvent) eventDTO {
	dto := eventDTO{CalendarEvent: ev}
	if ev.Recurrence != nil {
		dto.RecurrenceText = recur.Describe(*ev.Recurrence)
	}
	return dto
}

type eventsResponse struct {
	Events     []eventDTO `json:"events"`
	RangeStart time.Time  `json:"rangeStart"`
	RangeEnd   time.Time  `json:"rangeEnd"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "无法解析 from 参数")
			return
		}
		from = t.In(time.Local)
	}
	to := from.AddDate(0, 0, s.cfg.HorizonDays)
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "无法解析 to 参数")
			return
		}
		to = t.In(time.Local)
	}

	events, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list events failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	occurrences := recur.ExpandAll(events, from, to)
	dtos := make([]eventDTO, 0, len(occurrences))
	for _, occ := range occurrences {
		dtos = append(dtos, toDTO(occ))
	}

	writeData(w, http.StatusOK, eventsResponse{
		Events:     dtos,
		RangeStart: from,
		RangeEnd:   to,
	})
}

type createResponse struct {
	Event    eventDTO        `json:"event"`
	Conflict conflictPayload `json:"conflict"`
}

type conflictPayload struct {
	HasConflict bool                  `json:"hasConflict"`
	Conflicts   []model.CalendarEvent `json:"conflicts"`
	Message     string                `json:"message,omitempty"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.CalendarEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "无法解析日程数据")
		return
	}
	if strings.TrimSpace(ev.Title) == "" || ev.Start.IsZero() || ev.End.IsZero() {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "日程需要标题和起止时间")
		return
	}

	now := s.now()
	if ev.ID == "" {
		ev.ID = "evt_" + uuid.NewString()[:8]
	}
	if !ev.Type.Valid() {
		ev.Type = model.TypeOther
	}
	if ev.Color == "" {
		ev.Color = ev.Type.Color()
	}
	if ev.Recurrence != nil {
		ev.Recurrence.Normalize()
	}
	ev.CreatedAt = now
	ev.UpdatedAt = now

	verdict, err := s.checkConflicts(r.Context(), conflict.Candidate{
		Start:    ev.Start,
		End:      ev.End,
		IsAllDay: ev.IsAllDay,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("conflict check failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	if err := s.store.Create(r.Context(), ev); err != nil {
		s.log.Error().Err(err).Str("event_id", ev.ID).Msg("create event failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	s.log.Info().Str("event_id", ev.ID).Str("title", ev.Title).Msg("event created")
	writeData(w, http.StatusCreated, createResponse{
		Event: toDTO(ev),
		Conflict: conflictPayload{
			HasConflict: verdict.HasConflict,
			Conflicts:   verdict.Conflicts,
			Message:     conflict.Message(verdict.Conflicts),
		},
	})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var ev model.CalendarEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "无法解析日程数据")
		return
	}
	ev.ID = id
	if !ev.Type.Valid() {
		ev.Type = model.TypeOther
	}
	if ev.Recurrence != nil {
		ev.Recurrence.Normalize()
	}

	if err := s.store.Update(r.Context(), ev); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "日程不存在")
			return
		}
		s.log.Error().Err(err).Str("event_id", id).Msg("update event failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	updated, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("reload after update failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}
	writeData(w, http.StatusOK, toDTO(updated))
}

type deleteResponse struct {
	Deleted bool   `json:"deleted"`
	Scope   string `json:"scope"`
}

// handleDeleteEvent removes an event. scope=future truncates the
// recurrence instead; scope=single has no exception-date storage to
// lean on and falls back to deleting the whole series.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}

	var err error
	switch scope {
	case "future":
		at := r.URL.Query().Get("at")
		if at == "" {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "scope=future 需要 at 参数")
			return
		}
		var cutoff time.Time
		cutoff, err = time.Parse(time.RFC3339, at)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "无法解析 at 参数")
			return
		}
		err = s.store.TruncateRecurrence(r.Context(), id, cutoff.In(time.Local))
	case "all", "single":
		err = s.store.Delete(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, codeInvalidInput, "未知的 scope 参数")
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "日程不存在")
			return
		}
		s.log.Error().Err(err).Str("event_id", id).Str("scope", scope).Msg("delete event failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	s.log.Info().Str("event_id", id).Str("scope", scope).Msg("event deleted")
	writeData(w, http.StatusOK, deleteResponse{Deleted: true, Scope: scope})
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	var candidate conflict.Candidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "无法解析时间区间")
		return
	}
	if candidate.Start.IsZero() || candidate.End.IsZero() {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "需要起止时间")
		return
	}

	verdict, err := s.checkConflicts(r.Context(), candidate)
	if err != nil {
		s.log.Error().Err(err).Msg("conflict check failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	writeData(w, http.StatusOK, conflictPayload{
		HasConflict: verdict.HasConflict,
		Conflicts:   verdict.Conflicts,
		Message:     conflict.Message(verdict.Conflicts),
	})
}

// checkConflicts tests a candidate interval against stored events,
// expanding recurring events over a window padded around the interval
// so their occurrences participate.
func (s *Server) checkConflicts(ctx context.Context, candidate conflict.Candidate) (conflict.Result, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		return conflict.Result{}, err
	}
	occurrences := recur.ExpandAll(events,
		candidate.Start.AddDate(0, 0, -1), candidate.End.AddDate(0, 0, 1))
	return conflict.Check(candidate, occurrences), nil
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list events for export failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	now := s.now()
	body, err := ics.Calendar(events, s.cfg.Timezone, now)
	if err != nil {
		s.log.Error().Err(err).Msg("ics export failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	writeCalendar(w, ics.Filename("ai-calendar", now), body)
}

func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ev, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "日程不存在")
			return
		}
		s.log.Error().Err(err).Str("event_id", id).Msg("load event for export failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	body, err := ics.SingleEvent(ev, s.cfg.Timezone, s.now())
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("ics export failed")
		writeError(w, http.StatusInternalServerError, codeAPIError, "服务暂时不可用，请稍后重试")
		return
	}

	writeCalendar(w, ics.EventFilename(ev), body)
}

func writeCalendar(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	// RFC 5987 encoding keeps Chinese filenames intact.
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
