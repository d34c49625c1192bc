package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
	"github.com/huzaifasad/backendforfamily/internal/task"
)

const clockLayout = "15:04"

// CalendarHandler serves the family calendar. Events belong to the family,
// so children read their parent's calendar.
type CalendarHandler struct {
	events *store.EventStore
	now    func() time.Time
	notifier
	logger *slog.Logger
}

func NewCalendarHandler(es *store.EventStore, now func() time.Time, hub broadcaster, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{events: es, now: now, notifier: notifier{hub}, logger: logger}
}

type eventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Category    *string `json:"category"`
}

// apply merges the non-nil fields into e and validates the result.
func (req eventRequest) apply(e *model.Event) string {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&e.Title, req.Title)
	set(&e.Description, req.Description)
	set(&e.Date, req.Date)
	set(&e.StartTime, req.StartTime)
	set(&e.EndTime, req.EndTime)
	set(&e.Category, req.Category)

	if e.Title == "" {
		return "title is required"
	}
	if _, err := time.Parse(time.DateOnly, e.Date); err != nil {
		return "date must be YYYY-MM-DD"
	}
	start, err := time.Parse(clockLayout, e.StartTime)
	if err != nil {
		return "start_time must be HH:MM"
	}
	if e.EndTime != "" {
		end, err := time.Parse(clockLayout, e.EndTime)
		if err != nil {
			return "end_time must be HH:MM"
		}
		if end.Before(start) {
			return "end_time must not be before start_time"
		}
	}
	return ""
}

func (h *CalendarHandler) writeEvents(w http.ResponseWriter, r *http.Request, events []model.Event, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// List returns all events, or those between the from and to query dates.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" {
		events, err := h.events.ListAll(p.FamilyID)
		h.writeEvents(w, r, events, err)
		return
	}
	if _, err := time.Parse(time.DateOnly, from); err != nil {
		writeMessage(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse(time.DateOnly, to); err != nil {
		writeMessage(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	events, err := h.events.ListRange(p.FamilyID, from, to)
	h.writeEvents(w, r, events, err)
}

// Upcoming returns events after today.
func (h *CalendarHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	events, err := h.events.ListAfter(p.FamilyID, h.now().Format(time.DateOnly))
	h.writeEvents(w, r, events, err)
}

// Week returns events from Sunday to Saturday of the current week.
func (h *CalendarHandler) Week(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	start := task.WeekStart(h.now())
	end := start.AddDate(0, 0, 6)
	events, err := h.events.ListRange(p.FamilyID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	h.writeEvents(w, r, events, err)
}

func (h *CalendarHandler) Today(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	today := h.now().Format(time.DateOnly)
	events, err := h.events.ListRange(p.FamilyID, today, today)
	h.writeEvents(w, r, events, err)
}

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e := model.Event{UserID: p.FamilyID}
	if msg := req.apply(&e); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	created, err := h.events.Create(e)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "event", "created", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *CalendarHandler) ownEvent(w http.ResponseWriter, r *http.Request) (*model.Event, bool) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	e, err := h.events.GetByID(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if e == nil || e.UserID != p.FamilyID {
		writeMessage(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return e, true
}

// Update applies a partial edit.
func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.apply(e); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	updated, err := h.events.Update(*e)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(e.UserID, "event", "updated", e.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	if err := h.events.Delete(e.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(e.UserID, "event", "deleted", e.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}
