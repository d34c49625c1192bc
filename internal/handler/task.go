package handler

import (
	"log/slog"
	"net/http"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
	"github.com/huzaifasad/backendforfamily/internal/task"
)

// TaskHandler serves both the parent and the child task routes; the manager
// decides what each role may do.
type TaskHandler struct {
	tasks *task.Manager
	files uploader
	notifier
	logger *slog.Logger
}

func NewTaskHandler(m *task.Manager, files uploader, hub broadcaster, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: m, files: files, notifier: notifier{hub}, logger: logger}
}

type createTaskRequest struct {
	Content            string         `json:"content"`
	Priority           model.Priority `json:"priority"`
	DueDate            string         `json:"due_date"`
	Recurrence         string         `json:"recurrence"`
	ChildID            int64          `json:"child_id"`
	AllChildren        bool           `json:"all_children"`
	RewardPoints       *int           `json:"reward_points"`
	PredefinedRewardID *int64         `json:"predefined_reward_id"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := task.CreateInput{
		Content:            req.Content,
		Priority:           req.Priority,
		Recurrence:         req.Recurrence,
		ChildID:            req.ChildID,
		AllChildren:        req.AllChildren,
		RewardPoints:       req.RewardPoints,
		PredefinedRewardID: req.PredefinedRewardID,
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		in.DueDate = &due
	}

	tasks, err := h.tasks.Create(p, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	for _, t := range tasks {
		h.notify(p.FamilyID, "task", "created", t.ID, map[string]any{"child_id": t.ChildID})
	}
	writeResource(w, http.StatusCreated, "Task created", "tasks", tasks)
}

// List returns the caller's tasks. Query parameters: child_id, and status,
// which also accepts "pending" for anything not done.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	childID, err := parseQueryID(r, "child_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	f := model.TaskFilter{ChildID: childID}
	switch status := r.URL.Query().Get("status"); {
	case status == "":
	case status == "pending":
		f.ExcludeStatus = model.StatusDone
	case model.TaskStatus(status).Valid():
		f.Status = model.TaskStatus(status)
	default:
		writeMessage(w, http.StatusBadRequest, "status must be one of to-do, in-progress, done, pending")
		return
	}

	tasks, err := h.tasks.List(p, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.tasks.Get(p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// completionResponse is the envelope for task edits; next_task and reward
// are present only when the edit completed the task.
type completionResponse struct {
	Message string `json:"message"`
	*store.CompletionResult
}

type updateTaskRequest struct {
	Content      *string           `json:"content"`
	Priority     *model.Priority   `json:"priority"`
	DueDate      *string           `json:"due_date"`
	ClearDueDate bool              `json:"clear_due_date"`
	Recurrence   *string           `json:"recurrence"`
	RewardPoints *int              `json:"reward_points"`
	Status       *model.TaskStatus `json:"status"`
}

// Update edits a task. Setting status to done completes it, and the response
// then carries the successor and reward as well.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := task.UpdateInput{
		Content:      req.Content,
		Priority:     req.Priority,
		ClearDueDate: req.ClearDueDate,
		Recurrence:   req.Recurrence,
		RewardPoints: req.RewardPoints,
		Status:       req.Status,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		in.DueDate = &due
	}

	t, res, err := h.tasks.Update(p, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res != nil {
		h.notifyCompletion(p, res)
		writeJSON(w, http.StatusOK, completionResponse{"Task completed", res})
		return
	}
	h.notify(p.FamilyID, "task", "updated", t.ID, map[string]any{"child_id": t.ChildID})
	writeJSON(w, http.StatusOK, completionResponse{"Task updated", &store.CompletionResult{Task: t}})
}

type statusRequest struct {
	Status model.TaskStatus `json:"status"`
}

// UpdateStatus moves a task between states; done runs the completion.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, res, err := h.tasks.SetStatus(p, id, req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res != nil {
		h.notifyCompletion(p, res)
		writeJSON(w, http.StatusOK, completionResponse{"Task completed", res})
		return
	}
	h.notify(p.FamilyID, "task", "updated", t.ID, map[string]any{"child_id": t.ChildID, "status": t.Status})
	writeJSON(w, http.StatusOK, completionResponse{"Task status updated", &store.CompletionResult{Task: t}})
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.tasks.Complete(p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifyCompletion(p, res)
	writeJSON(w, http.StatusOK, completionResponse{"Task completed", res})
}

func (h *TaskHandler) notifyCompletion(p auth.Principal, res *store.CompletionResult) {
	t := res.Task
	extra := map[string]any{"child_id": t.ChildID, "late_days": t.LateDays}
	h.notify(p.FamilyID, "task", "completed", t.ID, extra)
	if res.Successor != nil {
		h.notify(p.FamilyID, "task", "created", res.Successor.ID, map[string]any{"child_id": t.ChildID})
	}
	if res.Credit != nil {
		h.notify(p.FamilyID, "reward", "created", res.Credit.ID, map[string]any{"child_id": t.ChildID, "points": res.Credit.Points})
	}
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.tasks.AddComment(p, id, req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "task", "commented", id, nil)
	writeResource(w, http.StatusCreated, "Comment added", "comment", c)
}

// AddAttachment uploads the multipart "file" field and links it to the task.
func (h *TaskHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	// Check access before storing anything.
	if _, err := h.tasks.Get(p, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	url, ok := receiveUpload(w, r, h.files, h.logger, "file", "task_attachments")
	if !ok {
		return
	}
	t, err := h.tasks.AddAttachment(p, id, url)
	if err != nil {
		discard(r.Context(), h.files, h.logger, url)
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "task", "updated", id, nil)
	writeResource(w, http.StatusCreated, "Attachment added", "task", t)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.tasks.Delete(p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "task", "deleted", t.ID, map[string]any{"child_id": t.ChildID})
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCompleted removes one child's done tasks.
func (h *TaskHandler) DeleteCompleted(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	childID, err := parsePathID(r, "childId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.tasks.DeleteCompleted(p, childID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "task", "deleted", 0, map[string]any{"child_id": childID, "count": n})
	writeResource(w, http.StatusOK, "Completed tasks deleted", "deleted", n)
}

func (h *TaskHandler) DeleteAllDone(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	n, err := h.tasks.DeleteAllDone(p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if n > 0 {
		h.notify(p.FamilyID, "task", "deleted", 0, map[string]any{"count": n})
	}
	writeResource(w, http.StatusOK, "Done tasks deleted", "deleted", n)
}

// WeeklySummary groups this week's tasks by creation day.
func (h *TaskHandler) WeeklySummary(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	childID, err := parseQueryID(r, "child_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	summary, err := h.tasks.WeeklySummary(p, childID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SweepLate runs the late-task sweep immediately.
func (h *TaskHandler) SweepLate(w http.ResponseWriter, r *http.Request) {
	res, err := h.tasks.SweepLate(h.tasks.Now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
