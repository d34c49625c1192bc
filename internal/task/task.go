// Package task owns the task lifecycle: creation (including assigning one
// task to every child of a parent), status changes, completion with lateness
// and recurrence, reward crediting, and the late-task sweep.
package task

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/huzaifasad/backendforfamily/internal/apperr"
	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/recurrence"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

const (
	MaxContentLength = 500
	MaxCommentLength = 200

	CompletionRewardTitle       = "Task Completion Reward"
	CompletionRewardDescription = "Reward for completing tasks."
)

type Manager struct {
	tasks         *store.TaskStore
	children      *store.ChildStore
	rewards       *store.RewardStore
	defaultPoints int
	now           func() time.Time
	logger        *slog.Logger
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(tasks *store.TaskStore, children *store.ChildStore, rewards *store.RewardStore, defaultPoints int, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		tasks:         tasks,
		children:      children,
		rewards:       rewards,
		defaultPoints: defaultPoints,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LateDays is the number of whole days completion trails the due date.
// It is zero when there is no due date or the task is not late.
func LateDays(due *time.Time, at time.Time) int {
	if due == nil || !at.After(*due) {
		return 0
	}
	return int(at.Sub(*due) / (24 * time.Hour))
}

type CreateInput struct {
	Content            string
	Priority           model.Priority
	DueDate            *time.Time
	Recurrence         string
	ChildID            int64
	AllChildren        bool
	RewardPoints       *int
	PredefinedRewardID *int64
}

// Create stores one to-do task per target child: the named child, or every
// child of the caller when AllChildren is set. All tasks are written in one
// transaction.
func (m *Manager) Create(p auth.Principal, in CreateInput) ([]model.Task, error) {
	if !p.IsParent() {
		return nil, apperr.Forbidden("only parents can create tasks")
	}

	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	if in.Priority == "" {
		return nil, apperr.Validation("priority is required")
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("priority must be one of high, medium, low")
	}
	freq, err := recurrence.Parse(in.Recurrence)
	if err != nil {
		return nil, apperr.Validation("recurrence must be one of daily, weekly, monthly, none")
	}
	points := m.defaultPoints
	if in.RewardPoints != nil {
		if *in.RewardPoints < 0 {
			return nil, apperr.Validation("reward points must not be negative")
		}
		points = *in.RewardPoints
	}
	if in.PredefinedRewardID != nil {
		item, err := m.rewards.GetCatalogItem(*in.PredefinedRewardID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, apperr.Validation("predefined reward %d does not exist", *in.PredefinedRewardID)
		}
	}

	targets, err := m.targets(p, in)
	if err != nil {
		return nil, err
	}

	now := m.now()
	batch := make([]model.Task, 0, len(targets))
	for _, childID := range targets {
		batch = append(batch, model.Task{
			UserID:             p.ID,
			ChildID:            childID,
			Content:            content,
			Priority:           in.Priority,
			Status:             model.StatusToDo,
			Recurrence:         freq.String(),
			DueDate:            in.DueDate,
			RewardPoints:       points,
			PredefinedRewardID: in.PredefinedRewardID,
			CreatedAt:          now,
		})
	}

	created, err := m.tasks.CreateBatch(batch)
	if err != nil {
		return nil, err
	}
	m.logger.Info("tasks created", "parent_id", p.ID, "count", len(created), "broadcast", in.AllChildren)
	return created, nil
}

func (m *Manager) targets(p auth.Principal, in CreateInput) ([]int64, error) {
	if in.AllChildren {
		children, err := m.children.ListByParent(p.ID)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, apperr.EmptyInput("no children found to assign the task to")
		}
		ids := make([]int64, len(children))
		for i, c := range children {
			ids[i] = c.ID
		}
		return ids, nil
	}

	if in.ChildID == 0 {
		return nil, apperr.Validation("child_id is required unless all_children is set")
	}
	if err := m.requireOwnChild(p, in.ChildID); err != nil {
		return nil, err
	}
	return []int64{in.ChildID}, nil
}

// requireOwnChild fails with ErrForbidden unless the child exists and belongs
// to the caller. A missing child is reported the same way as someone else's.
func (m *Manager) requireOwnChild(p auth.Principal, childID int64) error {
	child, err := m.children.GetByID(childID)
	if err != nil {
		return err
	}
	if child == nil || child.ParentID != p.ID {
		return apperr.Forbidden("child not found or not yours")
	}
	return nil
}

func validateContent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(s) > MaxContentLength {
		return "", apperr.Validation("content must be at most %d characters", MaxContentLength)
	}
	return s, nil
}

// Get returns a task the caller may see: their own as a parent, assigned to
// them as a child, or any task for an admin.
func (m *Manager) Get(p auth.Principal, id int64) (*model.Task, error) {
	t, err := m.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("task not found")
	}
	if !canSee(p, t) {
		return nil, apperr.Forbidden("not allowed to access this task")
	}
	return t, nil
}

func canSee(p auth.Principal, t *model.Task) bool {
	return p.IsAdmin() || canModify(p, t)
}

func canModify(p auth.Principal, t *model.Task) bool {
	switch p.Role {
	case model.RoleParent:
		return t.UserID == p.ID
	case model.RoleChild:
		return t.ChildID == p.ID
	}
	return false
}

// List returns the caller's tasks narrowed by f. Parents may narrow by one of
// their children; children only ever see their own tasks.
func (m *Manager) List(p auth.Principal, f model.TaskFilter) ([]model.Task, error) {
	switch {
	case p.IsParent():
		f.UserID = p.ID
		if f.ChildID != 0 {
			if err := m.requireOwnChild(p, f.ChildID); err != nil {
				return nil, err
			}
		}
	case p.IsChild():
		f.UserID = 0
		f.ChildID = p.ID
	case p.IsAdmin():
	default:
		return nil, apperr.Forbidden("not allowed to list tasks")
	}
	return m.tasks.List(f)
}

type UpdateInput struct {
	Content      *string
	Priority     *model.Priority
	DueDate      *time.Time
	ClearDueDate bool
	Recurrence   *string
	RewardPoints *int
	Status       *model.TaskStatus
}

// Update edits a task owned by the calling parent. Moving the status to done
// runs the full completion.
func (m *Manager) Update(p auth.Principal, id int64, in UpdateInput) (*model.Task, *store.CompletionResult, error) {
	if !p.IsParent() {
		return nil, nil, apperr.Forbidden("only parents can edit tasks")
	}
	t, err := m.Get(p, id)
	if err != nil {
		return nil, nil, err
	}
	if t.Status == model.StatusDone {
		return nil, nil, apperr.Conflict("task is already done")
	}

	if in.Content != nil {
		if t.Content, err = validateContent(*in.Content); err != nil {
			return nil, nil, err
		}
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, nil, apperr.Validation("priority must be one of high, medium, low")
		}
		t.Priority = *in.Priority
	}
	if in.Recurrence != nil {
		freq, err := recurrence.Parse(*in.Recurrence)
		if err != nil {
			return nil, nil, apperr.Validation("recurrence must be one of daily, weekly, monthly, none")
		}
		t.Recurrence = freq.String()
	}
	if in.RewardPoints != nil {
		if *in.RewardPoints < 0 {
			return nil, nil, apperr.Validation("reward points must not be negative")
		}
		t.RewardPoints = *in.RewardPoints
	}
	switch {
	case in.ClearDueDate:
		t.DueDate = nil
		t.LateDays = 0
	case in.DueDate != nil:
		t.DueDate = in.DueDate
		t.LateDays = LateDays(t.DueDate, m.now())
	}

	completing := false
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, nil, apperr.Validation("status must be one of to-do, in-progress, done")
		}
		if *in.Status == model.StatusDone {
			completing = true
		} else {
			t.Status = *in.Status
		}
	}

	if completing {
		res, err := m.complete(t, true)
		if err != nil {
			return nil, nil, err
		}
		return res.Task, res, nil
	}

	updated, err := m.tasks.Update(t)
	if errors.Is(err, store.ErrStale) {
		return nil, nil, apperr.Conflict("task is already done")
	}
	if err != nil {
		return nil, nil, err
	}
	return updated, nil, nil
}

// SetStatus moves a task between to-do and in-progress, or completes it.
// Both the owning parent and the assigned child may do this.
func (m *Manager) SetStatus(p auth.Principal, id int64, status model.TaskStatus) (*model.Task, *store.CompletionResult, error) {
	if !status.Valid() {
		return nil, nil, apperr.Validation("status must be one of to-do, in-progress, done")
	}
	if status == model.StatusDone {
		res, err := m.Complete(p, id)
		if err != nil {
			return nil, nil, err
		}
		return res.Task, res, nil
	}

	t, err := m.loadForChange(p, id)
	if err != nil {
		return nil, nil, err
	}
	t.Status = status
	updated, err := m.tasks.Update(t)
	if errors.Is(err, store.ErrStale) {
		return nil, nil, apperr.Conflict("task is already done")
	}
	if err != nil {
		return nil, nil, err
	}
	return updated, nil, nil
}

func (m *Manager) loadForChange(p auth.Principal, id int64) (*model.Task, error) {
	t, err := m.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("task not found")
	}
	if !canModify(p, t) {
		return nil, apperr.Forbidden("not allowed to modify this task")
	}
	if t.Status == model.StatusDone {
		return nil, apperr.Conflict("task is already done")
	}
	return t, nil
}

// Complete marks a task done. Lateness is measured against the due date at
// this instant. A recurring task gets a to-do successor whose due date is one
// step after the completed task's due date (or after now when it had none),
// and the task's reward points are credited to the child. All of it is
// committed together; completing a task twice fails with ErrConflict.
func (m *Manager) Complete(p auth.Principal, id int64) (*store.CompletionResult, error) {
	t, err := m.loadForChange(p, id)
	if err != nil {
		return nil, err
	}
	return m.complete(t, false)
}

// complete finishes t as loaded. With edited set, t's field changes are
// written in the completion transaction, so they are lost if it fails.
func (m *Manager) complete(t *model.Task, edited bool) (*store.CompletionResult, error) {
	now := m.now()
	c := store.Completion{
		TaskID:      t.ID,
		CompletedAt: now,
		LateDays:    LateDays(t.DueDate, now),
	}
	if edited {
		c.Edit = t
	}

	freq, err := recurrence.Parse(t.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", t.ID, err)
	}
	if freq.Recurring() {
		base := now
		if t.DueDate != nil {
			base = *t.DueDate
		}
		next := freq.Next(base)
		c.Successor = &model.Task{
			UserID:             t.UserID,
			ChildID:            t.ChildID,
			Content:            t.Content,
			Priority:           t.Priority,
			Status:             model.StatusToDo,
			Recurrence:         t.Recurrence,
			DueDate:            &next,
			RewardPoints:       t.RewardPoints,
			PredefinedRewardID: t.PredefinedRewardID,
			CreatedAt:          now,
		}
	}
	if t.RewardPoints > 0 {
		c.Credit = &model.Reward{
			ChildID:     t.ChildID,
			Title:       CompletionRewardTitle,
			Description: CompletionRewardDescription,
			Points:      t.RewardPoints,
		}
	}

	res, err := m.tasks.Complete(c)
	if errors.Is(err, store.ErrStale) {
		return nil, apperr.Conflict("task is already done")
	}
	if err != nil {
		return nil, err
	}

	attrs := []any{"task_id", t.ID, "child_id", t.ChildID, "late_days", c.LateDays}
	if res.Successor != nil {
		attrs = append(attrs, "successor_id", res.Successor.ID, "recurrence", freq.Describe())
	}
	if res.Credit != nil {
		attrs = append(attrs, "points", res.Credit.Points)
	}
	m.logger.Info("task completed", attrs...)
	return res, nil
}

// AddComment appends a comment. The owning parent and the assigned child may
// comment, including on done tasks.
func (m *Manager) AddComment(p auth.Principal, id int64, body string) (*model.TaskComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("comment is required")
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return nil, apperr.Validation("comment must be at most %d characters", MaxCommentLength)
	}

	t, err := m.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("task not found")
	}
	if !canModify(p, t) {
		return nil, apperr.Forbidden("not allowed to comment on this task")
	}
	return m.tasks.AddComment(id, body, m.now())
}

// AddAttachment records an uploaded file URL on a task.
func (m *Manager) AddAttachment(p auth.Principal, id int64, url string) (*model.Task, error) {
	t, err := m.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("task not found")
	}
	if !canModify(p, t) {
		return nil, apperr.Forbidden("not allowed to modify this task")
	}
	if err := m.tasks.AddAttachment(id, url); err != nil {
		return nil, err
	}
	return m.tasks.GetByID(id)
}

// Delete removes a task owned by the calling parent.
func (m *Manager) Delete(p auth.Principal, id int64) (*model.Task, error) {
	if !p.IsParent() {
		return nil, apperr.Forbidden("only parents can delete tasks")
	}
	t, err := m.Get(p, id)
	if err != nil {
		return nil, err
	}
	if err := m.tasks.Delete(id); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteCompleted removes the done tasks of one of the caller's children.
func (m *Manager) DeleteCompleted(p auth.Principal, childID int64) (int64, error) {
	if !p.IsParent() {
		return 0, apperr.Forbidden("only parents can delete tasks")
	}
	if err := m.requireOwnChild(p, childID); err != nil {
		return 0, err
	}
	n, err := m.tasks.DeleteDone(p.ID, childID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, apperr.NotFound("no completed tasks found for this child")
	}
	return n, nil
}

// DeleteAllDone removes every done task of the caller.
func (m *Manager) DeleteAllDone(p auth.Principal) (int64, error) {
	if !p.IsParent() {
		return 0, apperr.Forbidden("only parents can delete tasks")
	}
	return m.tasks.DeleteDone(p.ID, 0)
}

// WeekStart returns midnight of the Sunday starting the week containing t.
func WeekStart(t time.Time) time.Time {
	y, mo, d := t.Date()
	day := time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// WeeklySummary groups the tasks created this week (Sunday to Saturday) by
// creation date, keyed YYYY-MM-DD. Parents may narrow to one child.
func (m *Manager) WeeklySummary(p auth.Principal, childID int64) (map[string][]model.Task, error) {
	now := m.now()
	from := WeekStart(now)
	to := from.AddDate(0, 0, 7)

	tasks, err := m.List(p, model.TaskFilter{ChildID: childID, CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		return nil, err
	}

	summary := make(map[string][]model.Task)
	for _, t := range tasks {
		day := t.CreatedAt.In(now.Location()).Format(time.DateOnly)
		summary[day] = append(summary[day], t)
	}
	return summary, nil
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// SweepLate records lateDays on every overdue to-do task as of now. Running it
// again with the same now changes nothing.
func (m *Manager) SweepLate(now time.Time) (SweepResult, error) {
	overdue, err := m.tasks.ListOverdue(now)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Scanned: len(overdue)}
	for _, t := range overdue {
		changed, err := m.tasks.SetLateDays(t.ID, LateDays(t.DueDate, now))
		if err != nil {
			return res, err
		}
		if changed {
			res.Updated++
		}
	}
	m.logger.Info("late sweep finished", "scanned", res.Scanned, "updated", res.Updated)
	return res, nil
}

// Now exposes the manager's clock to callers that schedule the sweep.
func (m *Manager) Now() time.Time {
	return m.now()
}
