package store

import (
	"errors"
	"testing"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

func newTask(userID, childID int64, content string) model.Task {
	return model.Task{
		UserID:     userID,
		ChildID:    childID,
		Content:    content,
		Priority:   model.PriorityMedium,
		Status:     model.StatusToDo,
		Recurrence: "none",
	}
}

func TestTaskCreateBatch(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 3)
	ts := NewTaskStore(db)

	var batch []model.Task
	for _, k := range kids {
		batch = append(batch, newTask(parent.ID, k.ID, "Feed the cat"))
	}
	created, err := ts.CreateBatch(batch)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created = %d, want 3", len(created))
	}
	for i, task := range created {
		if task.ChildID != kids[i].ID {
			t.Errorf("task %d child = %d, want %d", i, task.ChildID, kids[i].ID)
		}
		if task.Status != model.StatusToDo {
			t.Errorf("task %d status = %q, want to-do", i, task.Status)
		}
		if task.Comments == nil || task.Attachments == nil {
			t.Errorf("task %d comments/attachments should be empty, not nil", i)
		}
	}
}

func TestTaskCreateBatchAtomic(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)

	good := newTask(parent.ID, kids[0].ID, "ok")
	bad := newTask(parent.ID, 9999, "missing child")
	if _, err := ts.CreateBatch([]model.Task{good, bad}); err == nil {
		t.Fatal("expected error for missing child")
	}

	all, err := ts.List(model.TaskFilter{UserID: parent.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("tasks = %d, want 0 after failed batch", len(all))
	}
}

func TestTaskListFilters(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 2)
	ts := NewTaskStore(db)

	a := newTask(parent.ID, kids[0].ID, "a")
	b := newTask(parent.ID, kids[1].ID, "b")
	c := newTask(parent.ID, kids[1].ID, "c")
	c.Status = model.StatusInProgress
	if _, err := ts.CreateBatch([]model.Task{a, b, c}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name   string
		filter model.TaskFilter
		want   int
	}{
		{"all", model.TaskFilter{UserID: parent.ID}, 3},
		{"child", model.TaskFilter{ChildID: kids[1].ID}, 2},
		{"status", model.TaskFilter{UserID: parent.ID, Status: model.StatusInProgress}, 1},
		{"exclude done", model.TaskFilter{UserID: parent.ID, ExcludeStatus: model.StatusDone}, 3},
		{"other parent", model.TaskFilter{UserID: parent.ID + 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ts.List(tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestTaskCompleteWithSuccessorAndCredit(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)
	rs := NewRewardStore(db)

	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task := newTask(parent.ID, kids[0].ID, "Clean room")
	task.Recurrence = "weekly"
	task.DueDate = &due
	task.RewardPoints = 15
	created, err := ts.CreateBatch([]model.Task{task})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created[0].ID

	next := due.AddDate(0, 0, 7)
	successor := task
	successor.DueDate = &next
	completedAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	res, err := ts.Complete(Completion{
		TaskID:      id,
		CompletedAt: completedAt,
		LateDays:    1,
		Successor:   &successor,
		Credit:      &model.Reward{ChildID: kids[0].ID, Title: "Task Completion Reward", Points: 15},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Task.Status != model.StatusDone {
		t.Errorf("status = %q, want done", res.Task.Status)
	}
	if res.Task.CompletedAt == nil || !res.Task.CompletedAt.Equal(completedAt) {
		t.Errorf("completed_at = %v, want %v", res.Task.CompletedAt, completedAt)
	}
	if res.Task.LateDays != 1 {
		t.Errorf("late_days = %d, want 1", res.Task.LateDays)
	}
	if res.Successor == nil {
		t.Fatal("expected successor")
	}
	if res.Successor.DueDate == nil || !res.Successor.DueDate.Equal(next) {
		t.Errorf("successor due = %v, want %v", res.Successor.DueDate, next)
	}
	if res.Credit == nil || res.Credit.TaskID == nil || *res.Credit.TaskID != id {
		t.Errorf("credit = %+v, want linked to task %d", res.Credit, id)
	}

	balance, err := rs.GetPointBalance(kids[0].ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 15 {
		t.Errorf("balance = %d, want 15", balance.Balance)
	}
}

func TestTaskCompleteTwiceIsStale(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)
	rs := NewRewardStore(db)

	created, _ := ts.CreateBatch([]model.Task{newTask(parent.ID, kids[0].ID, "once")})
	c := Completion{
		TaskID:      created[0].ID,
		CompletedAt: time.Now(),
		Credit:      &model.Reward{ChildID: kids[0].ID, Title: "Task Completion Reward", Points: 10},
	}
	if _, err := ts.Complete(c); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	c.Credit = &model.Reward{ChildID: kids[0].ID, Title: "Task Completion Reward", Points: 10}
	if _, err := ts.Complete(c); !errors.Is(err, ErrStale) {
		t.Fatalf("second complete err = %v, want ErrStale", err)
	}

	balance, _ := rs.GetPointBalance(kids[0].ID)
	if balance.Balance != 10 {
		t.Errorf("balance = %d, want 10 (credited once)", balance.Balance)
	}
}

func TestTaskUpdateRejectsDone(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)

	created, _ := ts.CreateBatch([]model.Task{newTask(parent.ID, kids[0].ID, "x")})
	task := created[0]
	task.Content = "y"
	task.Status = model.StatusInProgress
	updated, err := ts.Update(&task)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "y" || updated.Status != model.StatusInProgress {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := ts.Complete(Completion{TaskID: task.ID, CompletedAt: time.Now()}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := ts.Update(&task); !errors.Is(err, ErrStale) {
		t.Errorf("update done task err = %v, want ErrStale", err)
	}
}

func TestTaskCompleteWithEdit(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)

	created, _ := ts.CreateBatch([]model.Task{newTask(parent.ID, kids[0].ID, "x")})
	task := created[0]
	task.Content = "y"
	res, err := ts.Complete(Completion{TaskID: task.ID, CompletedAt: time.Now(), Edit: &task})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Task.Content != "y" || res.Task.Status != model.StatusDone {
		t.Errorf("task = %+v", res.Task)
	}

	task.Content = "z"
	if _, err := ts.Complete(Completion{TaskID: task.ID, CompletedAt: time.Now(), Edit: &task}); !errors.Is(err, ErrStale) {
		t.Fatalf("complete done task err = %v, want ErrStale", err)
	}
	got, _ := ts.GetByID(task.ID)
	if got.Content != "y" {
		t.Errorf("content = %q, want y", got.Content)
	}
}

func TestTaskCommentsAndAttachments(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)

	created, _ := ts.CreateBatch([]model.Task{newTask(parent.ID, kids[0].ID, "x")})
	id := created[0].ID

	for _, body := range []string{"first", "second"} {
		if _, err := ts.AddComment(id, body, time.Now()); err != nil {
			t.Fatalf("add comment: %v", err)
		}
	}
	if err := ts.AddAttachment(id, "https://cdn.example.com/a.png"); err != nil {
		t.Fatalf("add attachment: %v", err)
	}

	got, err := ts.GetByID(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Comments) != 2 || got.Comments[0].Body != "first" || got.Comments[1].Body != "second" {
		t.Errorf("comments = %+v, want [first second]", got.Comments)
	}
	if len(got.Attachments) != 1 {
		t.Errorf("attachments = %v, want 1", got.Attachments)
	}
}

func TestTaskDeleteDone(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 2)
	ts := NewTaskStore(db)

	created, _ := ts.CreateBatch([]model.Task{
		newTask(parent.ID, kids[0].ID, "a"),
		newTask(parent.ID, kids[0].ID, "b"),
		newTask(parent.ID, kids[1].ID, "c"),
	})
	for _, task := range created {
		if _, err := ts.Complete(Completion{TaskID: task.ID, CompletedAt: time.Now()}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	n, err := ts.DeleteDone(parent.ID, kids[0].ID)
	if err != nil {
		t.Fatalf("delete done: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	n, err = ts.DeleteDone(parent.ID, 0)
	if err != nil {
		t.Fatalf("delete all done: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestTaskOverdueAndLateDays(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 1)
	ts := NewTaskStore(db)

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-50 * time.Hour)
	future := now.Add(24 * time.Hour)

	overdue := newTask(parent.ID, kids[0].ID, "overdue")
	overdue.DueDate = &past
	upcoming := newTask(parent.ID, kids[0].ID, "upcoming")
	upcoming.DueDate = &future
	undated := newTask(parent.ID, kids[0].ID, "undated")
	started := newTask(parent.ID, kids[0].ID, "started")
	started.DueDate = &past
	started.Status = model.StatusInProgress

	if _, err := ts.CreateBatch([]model.Task{overdue, upcoming, undated, started}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := ts.ListOverdue(now)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(list) != 1 || list[0].Content != "overdue" {
		t.Fatalf("overdue = %+v, want only the overdue task", list)
	}

	changed, err := ts.SetLateDays(list[0].ID, 2)
	if err != nil || !changed {
		t.Fatalf("set late days = %v, %v; want true", changed, err)
	}
	changed, err = ts.SetLateDays(list[0].ID, 2)
	if err != nil || changed {
		t.Fatalf("repeat set late days = %v, %v; want false", changed, err)
	}
}
