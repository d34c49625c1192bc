package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var due, completed sql.NullTime
	var predefined sql.NullInt64
	err := scanner.Scan(&t.ID, &t.UserID, &t.ChildID, &t.Content, &t.Priority, &t.Status,
		&t.Recurrence, &due, &completed, &t.LateDays, &t.RewardPoints, &predefined,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	t.PredefinedRewardID = int64Ptr(predefined)
	t.Comments = []model.TaskComment{}
	t.Attachments = []string{}
	return &t, nil
}

const taskCols = `id, user_id, child_id, content, priority, status, recurrence, due_date,
	completed_at, late_days, reward_points, predefined_reward_id, created_at, updated_at`

func insertTask(ex execer, t *model.Task) (int64, error) {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	result, err := ex.Exec(
		`INSERT INTO tasks (user_id, child_id, content, priority, status, recurrence, due_date,
			reward_points, predefined_reward_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.ChildID, t.Content, t.Priority, t.Status, t.Recurrence, nullTime(t.DueDate),
		t.RewardPoints, nullInt64(t.PredefinedRewardID), created.UTC(), created.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return result.LastInsertId()
}

// CreateBatch inserts all tasks in one transaction; either every task is
// stored or none is.
func (s *TaskStore) CreateBatch(tasks []model.Task) ([]model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(tasks))
	for i := range tasks {
		id, err := insertTask(tx, &tasks[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	created := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		created = append(created, *t)
	}
	return created, nil
}

// GetByID returns the task with its comments and attachments, or nil if it
// does not exist.
func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	tasks := []model.Task{*t}
	if err := s.loadDetails(tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// List returns tasks matching the filter, newest first.
func (s *TaskStore) List(f model.TaskFilter) ([]model.Task, error) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ChildID != 0 {
		where = append(where, "child_id = ?")
		args = append(args, f.ChildID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ExcludeStatus != "" {
		where = append(where, "status != ?")
		args = append(args, f.ExcludeStatus)
	}
	if f.CreatedFrom != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		where = append(where, "created_at < ?")
		args = append(args, f.CreatedTo.UTC())
	}

	query := `SELECT ` + taskCols + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	rows.Close()

	if err := s.loadDetails(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStore) loadDetails(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[int64]int, len(tasks))
	placeholders := make([]string, len(tasks))
	args := make([]any, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		placeholders[i] = "?"
		args[i] = t.ID
	}
	in := strings.Join(placeholders, ", ")

	rows, err := s.db.Query(`SELECT id, task_id, body, created_at FROM task_comments WHERE task_id IN (`+in+`) ORDER BY id ASC`, args...)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	for rows.Next() {
		var c model.TaskComment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Body, &c.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan comment: %w", err)
		}
		i := index[c.TaskID]
		tasks[i].Comments = append(tasks[i].Comments, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("list comments: %w", err)
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT task_id, url FROM task_attachments WHERE task_id IN (`+in+`) ORDER BY id ASC`, args...)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID int64
		var url string
		if err := rows.Scan(&taskID, &url); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		i := index[taskID]
		tasks[i].Attachments = append(tasks[i].Attachments, url)
	}
	return rows.Err()
}

// Update rewrites the editable fields of a task that is not yet done.
// It returns ErrStale when the task is already done.
func (s *TaskStore) Update(t *model.Task) (*model.Task, error) {
	if err := updateTask(s.db, t); err != nil {
		return nil, err
	}
	return s.GetByID(t.ID)
}

func updateTask(ex execer, t *model.Task) error {
	result, err := ex.Exec(
		`UPDATE tasks SET content = ?, priority = ?, status = ?, recurrence = ?, due_date = ?, late_days = ?,
			reward_points = ?, predefined_reward_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'done'`,
		t.Content, t.Priority, t.Status, t.Recurrence, nullTime(t.DueDate), t.LateDays,
		t.RewardPoints, nullInt64(t.PredefinedRewardID), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrStale
	}
	return nil
}

// Completion describes everything that happens when a task is marked done.
type Completion struct {
	TaskID      int64
	CompletedAt time.Time
	LateDays    int
	// Edit, when set, holds field changes written in the same transaction
	// before the task is marked done.
	Edit *model.Task
	// Successor is the next occurrence of a recurring task, nil otherwise.
	Successor *model.Task
	// Credit is the ledger entry earned by the task, nil when it carries no points.
	Credit *model.Reward
}

type CompletionResult struct {
	Task      *model.Task   `json:"task"`
	Successor *model.Task   `json:"next_task,omitempty"`
	Credit    *model.Reward `json:"reward,omitempty"`
}

// Complete marks the task done, stores its successor and credits its reward
// in a single transaction. The status change is conditional on the task not
// being done already; if another request completed it first, Complete
// returns ErrStale and nothing is written.
func (s *TaskStore) Complete(c Completion) (*CompletionResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if c.Edit != nil {
		if err := updateTask(tx, c.Edit); err != nil {
			return nil, err
		}
	}

	result, err := tx.Exec(
		`UPDATE tasks SET status = 'done', completed_at = ?, late_days = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'done'`,
		c.CompletedAt.UTC(), c.LateDays, c.TaskID,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrStale
	}

	var successorID, creditID int64
	if c.Successor != nil {
		if successorID, err = insertTask(tx, c.Successor); err != nil {
			return nil, err
		}
	}
	if c.Credit != nil {
		taskID := c.TaskID
		c.Credit.TaskID = &taskID
		if creditID, err = insertReward(tx, c.Credit); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	res := &CompletionResult{}
	if res.Task, err = s.GetByID(c.TaskID); err != nil {
		return nil, err
	}
	if successorID != 0 {
		if res.Successor, err = s.GetByID(successorID); err != nil {
			return nil, err
		}
	}
	if creditID != 0 {
		if res.Credit, err = getReward(s.db, creditID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *TaskStore) AddComment(taskID int64, body string, at time.Time) (*model.TaskComment, error) {
	result, err := s.db.Exec(`INSERT INTO task_comments (task_id, body, created_at) VALUES (?, ?, ?)`, taskID, body, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	c := &model.TaskComment{}
	err = s.db.QueryRow(`SELECT id, task_id, body, created_at FROM task_comments WHERE id = ?`, id).
		Scan(&c.ID, &c.TaskID, &c.Body, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (s *TaskStore) AddAttachment(taskID int64, url string) error {
	_, err := s.db.Exec(`INSERT INTO task_attachments (task_id, url) VALUES (?, ?)`, taskID, url)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// DeleteDone removes done tasks of a parent, optionally limited to one child.
// It returns the number of tasks removed.
func (s *TaskStore) DeleteDone(userID, childID int64) (int64, error) {
	query := `DELETE FROM tasks WHERE user_id = ? AND status = 'done'`
	args := []any{userID}
	if childID != 0 {
		query += ` AND child_id = ?`
		args = append(args, childID)
	}
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete done tasks: %w", err)
	}
	return result.RowsAffected()
}

// ListOverdue returns to-do tasks whose due date is before now.
// Comments and attachments are not loaded.
func (s *TaskStore) ListOverdue(now time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE status = 'to-do' AND due_date IS NOT NULL AND due_date < ? ORDER BY id ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// SetLateDays records lateness on a task that is still to-do. It reports
// whether the row changed.
func (s *TaskStore) SetLateDays(id int64, lateDays int) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET late_days = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'to-do' AND late_days != ?`,
		lateDays, id, lateDays,
	)
	if err != nil {
		return false, fmt.Errorf("set late days: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
