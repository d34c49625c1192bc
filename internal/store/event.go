package store

import (
	"database/sql"
	"fmt"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	err := scanner.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.Date, &e.StartTime, &e.EndTime,
		&e.Category, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const eventCols = `id, user_id, title, description, date, start_time, end_time, category, created_at, updated_at`

func (s *EventStore) Create(e model.Event) (*model.Event, error) {
	result, err := s.db.Exec(
		`INSERT INTO events (user_id, title, description, date, start_time, end_time, category) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Title, e.Description, e.Date, e.StartTime, e.EndTime, e.Category,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventStore) Update(e model.Event) (*model.Event, error) {
	_, err := s.db.Exec(
		`UPDATE events SET title = ?, description = ?, date = ?, start_time = ?, end_time = ?, category = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		e.Title, e.Description, e.Date, e.StartTime, e.EndTime, e.Category, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListAll returns every event of a user in chronological order.
func (s *EventStore) ListAll(userID int64) ([]model.Event, error) {
	return s.list(`SELECT `+eventCols+` FROM events WHERE user_id = ? ORDER BY date ASC, start_time ASC`, userID)
}

// ListRange returns events with from <= date <= to. Dates are YYYY-MM-DD and
// compare correctly as text.
func (s *EventStore) ListRange(userID int64, from, to string) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventCols+` FROM events WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC, start_time ASC`,
		userID, from, to,
	)
}

// ListAfter returns events strictly after the given date.
func (s *EventStore) ListAfter(userID int64, date string) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventCols+` FROM events WHERE user_id = ? AND date > ? ORDER BY date ASC, start_time ASC`,
		userID, date,
	)
}

func (s *EventStore) list(query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
