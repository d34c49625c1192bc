package store

import (
	"database/sql"
	"fmt"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	err := scanner.Scan(&c.ID, &c.ParentID, &c.Name, &c.Email, &c.PasswordHash,
		&c.DateOfBirth, &c.Grade, &c.ProfilePicture, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const childCols = `id, parent_id, name, email, password_hash, date_of_birth, grade, profile_picture, created_at, updated_at`

// Create inserts a child account. It returns ErrDuplicate when the email is taken.
func (s *ChildStore) Create(parentID int64, name, email, passwordHash, dob, grade string) (*model.Child, error) {
	result, err := s.db.Exec(
		`INSERT INTO children (parent_id, name, email, password_hash, date_of_birth, grade) VALUES (?, ?, ?, ?, ?, ?)`,
		parentID, name, email, passwordHash, dob, grade,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChildStore) GetByID(id int64) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

// GetByLogin finds a child by email under the parent with the given username.
func (s *ChildStore) GetByLogin(email, parentUsername string) (*model.Child, error) {
	row := s.db.QueryRow(
		`SELECT c.id, c.parent_id, c.name, c.email, c.password_hash, c.date_of_birth, c.grade,
			c.profile_picture, c.created_at, c.updated_at
		 FROM children c JOIN users u ON u.id = c.parent_id
		 WHERE c.email = ? AND u.username = ?`,
		email, parentUsername,
	)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child by login: %w", err)
	}
	return c, nil
}

// ListByParent returns a parent's children ordered by name.
func (s *ChildStore) ListByParent(parentID int64) ([]model.Child, error) {
	rows, err := s.db.Query(`SELECT `+childCols+` FROM children WHERE parent_id = ? ORDER BY name ASC, id ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *ChildStore) Update(id int64, name, dob, grade string) (*model.Child, error) {
	_, err := s.db.Exec(
		`UPDATE children SET name = ?, date_of_birth = ?, grade = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, dob, grade, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChildStore) UpdateProfilePicture(id int64, url string) error {
	_, err := s.db.Exec(`UPDATE children SET profile_picture = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("update child picture: %w", err)
	}
	return nil
}

func (s *ChildStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE children SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update child password: %w", err)
	}
	return nil
}

func (s *ChildStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM children WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return nil
}
