package store

import (
	"database/sql"
	"fmt"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type MealStore struct {
	db *sql.DB
}

func NewMealStore(db *sql.DB) *MealStore {
	return &MealStore{db: db}
}

func scanMeal(scanner interface{ Scan(...any) error }) (*model.MealPlan, error) {
	var m model.MealPlan
	var breakfast, lunch, dinner sql.NullInt64
	err := scanner.Scan(&m.ID, &m.UserID, &m.Date,
		&m.Breakfast.Name, &breakfast, &m.Lunch.Name, &lunch, &m.Dinner.Name, &dinner,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Breakfast.RecipeID = int64Ptr(breakfast)
	m.Lunch.RecipeID = int64Ptr(lunch)
	m.Dinner.RecipeID = int64Ptr(dinner)
	return &m, nil
}

const mealCols = `id, user_id, date, breakfast_name, breakfast_recipe_id, lunch_name, lunch_recipe_id,
	dinner_name, dinner_recipe_id, created_at, updated_at`

// Upsert stores the plan for (user, date), replacing any existing plan.
func (s *MealStore) Upsert(m model.MealPlan) (*model.MealPlan, error) {
	_, err := s.db.Exec(
		`INSERT INTO meals (user_id, date, breakfast_name, breakfast_recipe_id, lunch_name, lunch_recipe_id,
			dinner_name, dinner_recipe_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			breakfast_name = excluded.breakfast_name, breakfast_recipe_id = excluded.breakfast_recipe_id,
			lunch_name = excluded.lunch_name, lunch_recipe_id = excluded.lunch_recipe_id,
			dinner_name = excluded.dinner_name, dinner_recipe_id = excluded.dinner_recipe_id,
			updated_at = CURRENT_TIMESTAMP`,
		m.UserID, m.Date,
		m.Breakfast.Name, nullInt64(m.Breakfast.RecipeID),
		m.Lunch.Name, nullInt64(m.Lunch.RecipeID),
		m.Dinner.Name, nullInt64(m.Dinner.RecipeID),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert meal plan: %w", err)
	}
	return s.GetByDate(m.UserID, m.Date)
}

func (s *MealStore) GetByDate(userID int64, date string) (*model.MealPlan, error) {
	m, err := scanMeal(s.db.QueryRow(`SELECT `+mealCols+` FROM meals WHERE user_id = ? AND date = ?`, userID, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal plan: %w", err)
	}
	return m, nil
}

// ListRange returns plans with from <= date <= to, in date order.
func (s *MealStore) ListRange(userID int64, from, to string) ([]model.MealPlan, error) {
	rows, err := s.db.Query(
		`SELECT `+mealCols+` FROM meals WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	defer rows.Close()

	plans := []model.MealPlan{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal plan: %w", err)
		}
		plans = append(plans, *m)
	}
	return plans, rows.Err()
}

// DeleteByDate removes the plan for a date. It reports whether one existed.
func (s *MealStore) DeleteByDate(userID int64, date string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM meals WHERE user_id = ? AND date = ?`, userID, date)
	if err != nil {
		return false, fmt.Errorf("delete meal plan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
