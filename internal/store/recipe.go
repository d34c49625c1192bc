package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type RecipeStore struct {
	db *sql.DB
}

func NewRecipeStore(db *sql.DB) *RecipeStore {
	return &RecipeStore{db: db}
}

func scanRecipe(scanner interface{ Scan(...any) error }) (*model.Recipe, error) {
	var r model.Recipe
	var tags, allergens, ingredients string
	err := scanner.Scan(&r.ID, &r.CreatedBy, &r.Name, &r.Image, &tags, &r.PrepTime, &allergens,
		&r.Rating, &r.Calories, &ingredients, &r.Instructions, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{tags, &r.Tags}, {allergens, &r.Allergens}, {ingredients, &r.Ingredients}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode recipe list: %w", err)
		}
		if *f.dst == nil {
			*f.dst = []string{}
		}
	}
	return &r, nil
}

const recipeCols = `id, created_by, name, image, tags, prep_time, allergens, rating, calories, ingredients, instructions, created_at, updated_at`

func encodeList(list []string) string {
	if list == nil {
		return "[]"
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func (s *RecipeStore) Create(r model.Recipe) (*model.Recipe, error) {
	result, err := s.db.Exec(
		`INSERT INTO recipes (created_by, name, image, tags, prep_time, allergens, rating, calories, ingredients, instructions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CreatedBy, r.Name, r.Image, encodeList(r.Tags), r.PrepTime, encodeList(r.Allergens),
		r.Rating, r.Calories, encodeList(r.Ingredients), r.Instructions,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recipe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RecipeStore) GetByID(id int64) (*model.Recipe, error) {
	r, err := scanRecipe(s.db.QueryRow(`SELECT `+recipeCols+` FROM recipes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// List returns the recipes a user created, alphabetically.
func (s *RecipeStore) List(userID int64) ([]model.Recipe, error) {
	rows, err := s.db.Query(`SELECT `+recipeCols+` FROM recipes WHERE created_by = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []model.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

func (s *RecipeStore) Update(r model.Recipe) (*model.Recipe, error) {
	_, err := s.db.Exec(
		`UPDATE recipes SET name = ?, image = ?, tags = ?, prep_time = ?, allergens = ?, rating = ?,
			calories = ?, ingredients = ?, instructions = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		r.Name, r.Image, encodeList(r.Tags), r.PrepTime, encodeList(r.Allergens), r.Rating,
		r.Calories, encodeList(r.Ingredients), r.Instructions, r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	return s.GetByID(r.ID)
}

func (s *RecipeStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return nil
}
