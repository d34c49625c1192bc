package model

import "time"

type Recipe struct {
	ID           int64     `json:"id"`
	CreatedBy    int64     `json:"created_by"`
	Name         string    `json:"name"`
	Image        string    `json:"image"`
	Tags         []string  `json:"tags"`
	PrepTime     int       `json:"prep_time"`
	Allergens    []string  `json:"allergens"`
	Rating       float64   `json:"rating"`
	Calories     int       `json:"calories"`
	Ingredients  []string  `json:"ingredients"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MealSlot is one meal of a day: the dish name and, when it came from the
// recipe book, the recipe it refers to.
type MealSlot struct {
	RecipeID *int64 `json:"recipe_id"`
	Name     string `json:"name"`
}

type MealPlan struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Breakfast MealSlot  `json:"breakfast"`
	Lunch     MealSlot  `json:"lunch"`
	Dinner    MealSlot  `json:"dinner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
