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

type MealHandler struct {
	meals   *store.MealStore
	recipes *store.RecipeStore
	now     func() time.Time
	notifier
	logger *slog.Logger
}

func NewMealHandler(ms *store.MealStore, rs *store.RecipeStore, now func() time.Time, hub broadcaster, logger *slog.Logger) *MealHandler {
	return &MealHandler{meals: ms, recipes: rs, now: now, notifier: notifier{hub}, logger: logger}
}

// queryDate reads a YYYY-MM-DD query parameter under either of its names.
func queryDate(r *http.Request, names ...string) (string, bool) {
	for _, name := range names {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return "", false
		}
		return v, true
	}
	return "", true
}

// Week returns plans between start_date and end_date, defaulting to the
// current Sunday to Saturday week.
func (h *MealHandler) Week(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	from, ok := queryDate(r, "start_date", "startDate")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	to, ok := queryDate(r, "end_date", "endDate")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if from == "" {
		from = task.WeekStart(h.now()).Format(time.DateOnly)
	}
	if to == "" {
		start, _ := time.Parse(time.DateOnly, from)
		to = start.AddDate(0, 0, 6).Format(time.DateOnly)
	}
	if to < from {
		writeMessage(w, http.StatusBadRequest, "end_date must not be before start_date")
		return
	}
	plans, err := h.meals.ListRange(p.FamilyID, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *MealHandler) Today(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	plan, err := h.meals.GetByDate(p.FamilyID, h.now().Format(time.DateOnly))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if plan == nil {
		writeMessage(w, http.StatusNotFound, "no meal plan for today")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type mealPlanRequest struct {
	Breakfast model.MealSlot `json:"breakfast"`
	Lunch     model.MealSlot `json:"lunch"`
	Dinner    model.MealSlot `json:"dinner"`
}

func pathDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.PathValue("date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeMessage(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

// Upsert replaces the plan for the date in the path.
func (h *MealHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	var req mealPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slots := []*model.MealSlot{&req.Breakfast, &req.Lunch, &req.Dinner}
	for _, s := range slots {
		s.Name = strings.TrimSpace(s.Name)
		if s.RecipeID == nil {
			continue
		}
		rec, err := h.recipes.GetByID(*s.RecipeID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if rec == nil || rec.CreatedBy != p.FamilyID {
			writeMessage(w, http.StatusBadRequest, "unknown recipe")
			return
		}
		if s.Name == "" {
			s.Name = rec.Name
		}
	}

	plan, err := h.meals.Upsert(model.MealPlan{
		UserID:    p.FamilyID,
		Date:      date,
		Breakfast: req.Breakfast,
		Lunch:     req.Lunch,
		Dinner:    req.Dinner,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "meal", "updated", plan.ID, map[string]any{"date": date})
	writeJSON(w, http.StatusOK, plan)
}

func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	deleted, err := h.meals.DeleteByDate(p.FamilyID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "no meal plan for that date")
		return
	}
	h.notify(p.FamilyID, "meal", "deleted", 0, map[string]any{"date": date})
	w.WriteHeader(http.StatusNoContent)
}

// --- Recipes ---

type recipeRequest struct {
	Name         *string  `json:"name"`
	Image        *string  `json:"image"`
	Tags         []string `json:"tags"`
	PrepTime     *int     `json:"prep_time"`
	Allergens    []string `json:"allergens"`
	Rating       *float64 `json:"rating"`
	Calories     *int     `json:"calories"`
	Ingredients  []string `json:"ingredients"`
	Instructions *string  `json:"instructions"`
}

func (req recipeRequest) apply(rec *model.Recipe) string {
	if req.Name != nil {
		rec.Name = strings.TrimSpace(*req.Name)
	}
	if req.Image != nil {
		rec.Image = strings.TrimSpace(*req.Image)
	}
	if req.Tags != nil {
		rec.Tags = req.Tags
	}
	if req.PrepTime != nil {
		rec.PrepTime = *req.PrepTime
	}
	if req.Allergens != nil {
		rec.Allergens = req.Allergens
	}
	if req.Rating != nil {
		rec.Rating = *req.Rating
	}
	if req.Calories != nil {
		rec.Calories = *req.Calories
	}
	if req.Ingredients != nil {
		rec.Ingredients = req.Ingredients
	}
	if req.Instructions != nil {
		rec.Instructions = *req.Instructions
	}

	switch {
	case rec.Name == "":
		return "name is required"
	case rec.PrepTime < 0:
		return "prep_time must not be negative"
	case rec.Calories < 0:
		return "calories must not be negative"
	case rec.Rating < 0 || rec.Rating > 5:
		return "rating must be between 0 and 5"
	}
	return ""
}

func (h *MealHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	recipes, err := h.recipes.List(p.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *MealHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec := model.Recipe{CreatedBy: p.FamilyID}
	if msg := req.apply(&rec); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	created, err := h.recipes.Create(rec)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "recipe", "created", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *MealHandler) ownRecipe(w http.ResponseWriter, r *http.Request) (*model.Recipe, bool) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	rec, err := h.recipes.GetByID(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if rec == nil || rec.CreatedBy != p.FamilyID {
		writeMessage(w, http.StatusNotFound, "recipe not found")
		return nil, false
	}
	return rec, true
}

func (h *MealHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownRecipe(w, r)
	if !ok {
		return
	}
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.apply(rec); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	updated, err := h.recipes.Update(*rec)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(rec.CreatedBy, "recipe", "updated", rec.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *MealHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownRecipe(w, r)
	if !ok {
		return
	}
	if err := h.recipes.Delete(rec.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(rec.CreatedBy, "recipe", "deleted", rec.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}
