package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/huzaifasad/backendforfamily/internal/billing"
	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/database"
	"github.com/huzaifasad/backendforfamily/internal/handler"
	"github.com/huzaifasad/backendforfamily/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			LoginRateLimit:  100,
			RateLimitWindow: time.Minute,
			AllowedOrigins:  []string{"localhost:*"},
		},
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			JWTIssuer:     "familyhub",
			TokenTTL:      time.Hour,
			ChildTokenTTL: time.Hour,
		},
		Tasks: config.TasksConfig{DefaultRewardPoints: 10},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	t      *testing.T
	db     *sql.DB
	srv    *Server
	router http.Handler
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	srv := New(db, testConfig(), opts, testLogger())
	return &testEnv{t: t, db: db, srv: srv, router: srv.Router()}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type tokenBody struct {
	Token string       `json:"token"`
	User  *model.User  `json:"user"`
	Child *model.Child `json:"child"`
}

// registerFamily signs up a parent with one child and returns both tokens.
func (e *testEnv) registerFamily(name string) (parentTok string, parentID int64, childTok string, childID int64) {
	e.t.Helper()
	rec := e.do("POST", "/api/auth/register", "", map[string]string{
		"email": name + "@example.com", "password": "secret123", "username": name, "full_name": "Parent " + name,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	parent := decode[tokenBody](e.t, rec)

	rec = e.do("POST", "/api/children", parent.Token, map[string]string{
		"name": "Kid", "email": "kid-" + name + "@example.com", "password": "kidpass1",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	kid := decode[model.Child](e.t, rec)

	rec = e.do("POST", "/api/auth/child/login", "", map[string]string{
		"email": "kid-" + name + "@example.com", "password": "kidpass1", "parent_username": name,
	})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	child := decode[tokenBody](e.t, rec)

	return parent.Token, parent.User.ID, child.Token, kid.ID
}

func (e *testEnv) activate(userID int64) {
	e.t.Helper()
	_, err := e.srv.Users().UpdateSubscription(userID, model.Subscription{Status: model.SubscriptionActive, Plan: "Family"})
	require.NoError(e.t, err)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, Options{})
	rec := e.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t, Options{})
	for _, path := range []string{"/api/profile", "/api/tasks", "/api/child/rewards", "/api/admin/users"} {
		rec := e.do("GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.registerFamily("ana")

	rec := e.do("POST", "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do("POST", "/api/auth/login", "", map[string]string{"email": "ANA@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleSeparation(t *testing.T) {
	e := newTestEnv(t, Options{})
	parentTok, _, childTok, _ := e.registerFamily("ben")

	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/tasks", childTok, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/child/tasks", parentTok, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/admin/analytics", parentTok, nil).Code)
	assert.Equal(t, http.StatusOK, e.do("GET", "/api/child/tasks", childTok, nil).Code)
}

func TestTaskCompletionEarnsAndSpendsPoints(t *testing.T) {
	e := newTestEnv(t, Options{})
	parentTok, _, childTok, childID := e.registerFamily("cleo")

	rec := e.do("POST", "/api/tasks", parentTok, map[string]any{
		"content": "Feed the cat", "priority": "high", "child_id": childID,
		"due_date": "2026-03-09", "recurrence": "daily", "reward_points": 15,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Message string       `json:"message"`
		Tasks   []model.Task `json:"tasks"`
	}](t, rec)
	assert.Equal(t, "Task created", created.Message)
	require.Len(t, created.Tasks, 1)
	taskID := created.Tasks[0].ID

	rec = e.do("POST", fmt.Sprintf("/api/child/tasks/%d/complete", taskID), childTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[struct {
		Message  string        `json:"message"`
		Task     model.Task    `json:"task"`
		NextTask *model.Task   `json:"next_task"`
		Reward   *model.Reward `json:"reward"`
	}](t, rec)
	assert.Equal(t, "Task completed", done.Message)
	assert.Equal(t, model.StatusDone, done.Task.Status)
	assert.Equal(t, 1, done.Task.LateDays)
	require.NotNil(t, done.NextTask)
	assert.Equal(t, "2026-03-10", done.NextTask.DueDate.Format(time.DateOnly))
	require.NotNil(t, done.Reward)
	assert.Equal(t, 15, done.Reward.Points)

	// Completing twice is a conflict.
	rec = e.do("POST", fmt.Sprintf("/api/child/tasks/%d/complete", taskID), childTok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do("GET", "/api/child/rewards/catalog", childTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var playtime model.PredefinedReward
	for _, item := range decode[[]model.PredefinedReward](t, rec) {
		if item.PointsRequired == 20 {
			playtime = item
		}
	}
	require.NotZero(t, playtime.ID)

	rec = e.do("POST", fmt.Sprintf("/api/child/rewards/catalog/%d/redeem", playtime.ID), childTok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = e.do("POST", "/api/rewards", parentTok, map[string]any{"child_id": childID, "points": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	credited := decode[struct {
		Message string       `json:"message"`
		Reward  model.Reward `json:"reward"`
	}](t, rec)
	assert.Equal(t, "Reward added", credited.Message)
	assert.Equal(t, 10, credited.Reward.Points)
	assert.Equal(t, childID, credited.Reward.ChildID)

	rec = e.do("POST", fmt.Sprintf("/api/child/rewards/catalog/%d/redeem", playtime.ID), childTok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	redeemed := decode[struct {
		Message string             `json:"message"`
		Entry   model.Reward       `json:"entry"`
		Balance model.PointBalance `json:"balance"`
	}](t, rec)
	assert.Equal(t, "Reward redeemed", redeemed.Message)
	assert.Equal(t, -20, redeemed.Entry.Points)
	assert.Equal(t, 5, redeemed.Balance.Balance)

	rec = e.do("GET", fmt.Sprintf("/api/rewards/children/%d/balance", childID), parentTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[model.PointBalance](t, rec).Balance)
}

func TestMutationsAnswerWithMessageEnvelope(t *testing.T) {
	e := newTestEnv(t, Options{})
	parentTok, _, _, childID := e.registerFamily("gail")

	rec := e.do("POST", "/api/tasks", parentTok, map[string]any{
		"content": "Water plants", "priority": "low", "child_id": childID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskID := decode[struct {
		Tasks []model.Task `json:"tasks"`
	}](t, rec).Tasks[0].ID

	rec = e.do("PUT", fmt.Sprintf("/api/tasks/%d", taskID), parentTok, map[string]any{"content": "Water all plants"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, `"Task updated"`, string(updated["message"]))
	assert.Contains(t, string(updated["task"]), `"content":"Water all plants"`)
	assert.NotContains(t, updated, "next_task")

	rec = e.do("POST", fmt.Sprintf("/api/tasks/%d/comments", taskID), parentTok, map[string]string{"text": "Use the blue can"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	commented := decode[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, `"Comment added"`, string(commented["message"]))
	assert.Contains(t, commented, "comment")

	rec = e.do("POST", "/api/rewards", parentTok, map[string]any{"child_id": childID, "points": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entryID := decode[struct {
		Reward model.Reward `json:"reward"`
	}](t, rec).Reward.ID

	rec = e.do("PUT", fmt.Sprintf("/api/rewards/%d", entryID), parentTok, map[string]string{"title": "Bonus", "description": "Helping out"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[struct {
		Message string       `json:"message"`
		Reward  model.Reward `json:"reward"`
	}](t, rec)
	assert.Equal(t, "Reward updated", edited.Message)
	assert.Equal(t, "Bonus", edited.Reward.Title)

	rec = e.do("PATCH", fmt.Sprintf("/api/rewards/%d/redeem", entryID), parentTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	redeemed := decode[struct {
		Message string       `json:"message"`
		Reward  model.Reward `json:"reward"`
	}](t, rec)
	assert.Equal(t, "Reward redeemed", redeemed.Message)
	assert.Equal(t, entryID, redeemed.Reward.ID)

	rec = e.do("DELETE", "/api/tasks/done", parentTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Done tasks deleted","deleted":0}`, rec.Body.String())
}

func TestParentCannotTouchAnotherFamily(t *testing.T) {
	e := newTestEnv(t, Options{})
	_, _, _, childA := e.registerFamily("dana")
	parentB, _, _, _ := e.registerFamily("eli")

	rec := e.do("POST", "/api/tasks", parentB, map[string]any{
		"content": "Not yours", "priority": "low", "child_id": childA,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do("GET", fmt.Sprintf("/api/children/%d", childA), parentB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionGate(t *testing.T) {
	e := newTestEnv(t, Options{})
	parentTok, parentID, childTok, _ := e.registerFamily("finn")

	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/calendar", parentTok, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/finance/summary", parentTok, nil).Code)

	e.activate(parentID)

	rec := e.do("POST", "/api/calendar", parentTok, map[string]string{
		"title": "Dentist", "date": "2026-03-12", "start_time": "09:00", "end_time": "09:30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Children see the family calendar but cannot edit it.
	rec = e.do("GET", "/api/calendar/week", childTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Event](t, rec), 1)
	assert.Equal(t, http.StatusForbidden, e.do("POST", "/api/calendar", childTok, map[string]string{}).Code)

	rec = e.do("POST", "/api/calendar", parentTok, map[string]string{
		"title": "Bad", "date": "12/03/2026", "start_time": "09:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMealsAndFinance(t *testing.T) {
	e := newTestEnv(t, Options{})
	parentTok, parentID, _, _ := e.registerFamily("gia")
	e.activate(parentID)

	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/meals/today", parentTok, nil).Code)

	rec := e.do("POST", "/api/recipes", parentTok, map[string]any{"name": "Pancakes", "tags": []string{"sweet"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	recipe := decode[model.Recipe](t, rec)

	rec = e.do("PUT", "/api/meals/2026-03-10", parentTok, map[string]any{
		"breakfast": map[string]any{"recipe_id": recipe.ID},
		"dinner":    map[string]any{"name": "Soup"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode[model.MealPlan](t, rec)
	assert.Equal(t, "Pancakes", plan.Breakfast.Name)

	assert.Equal(t, http.StatusOK, e.do("GET", "/api/meals/today", parentTok, nil).Code)

	rec = e.do("POST", "/api/finance/transactions", parentTok, map[string]any{
		"type": "income", "category": "Salary", "amount": "1000.50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do("POST", "/api/finance/shopping", parentTok, map[string]any{
		"name": "Milk", "category": "Groceries", "priority": "High", "cost": "2.25",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do("GET", "/api/finance/summary", parentTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"income":"1000.5","expenses":"2.25","balance":"998.25"}`, rec.Body.String())
}

func TestAdminRoutes(t *testing.T) {
	e := newTestEnv(t, Options{})
	require.NoError(t, handler.EnsureAdmin(e.srv.Users(), "root@example.com", "adminpass", testLogger()))
	_, parentID, _, childID := e.registerFamily("hal")

	rec := e.do("POST", "/api/auth/login", "", map[string]string{"email": "root@example.com", "password": "adminpass"})
	require.Equal(t, http.StatusOK, rec.Code)
	adminTok := decode[tokenBody](t, rec).Token

	rec = e.do("PUT", fmt.Sprintf("/api/admin/users/%d/subscription", parentID), adminTok, map[string]string{
		"status": "active", "plan": "Family", "expiry": "2027-01-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do("GET", "/api/admin/analytics", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[model.Analytics](t, rec)
	assert.Equal(t, 1, a.Users)
	assert.Equal(t, 1, a.Children)
	assert.Equal(t, 1, a.ActiveSubscriptions)

	rec = e.do("GET", fmt.Sprintf("/api/admin/users/%d/subscription", parentID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[model.Subscription](t, rec)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, "Family", sub.Plan)
	require.NotNil(t, sub.Expiry)
	assert.Equal(t, "2027-01-01", sub.Expiry.Format(time.DateOnly))
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/admin/users/9999/subscription", adminTok, nil).Code)

	rec = e.do("PUT", fmt.Sprintf("/api/admin/users/%d", parentID), adminTok, map[string]any{
		"full_name": "Hal Jordan", "email": "Hal@Family.example", "password": "newsecret1",
		"subscription": map[string]string{"status": "canceled"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[model.User](t, rec)
	assert.Equal(t, "Hal Jordan", edited.FullName)
	assert.Equal(t, "hal@family.example", edited.Email)
	assert.Equal(t, model.SubscriptionCanceled, edited.SubscriptionStatus)
	assert.Equal(t, "Family", edited.SubscriptionPlan)

	rec = e.do("POST", "/api/auth/login", "", map[string]string{"email": "hal@family.example", "password": "newsecret1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusConflict, e.do("PUT", fmt.Sprintf("/api/admin/users/%d", parentID), adminTok,
		map[string]string{"email": "root@example.com"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("PUT", fmt.Sprintf("/api/admin/users/%d", parentID), adminTok,
		map[string]string{"email": "not-an-email"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("PUT", fmt.Sprintf("/api/admin/users/%d", parentID), adminTok,
		map[string]any{"subscription": map[string]string{"status": "premium"}}).Code)

	rec = e.do("GET", fmt.Sprintf("/api/admin/users/%d/children", parentID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	kids := decode[[]model.Child](t, rec)
	require.Len(t, kids, 1)
	assert.Equal(t, childID, kids[0].ID)

	assert.Equal(t, http.StatusNotFound, e.do("DELETE", fmt.Sprintf("/api/admin/users/%d/children/%d", parentID, childID+100), adminTok, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do("DELETE", fmt.Sprintf("/api/admin/users/%d/children/%d", parentID, childID), adminTok, nil).Code)
	rec = e.do("GET", fmt.Sprintf("/api/admin/users/%d/children", parentID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = e.do("POST", fmt.Sprintf("/api/admin/users/%d/transactions", parentID), adminTok, map[string]string{
		"type": "income", "category": "Refund", "amount": "25.00", "description": "Plan refund",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, parentID, decode[model.Transaction](t, rec).UserID)
	assert.Equal(t, http.StatusBadRequest, e.do("POST", fmt.Sprintf("/api/admin/users/%d/transactions", parentID), adminTok,
		map[string]string{"type": "gift", "category": "Refund", "amount": "1"}).Code)

	rec = e.do("GET", fmt.Sprintf("/api/admin/users/%d/transactions", parentID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]model.Transaction](t, rec)
	require.Len(t, txs, 1)
	assert.Equal(t, "Refund", txs[0].Category)

	rec = e.do("POST", "/api/admin/tasks/sweep-late", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do("POST", "/api/admin/backups", adminTok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = e.do("GET", "/api/admin/backups", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"backups":[]}`, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, e.do("GET", "/api/admin/backups?limit=0", adminTok, nil).Code)
}

type fakeProvider struct {
	customers int
	session   *billing.Session
	event     stripe.Event
}

func (f *fakeProvider) CreateCustomer(email, name string) (string, error) {
	f.customers++
	return "cus_test", nil
}

func (f *fakeProvider) CreateCheckoutSession(customerID string, userID int64, priceID string) (*billing.Checkout, error) {
	return &billing.Checkout{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
}

func (f *fakeProvider) GetSession(id string) (*billing.Session, error) {
	return f.session, nil
}

func (f *fakeProvider) ConstructWebhookEvent(payload []byte, sig string) (stripe.Event, error) {
	if sig != "valid" {
		return stripe.Event{}, errors.New("bad signature")
	}
	return f.event, nil
}

func TestBillingFlow(t *testing.T) {
	fp := &fakeProvider{}
	e := newTestEnv(t, Options{Billing: fp})
	parentTok, parentID, _, _ := e.registerFamily("ivy")

	rec := e.do("POST", "/api/billing/checkout-session", parentTok, map[string]string{"price_id": "price_family"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"session_id":"cs_test"`)

	// The stored customer is reused.
	e.do("POST", "/api/billing/checkout-session", parentTok, map[string]string{"price_id": "price_family"})
	assert.Equal(t, 1, fp.customers)

	fp.session = &billing.Session{
		ID: "cs_test", UserID: parentID, CustomerID: "cus_test", SubscriptionID: "sub_test", Paid: true,
		Subscription: model.Subscription{Status: model.SubscriptionActive, Plan: "Family", CustomerID: "cus_test", StripeID: "sub_test"},
	}
	rec = e.do("GET", "/api/billing/session/cs_test", parentTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, e.do("GET", "/api/calendar", parentTok, nil).Code)

	fp.event = stripe.Event{
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"sub_test","status":"canceled"}`)},
	}
	req := httptest.NewRequest("POST", "/api/billing/webhook", bytes.NewBufferString("{}"))
	req.Header.Set("Stripe-Signature", "forged")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("POST", "/api/billing/webhook", bytes.NewBufferString("{}"))
	req.Header.Set("Stripe-Signature", "valid")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/calendar", parentTok, nil).Code)
}

func TestBillingSessionMustBelongToCaller(t *testing.T) {
	fp := &fakeProvider{}
	e := newTestEnv(t, Options{Billing: fp})
	parentTok, parentID, _, _ := e.registerFamily("jon")
	sub := model.Subscription{Status: model.SubscriptionActive, Plan: "Family", CustomerID: "cus_test", StripeID: "sub_test"}

	fp.session = &billing.Session{ID: "cs_anon", CustomerID: "cus_test", SubscriptionID: "sub_test", Paid: true, Subscription: sub}
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/billing/session/cs_anon", parentTok, nil).Code)

	fp.session = &billing.Session{ID: "cs_other", UserID: parentID + 100, CustomerID: "cus_test", SubscriptionID: "sub_test", Paid: true, Subscription: sub}
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/billing/session/cs_other", parentTok, nil).Code)

	// Neither attempt activated anything.
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/calendar", parentTok, nil).Code)
}

func TestBillingRoutesAbsentWithoutProvider(t *testing.T) {
	e := newTestEnv(t, Options{})
	rec := e.do("POST", "/api/billing/webhook", "", nil)
	// Falls through to the authenticated mux.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStoreFailureIsOpaque(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE email = \?`).
		WillReturnError(errors.New("disk I/O error at /var/lib/familyhub.db"))

	srv := New(db, testConfig(), Options{}, testLogger())
	req := httptest.NewRequest("POST", "/api/auth/login",
		bytes.NewBufferString(`{"email":"x@example.com","password":"whatever"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
