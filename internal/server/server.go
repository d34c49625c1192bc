package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/backup"
	"github.com/huzaifasad/backendforfamily/internal/billing"
	"github.com/huzaifasad/backendforfamily/internal/blob"
	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/handler"
	"github.com/huzaifasad/backendforfamily/internal/middleware"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/reward"
	"github.com/huzaifasad/backendforfamily/internal/store"
	"github.com/huzaifasad/backendforfamily/internal/task"
	ws "github.com/huzaifasad/backendforfamily/internal/websocket"
)

// Options carries the collaborators that differ between production and
// tests. Zero values fall back to what the config describes.
type Options struct {
	// Limiter throttles the login endpoints. Defaults to an in-memory limiter.
	Limiter middleware.Limiter
	// Files stores uploads. Defaults to blob.New(cfg.S3).
	Files *blob.Store
	// Billing is the Stripe provider. Defaults to a live client when a
	// secret key is configured; billing routes are skipped otherwise.
	Billing billing.Provider
	// Backups takes database snapshots. Defaults to a manager built from
	// cfg.Backup, which stays disabled without a passphrase.
	Backups *backup.Manager
	Now     func() time.Time
}

type Server struct {
	db      *sql.DB
	cfg     *config.Config
	hub     *ws.Hub
	tokens  *auth.TokenIssuer
	users   *store.UserStore
	tasks   *task.Manager
	backups *backup.Manager
	limiter middleware.Limiter

	authH     *handler.AuthHandler
	profileH  *handler.ProfileHandler
	childH    *handler.ChildHandler
	taskH     *handler.TaskHandler
	rewardH   *handler.RewardHandler
	calendarH *handler.CalendarHandler
	mealH     *handler.MealHandler
	financeH  *handler.FinanceHandler
	billingH  *handler.BillingHandler
	adminH    *handler.AdminHandler
	backupH   *handler.BackupHandler

	logger *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, opts Options, logger *slog.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewMemoryLimiter()
	}
	if opts.Files == nil {
		opts.Files = blob.New(cfg.S3)
	}
	if opts.Billing == nil && cfg.Stripe.Enabled() {
		opts.Billing = billing.NewClient(cfg.Stripe)
	}
	if opts.Backups == nil {
		opts.Backups = backup.New(db, store.NewBackupStore(db), cfg.Backup, cfg.S3, logger.With("component", "backup"))
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	childStore := store.NewChildStore(db)
	taskStore := store.NewTaskStore(db)
	rewardStore := store.NewRewardStore(db)
	eventStore := store.NewEventStore(db)
	mealStore := store.NewMealStore(db)
	recipeStore := store.NewRecipeStore(db)
	financeStore := store.NewFinanceStore(db)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL, cfg.Auth.ChildTokenTTL)
	tasks := task.NewManager(taskStore, childStore, rewardStore, cfg.Tasks.DefaultRewardPoints,
		logger.With("component", "task"), task.WithClock(opts.Now))
	ledger := reward.NewLedger(rewardStore, childStore, logger.With("component", "reward"))

	s := &Server{
		db:        db,
		cfg:       cfg,
		hub:       hub,
		tokens:    tokens,
		users:     userStore,
		tasks:     tasks,
		backups:   opts.Backups,
		limiter:   opts.Limiter,
		authH:     handler.NewAuthHandler(userStore, childStore, tokens, logger.With("component", "auth")),
		profileH:  handler.NewProfileHandler(userStore, childStore, opts.Files, logger.With("component", "profile")),
		childH:    handler.NewChildHandler(childStore, userStore, opts.Files, hub, logger.With("component", "child")),
		taskH:     handler.NewTaskHandler(tasks, opts.Files, hub, logger.With("component", "task_handler")),
		rewardH:   handler.NewRewardHandler(ledger, hub, logger.With("component", "reward_handler")),
		calendarH: handler.NewCalendarHandler(eventStore, opts.Now, hub, logger.With("component", "calendar")),
		mealH:     handler.NewMealHandler(mealStore, recipeStore, opts.Now, hub, logger.With("component", "meal")),
		financeH:  handler.NewFinanceHandler(financeStore, hub, logger.With("component", "finance")),
		adminH:    handler.NewAdminHandler(userStore, childStore, financeStore, opts.Now, logger.With("component", "admin")),
		backupH:   handler.NewBackupHandler(opts.Backups, logger.With("component", "backup_handler")),
		logger:    logger,
	}
	if opts.Billing != nil {
		s.billingH = handler.NewBillingHandler(opts.Billing, userStore, logger.With("component", "billing"))
	}
	return s
}

// Tasks returns the task manager for the background late sweep.
func (s *Server) Tasks() *task.Manager {
	return s.tasks
}

// Backups returns the backup manager for the scheduled snapshot job.
func (s *Server) Backups() *backup.Manager {
	return s.backups
}

// Users returns the user store for startup bootstrapping.
func (s *Server) Users() *store.UserStore {
	return s.users
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/child/login", s.rateLimited(s.authH.ChildLogin))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.billingH != nil {
		outerMux.HandleFunc("POST /api/billing/webhook", s.billingH.Webhook)
	}

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireAuth(s.tokens)(protectedMux))

	httpLogger := s.logger.With("component", "http")
	return middleware.RequestLogger(httpLogger)(middleware.Recover(httpLogger)(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.limiter, middleware.RealIP,
		s.cfg.HTTP.LoginRateLimit, s.cfg.HTTP.RateLimitWindow, s.logger.With("component", "ratelimit"))
	return rl(h).ServeHTTP
}

// with wraps h in mws, outermost first.
func with(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := middleware.RequireRole(model.RoleParent)
	child := middleware.RequireRole(model.RoleChild)
	family := middleware.RequireRole(model.RoleParent, model.RoleChild)
	admin := middleware.RequireRole(model.RoleAdmin)
	paid := middleware.RequireSubscription(s.users, s.logger.With("component", "subscription"))

	// Realtime
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.HTTP.AllowedOrigins, s.logger.With("component", "websocket")))

	// Profile
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.Handle("PUT /api/profile", with(s.profileH.Update, parent))
	mux.HandleFunc("PUT /api/profile/password", s.profileH.ChangePassword)
	mux.Handle("POST /api/profile/picture", with(s.profileH.UploadPicture, family))

	// Children
	mux.Handle("POST /api/children", with(s.childH.Create, parent))
	mux.Handle("GET /api/children", with(s.childH.List, parent))
	mux.Handle("GET /api/children/{id}", with(s.childH.Get, parent))
	mux.Handle("PUT /api/children/{id}", with(s.childH.Update, parent))
	mux.Handle("DELETE /api/children/{id}", with(s.childH.Delete, parent))
	mux.Handle("POST /api/children/{id}/picture", with(s.childH.UploadPicture, parent))

	// Tasks, parent side
	mux.Handle("POST /api/tasks", with(s.taskH.Create, parent))
	mux.Handle("GET /api/tasks", with(s.taskH.List, parent))
	mux.Handle("GET /api/tasks/summary/weekly", with(s.taskH.WeeklySummary, parent))
	mux.Handle("DELETE /api/tasks/done", with(s.taskH.DeleteAllDone, parent))
	mux.Handle("DELETE /api/tasks/completed/{childId}", with(s.taskH.DeleteCompleted, parent))
	mux.Handle("GET /api/tasks/{id}", with(s.taskH.Get, parent))
	mux.Handle("PUT /api/tasks/{id}", with(s.taskH.Update, parent))
	mux.Handle("PATCH /api/tasks/{id}/status", with(s.taskH.UpdateStatus, parent))
	mux.Handle("POST /api/tasks/{id}/complete", with(s.taskH.Complete, parent))
	mux.Handle("POST /api/tasks/{id}/comments", with(s.taskH.AddComment, parent))
	mux.Handle("POST /api/tasks/{id}/attachments", with(s.taskH.AddAttachment, parent))
	mux.Handle("DELETE /api/tasks/{id}", with(s.taskH.Delete, parent))

	// Tasks, child side
	mux.Handle("GET /api/child/tasks", with(s.taskH.List, child))
	mux.Handle("GET /api/child/tasks/summary/weekly", with(s.taskH.WeeklySummary, child))
	mux.Handle("GET /api/child/tasks/{id}", with(s.taskH.Get, child))
	mux.Handle("PATCH /api/child/tasks/{id}/status", with(s.taskH.UpdateStatus, child))
	mux.Handle("POST /api/child/tasks/{id}/complete", with(s.taskH.Complete, child))
	mux.Handle("POST /api/child/tasks/{id}/comments", with(s.taskH.AddComment, child))
	mux.Handle("POST /api/child/tasks/{id}/attachments", with(s.taskH.AddAttachment, child))

	// Rewards, parent side
	mux.Handle("POST /api/rewards", with(s.rewardH.Credit, parent))
	mux.Handle("GET /api/rewards/leaderboard", with(s.rewardH.Leaderboard, parent))
	mux.Handle("GET /api/rewards/catalog", with(s.rewardH.Catalog, parent))
	mux.Handle("POST /api/rewards/catalog/{itemId}/redeem", with(s.rewardH.RedeemCatalog, parent))
	mux.Handle("GET /api/rewards/children/{childId}", with(s.rewardH.List, parent))
	mux.Handle("GET /api/rewards/children/{childId}/balance", with(s.rewardH.Balance, parent))
	mux.Handle("PUT /api/rewards/{id}", with(s.rewardH.UpdateDetails, parent))
	mux.Handle("PATCH /api/rewards/{id}/redeem", with(s.rewardH.Redeem, parent))

	// Rewards, child side
	mux.Handle("GET /api/child/rewards", with(s.rewardH.List, child))
	mux.Handle("GET /api/child/rewards/balance", with(s.rewardH.Balance, child))
	mux.Handle("GET /api/child/rewards/catalog", with(s.rewardH.Catalog, child))
	mux.Handle("POST /api/child/rewards/catalog/{itemId}/redeem", with(s.rewardH.RedeemCatalog, child))
	mux.Handle("PATCH /api/child/rewards/{id}/redeem", with(s.rewardH.Redeem, child))

	// Calendar
	mux.Handle("GET /api/calendar", with(s.calendarH.List, family, paid))
	mux.Handle("GET /api/calendar/upcoming", with(s.calendarH.Upcoming, family, paid))
	mux.Handle("GET /api/calendar/week", with(s.calendarH.Week, family, paid))
	mux.Handle("GET /api/calendar/today", with(s.calendarH.Today, family, paid))
	mux.Handle("POST /api/calendar", with(s.calendarH.Create, parent, paid))
	mux.Handle("PUT /api/calendar/{id}", with(s.calendarH.Update, parent, paid))
	mux.Handle("DELETE /api/calendar/{id}", with(s.calendarH.Delete, parent, paid))

	// Meals and recipes
	mux.Handle("GET /api/meals/week", with(s.mealH.Week, family, paid))
	mux.Handle("GET /api/meals/today", with(s.mealH.Today, family, paid))
	mux.Handle("PUT /api/meals/{date}", with(s.mealH.Upsert, parent, paid))
	mux.Handle("DELETE /api/meals/{date}", with(s.mealH.Delete, parent, paid))
	mux.Handle("GET /api/recipes", with(s.mealH.ListRecipes, family, paid))
	mux.Handle("POST /api/recipes", with(s.mealH.CreateRecipe, parent, paid))
	mux.Handle("PUT /api/recipes/{id}", with(s.mealH.UpdateRecipe, parent, paid))
	mux.Handle("DELETE /api/recipes/{id}", with(s.mealH.DeleteRecipe, parent, paid))

	// Finance
	mux.Handle("GET /api/finance/summary", with(s.financeH.Summary, parent, paid))
	mux.Handle("GET /api/finance/transactions", with(s.financeH.ListTransactions, parent, paid))
	mux.Handle("POST /api/finance/transactions", with(s.financeH.CreateTransaction, parent, paid))
	mux.Handle("GET /api/finance/transactions/{id}", with(s.financeH.GetTransaction, parent, paid))
	mux.Handle("PUT /api/finance/transactions/{id}", with(s.financeH.UpdateTransaction, parent, paid))
	mux.Handle("DELETE /api/finance/transactions/{id}", with(s.financeH.DeleteTransaction, parent, paid))
	mux.Handle("GET /api/finance/shopping", with(s.financeH.ListShoppingItems, parent, paid))
	mux.Handle("POST /api/finance/shopping", with(s.financeH.CreateShoppingItem, parent, paid))
	mux.Handle("PUT /api/finance/shopping/{id}", with(s.financeH.UpdateShoppingItem, parent, paid))
	mux.Handle("DELETE /api/finance/shopping/{id}", with(s.financeH.DeleteShoppingItem, parent, paid))

	// Billing
	if s.billingH != nil {
		mux.Handle("POST /api/billing/checkout-session", with(s.billingH.CreateCheckoutSession, parent))
		mux.Handle("GET /api/billing/session/{sessionId}", with(s.billingH.GetSession, parent))
	}

	// Admin
	mux.Handle("GET /api/admin/users", with(s.adminH.ListUsers, admin))
	mux.Handle("GET /api/admin/users/{id}", with(s.adminH.GetUser, admin))
	mux.Handle("PUT /api/admin/users/{id}", with(s.adminH.UpdateUser, admin))
	mux.Handle("DELETE /api/admin/users/{id}", with(s.adminH.DeleteUser, admin))
	mux.Handle("GET /api/admin/users/{id}/subscription", with(s.adminH.GetSubscription, admin))
	mux.Handle("PUT /api/admin/users/{id}/subscription", with(s.adminH.UpdateSubscription, admin))
	mux.Handle("GET /api/admin/users/{id}/children", with(s.adminH.ListChildren, admin))
	mux.Handle("DELETE /api/admin/users/{id}/children/{childId}", with(s.adminH.DeleteChild, admin))
	mux.Handle("GET /api/admin/users/{id}/transactions", with(s.adminH.ListTransactions, admin))
	mux.Handle("POST /api/admin/users/{id}/transactions", with(s.adminH.CreateTransaction, admin))
	mux.Handle("GET /api/admin/analytics", with(s.adminH.Analytics, admin))
	mux.Handle("POST /api/admin/tasks/sweep-late", with(s.taskH.SweepLate, admin))
	mux.Handle("GET /api/admin/backups", with(s.backupH.List, admin))
	mux.Handle("POST /api/admin/backups", with(s.backupH.Run, admin))
}
