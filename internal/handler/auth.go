package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

type AuthHandler struct {
	users    *store.UserStore
	children *store.ChildStore
	tokens   *auth.TokenIssuer
	logger   *slog.Logger
}

func NewAuthHandler(us *store.UserStore, cs *store.ChildStore, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: us, children: cs, tokens: tokens, logger: logger}
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *model.User  `json:"user,omitempty"`
	Child     *model.Child `json:"child,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalizeEmail lower-cases and trims s and reports whether it is a bare
// address.
func normalizeEmail(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if err := validate.Var(s, "required,email,max=254"); err != nil {
		return "", false
	}
	return s, true
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// Register creates a parent account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, err := h.users.Create(email, strings.TrimSpace(req.Username), strings.TrimSpace(req.FullName), hash, model.RoleParent)
	if errors.Is(err, store.ErrDuplicate) {
		writeMessage(w, http.StatusConflict, "email or username already registered")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("parent registered", "user_id", u.ID)
	h.respondWithToken(w, r, http.StatusCreated, auth.Principal{ID: u.ID, Role: u.Role, FamilyID: u.ID}, u, nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in a parent or admin.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, _ := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.users.GetByEmail(email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil || !auth.VerifyPassword(u.PasswordHash, req.Password) {
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	h.respondWithToken(w, r, http.StatusOK, auth.Principal{ID: u.ID, Role: u.Role, FamilyID: u.ID}, u, nil)
}

type childLoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	ParentUsername string `json:"parent_username"`
}

// ChildLogin signs in a child, identified by email under their parent's username.
func (h *AuthHandler) ChildLogin(w http.ResponseWriter, r *http.Request) {
	var req childLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, _ := normalizeEmail(req.Email)
	parent := strings.TrimSpace(req.ParentUsername)
	if email == "" || req.Password == "" || parent == "" {
		writeMessage(w, http.StatusBadRequest, "email, password and parent_username are required")
		return
	}

	c, err := h.children.GetByLogin(email, parent)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if c == nil || !auth.VerifyPassword(c.PasswordHash, req.Password) {
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.respondWithToken(w, r, http.StatusOK, auth.Principal{ID: c.ID, Role: model.RoleChild, FamilyID: c.ParentID}, nil, c)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, p auth.Principal, u *model.User, c *model.Child) {
	token, exp, err := h.tokens.Issue(p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, ExpiresAt: exp, User: u, Child: c})
}

// EnsureAdmin creates the configured admin account unless the email is
// already registered.
func EnsureAdmin(users *store.UserStore, email, password string, logger *slog.Logger) error {
	email, ok := normalizeEmail(email)
	if !ok {
		return fmt.Errorf("invalid admin email")
	}
	existing, err := users.GetByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			logger.Warn("admin email belongs to a non-admin account", "user_id", existing.ID)
		}
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u, err := users.Create(email, "", "Administrator", hash, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("admin account created", "user_id", u.ID)
	return nil
}
