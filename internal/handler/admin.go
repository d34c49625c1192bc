package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/apperr"
	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

var subscriptionStatuses = map[string]bool{
	model.SubscriptionActive:   true,
	model.SubscriptionInactive: true,
	model.SubscriptionPastDue:  true,
	model.SubscriptionCanceled: true,
}

type AdminHandler struct {
	users    *store.UserStore
	children *store.ChildStore
	finance  *store.FinanceStore
	now      func() time.Time
	logger   *slog.Logger
}

func NewAdminHandler(us *store.UserStore, cs *store.ChildStore, fs *store.FinanceStore, now func() time.Time, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: us, children: cs, finance: fs, now: now, logger: logger}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) user(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	u, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	return u, true
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type subscriptionRequest struct {
	Status string  `json:"status"`
	Plan   *string `json:"plan"`
	Expiry *string `json:"expiry"`
}

// apply merges req into sub. An empty expiry clears it.
func (req subscriptionRequest) apply(sub *model.Subscription) error {
	sub.Status = strings.TrimSpace(req.Status)
	if !subscriptionStatuses[sub.Status] {
		return apperr.Validation("status must be active, inactive, past_due or canceled")
	}
	if req.Plan != nil {
		sub.Plan = strings.TrimSpace(*req.Plan)
	}
	if req.Expiry != nil {
		if *req.Expiry == "" {
			sub.Expiry = nil
			return nil
		}
		t, err := parseDate(*req.Expiry)
		if err != nil {
			return err
		}
		sub.Expiry = &t
	}
	return nil
}

func (h *AdminHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u.Subscription())
}

// UpdateSubscription overrides a user's subscription by hand.
func (h *AdminHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	var req subscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub := u.Subscription()
	if err := req.apply(&sub); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.users.UpdateSubscription(u.ID, sub)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	h.logger.Info("subscription overridden", "admin_id", p.ID, "user_id", u.ID, "status", sub.Status)
	writeJSON(w, http.StatusOK, updated)
}

type adminUserRequest struct {
	model.ProfileUpdate
	Email        *string              `json:"email"`
	Password     *string              `json:"password"`
	Subscription *subscriptionRequest `json:"subscription"`
}

// UpdateUser edits any account field an admin may change: profile fields,
// login email, password and subscription. Everything is validated before the
// first write.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	var req adminUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			writeMessage(w, http.StatusBadRequest, "username cannot be empty")
			return
		}
		req.Username = &name
	}
	var email string
	if req.Email != nil {
		var valid bool
		if email, valid = normalizeEmail(*req.Email); !valid {
			writeMessage(w, http.StatusBadRequest, "a valid email is required")
			return
		}
	}
	var hash string
	if req.Password != nil {
		if len(*req.Password) < auth.MinPasswordLength {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
			return
		}
		var err error
		if hash, err = auth.HashPassword(*req.Password); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	sub := u.Subscription()
	if req.Subscription != nil {
		if err := req.Subscription.apply(&sub); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	if _, err := h.users.UpdateProfile(u.ID, req.ProfileUpdate); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeMessage(w, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	if email != "" && email != u.Email {
		if err := h.users.UpdateEmail(u.ID, email); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				writeMessage(w, http.StatusConflict, "email already registered")
				return
			}
			writeError(w, r, h.logger, err)
			return
		}
	}
	if hash != "" {
		if err := h.users.UpdatePassword(u.ID, hash); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	updated, err := h.users.UpdateSubscription(u.ID, sub)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	h.logger.Info("user updated by admin", "admin_id", p.ID, "user_id", u.ID, "password_changed", hash != "")
	writeJSON(w, http.StatusOK, updated)
}

// DeleteUser removes a user and, through foreign keys, their family data.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	p, _ := auth.FromContext(r.Context())
	if u.ID == p.ID {
		writeMessage(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := h.users.Delete(u.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user deleted", "admin_id", p.ID, "user_id", u.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.users.Analytics(h.now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AdminHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	children, err := h.children.ListByParent(u.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

// DeleteChild removes one of the user's children along with the child's tasks
// and ledger.
func (h *AdminHandler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	childID, err := parsePathID(r, "childId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.children.GetByID(childID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if c == nil || c.ParentID != u.ID {
		writeMessage(w, http.StatusNotFound, "child not found for this user")
		return
	}
	if err := h.children.Delete(c.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	h.logger.Info("child removed by admin", "admin_id", p.ID, "user_id", u.ID, "child_id", c.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	txs, err := h.finance.ListTransactions(u.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *AdminHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t := model.Transaction{UserID: u.ID}
	if msg := req.apply(&t); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	created, err := h.finance.CreateTransaction(t)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
