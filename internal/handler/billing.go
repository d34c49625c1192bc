package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/billing"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

// maxWebhookBytes matches Stripe's documented payload ceiling.
const maxWebhookBytes = 65536

type BillingHandler struct {
	provider billing.Provider
	users    *store.UserStore
	logger   *slog.Logger
}

func NewBillingHandler(p billing.Provider, us *store.UserStore, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{provider: p, users: us, logger: logger}
}

// CreateCheckoutSession starts a subscription checkout for the calling
// parent, creating the Stripe customer on first use.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req struct {
		PriceID string `json:"price_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PriceID = strings.TrimSpace(req.PriceID)
	if req.PriceID == "" {
		writeMessage(w, http.StatusBadRequest, "price_id is required")
		return
	}

	user, err := h.users.GetByID(p.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if user == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = h.provider.CreateCustomer(user.Email, user.FullName)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if err := h.users.SetStripeCustomerID(user.ID, customerID); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	checkout, err := h.provider.CreateCheckoutSession(customerID, user.ID, req.PriceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

// GetSession resolves a finished checkout and stores the resulting
// subscription on the caller.
func (h *BillingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	sessionID := r.PathValue("sessionId")
	if sessionID == "" {
		writeMessage(w, http.StatusBadRequest, "session id is required")
		return
	}

	sess, err := h.provider.GetSession(sessionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	// Checkout sessions carry the creating user in their metadata; one
	// without it cannot be claimed.
	if sess.UserID != p.ID {
		writeMessage(w, http.StatusForbidden, "session belongs to another user")
		return
	}
	if sess.SubscriptionID == "" {
		writeMessage(w, http.StatusBadRequest, "session has no subscription")
		return
	}

	user, err := h.users.UpdateSubscription(p.ID, sess.Subscription)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("subscription activated", "user_id", p.ID, "plan", sess.Subscription.Plan)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   sess.ID,
		"paid":         sess.Paid,
		"subscription": user.Subscription(),
	})
}

// Webhook applies Stripe subscription events. Events that fail to apply are
// logged and acknowledged so Stripe does not retry them forever.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "read body")
		return
	}
	event, err := h.provider.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid signature")
		return
	}

	upd, err := billing.UpdateFromEvent(event)
	if err != nil {
		h.logger.Error("decode webhook event", "type", event.Type, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if upd == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if upd.UserID != 0 {
		if _, err := h.users.UpdateSubscription(upd.UserID, upd.Subscription); err != nil {
			h.logger.Error("apply webhook event", "type", event.Type, "user_id", upd.UserID, "error", err)
		}
	} else {
		matched, err := h.users.UpdateSubscriptionStatus(upd.SubscriptionID, upd.Subscription.Status, upd.Subscription.Expiry)
		if err != nil {
			h.logger.Error("apply webhook event", "type", event.Type, "subscription", upd.SubscriptionID, "error", err)
		} else if !matched {
			h.logger.Warn("webhook for unknown subscription", "type", event.Type, "subscription", upd.SubscriptionID)
		}
	}
	w.WriteHeader(http.StatusOK)
}
