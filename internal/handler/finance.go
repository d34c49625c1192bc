package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

var shoppingPriorities = map[string]bool{"High": true, "Medium": true, "Low": true}

type FinanceHandler struct {
	finance *store.FinanceStore
	notifier
	logger *slog.Logger
}

func NewFinanceHandler(fs *store.FinanceStore, hub broadcaster, logger *slog.Logger) *FinanceHandler {
	return &FinanceHandler{finance: fs, notifier: notifier{hub}, logger: logger}
}

func (h *FinanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	sum, err := h.finance.Summary(p.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// --- Transactions ---

type transactionRequest struct {
	Type        *string          `json:"type"`
	Category    *string          `json:"category"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
}

func (req transactionRequest) apply(t *model.Transaction) string {
	if req.Type != nil {
		t.Type = strings.ToLower(strings.TrimSpace(*req.Type))
	}
	if req.Category != nil {
		t.Category = strings.TrimSpace(*req.Category)
	}
	if req.Amount != nil {
		t.Amount = *req.Amount
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	switch {
	case t.Type != model.TransactionIncome && t.Type != model.TransactionExpense:
		return "type must be income or expense"
	case t.Category == "":
		return "category is required"
	case !t.Amount.IsPositive():
		return "amount must be positive"
	}
	return ""
}

func (h *FinanceHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	txs, err := h.finance.ListTransactions(p.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *FinanceHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t := model.Transaction{UserID: p.FamilyID}
	if msg := req.apply(&t); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	created, err := h.finance.CreateTransaction(t)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "transaction", "created", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *FinanceHandler) ownTransaction(w http.ResponseWriter, r *http.Request) (*model.Transaction, bool) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	t, err := h.finance.GetTransaction(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if t == nil || t.UserID != p.FamilyID {
		writeMessage(w, http.StatusNotFound, "transaction not found")
		return nil, false
	}
	return t, true
}

func (h *FinanceHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownTransaction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *FinanceHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownTransaction(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.apply(t); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	updated, err := h.finance.UpdateTransaction(*t)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(t.UserID, "transaction", "updated", t.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTransaction removes the transaction. Shopping items linked to it
// keep existing without a link.
func (h *FinanceHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownTransaction(w, r)
	if !ok {
		return
	}
	if err := h.finance.DeleteTransaction(t.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(t.UserID, "transaction", "deleted", t.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

// --- Shopping items ---

type shoppingItemRequest struct {
	Name      *string          `json:"name"`
	Category  *string          `json:"category"`
	Priority  *string          `json:"priority"`
	Notes     *string          `json:"notes"`
	Cost      *decimal.Decimal `json:"cost"`
	Purchased *bool            `json:"purchased"`
}

func (req shoppingItemRequest) apply(it *model.ShoppingItem) string {
	if req.Name != nil {
		it.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		it.Category = strings.TrimSpace(*req.Category)
	}
	if req.Priority != nil {
		it.Priority = strings.TrimSpace(*req.Priority)
	}
	if req.Notes != nil {
		it.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Cost != nil {
		it.Cost = *req.Cost
	}
	if req.Purchased != nil {
		it.Purchased = *req.Purchased
	}
	if it.Priority == "" {
		it.Priority = "Medium"
	}
	switch {
	case it.Name == "":
		return "name is required"
	case it.Category == "":
		return "category is required"
	case !shoppingPriorities[it.Priority]:
		return "priority must be High, Medium or Low"
	case it.Cost.IsNegative():
		return "cost must not be negative"
	}
	return ""
}

func (h *FinanceHandler) ListShoppingItems(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	items, err := h.finance.ListShoppingItems(p.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateShoppingItem also records the item's cost as an expense.
func (h *FinanceHandler) CreateShoppingItem(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req shoppingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it := model.ShoppingItem{UserID: p.FamilyID}
	if msg := req.apply(&it); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	created, err := h.finance.CreateShoppingItem(it)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "shopping_item", "created", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *FinanceHandler) ownShoppingItem(w http.ResponseWriter, r *http.Request) (*model.ShoppingItem, bool) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	it, err := h.finance.GetShoppingItem(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if it == nil || it.UserID != p.FamilyID {
		writeMessage(w, http.StatusNotFound, "shopping item not found")
		return nil, false
	}
	return it, true
}

func (h *FinanceHandler) UpdateShoppingItem(w http.ResponseWriter, r *http.Request) {
	it, ok := h.ownShoppingItem(w, r)
	if !ok {
		return
	}
	var req shoppingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.apply(it); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	updated, err := h.finance.UpdateShoppingItem(*it)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(it.UserID, "shopping_item", "updated", it.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *FinanceHandler) DeleteShoppingItem(w http.ResponseWriter, r *http.Request) {
	it, ok := h.ownShoppingItem(w, r)
	if !ok {
		return
	}
	if err := h.finance.DeleteShoppingItem(it.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(it.UserID, "shopping_item", "deleted", it.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}
