package handler

import (
	"log/slog"
	"net/http"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/reward"
)

type RewardHandler struct {
	ledger *reward.Ledger
	notifier
	logger *slog.Logger
}

func NewRewardHandler(l *reward.Ledger, hub broadcaster, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{ledger: l, notifier: notifier{hub}, logger: logger}
}

// childID is the caller for child routes and the {childId} path value for
// parent routes.
func childID(r *http.Request, p auth.Principal) (int64, error) {
	if p.IsChild() {
		return p.ID, nil
	}
	return parsePathID(r, "childId")
}

type creditRequest struct {
	ChildID     int64  `json:"child_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

func (h *RewardHandler) Credit(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req creditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChildID <= 0 {
		writeMessage(w, http.StatusBadRequest, "child_id is required")
		return
	}
	entry, err := h.ledger.Credit(p, req.ChildID, req.Title, req.Description, req.Points)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "reward", "created", entry.ID, map[string]any{"child_id": entry.ChildID, "points": entry.Points})
	writeResource(w, http.StatusCreated, "Reward added", "reward", entry)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := childID(r, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	entries, err := h.ledger.List(p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *RewardHandler) Balance(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := childID(r, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	pb, err := h.ledger.Balance(p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

func (h *RewardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	board, err := h.ledger.Leaderboard(p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if board == nil {
		board = []model.PointBalance{}
	}
	writeJSON(w, http.StatusOK, board)
}

// Redeem marks a ledger entry as redeemed. Repeating it is harmless.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	entry, err := h.ledger.Redeem(p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "reward", "redeemed", entry.ID, map[string]any{"child_id": entry.ChildID})
	writeResource(w, http.StatusOK, "Reward redeemed", "reward", entry)
}

type rewardDetailsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *RewardHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req rewardDetailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.ledger.UpdateDetails(p, id, req.Title, req.Description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "reward", "updated", entry.ID, map[string]any{"child_id": entry.ChildID})
	writeResource(w, http.StatusOK, "Reward updated", "reward", entry)
}

func (h *RewardHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.Catalog()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []model.PredefinedReward{}
	}
	writeJSON(w, http.StatusOK, items)
}

type redeemCatalogRequest struct {
	ChildID int64 `json:"child_id"`
}

type redeemCatalogResponse struct {
	Message string              `json:"message"`
	Entry   *model.Reward       `json:"entry"`
	Balance *model.PointBalance `json:"balance"`
}

// RedeemCatalog spends points on a catalog item. Parents name the child in the
// body; children always redeem for themselves.
func (h *RewardHandler) RedeemCatalog(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	itemID, err := parsePathID(r, "itemId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target := p.ID
	if !p.IsChild() {
		var req redeemCatalogRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ChildID <= 0 {
			writeMessage(w, http.StatusBadRequest, "child_id is required")
			return
		}
		target = req.ChildID
	}

	entry, pb, err := h.ledger.RedeemCatalog(p, target, itemID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(p.FamilyID, "reward", "redeemed", entry.ID, map[string]any{"child_id": target, "balance": pb.Balance})
	writeJSON(w, http.StatusCreated, redeemCatalogResponse{Message: "Reward redeemed", Entry: entry, Balance: pb})
}
