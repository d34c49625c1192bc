// Package reward manages children's points ledgers: manual credits, ad-hoc
// redemption flags and catalog purchases. Balances are always derived from
// the ledger, never stored.
package reward

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/huzaifasad/backendforfamily/internal/apperr"
	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

const (
	DefaultTitle       = "Task Completion Reward"
	DefaultDescription = "Reward for completing tasks."
)

type Ledger struct {
	rewards  *store.RewardStore
	children *store.ChildStore
	logger   *slog.Logger
}

func NewLedger(rewards *store.RewardStore, children *store.ChildStore, logger *slog.Logger) *Ledger {
	return &Ledger{rewards: rewards, children: children, logger: logger}
}

// authorizeChild allows a parent acting on their own child, the child acting
// on themself, or an admin.
func (l *Ledger) authorizeChild(p auth.Principal, childID int64) (*model.Child, error) {
	child, err := l.children.GetByID(childID)
	if err != nil {
		return nil, err
	}
	switch {
	case p.IsAdmin():
		if child == nil {
			return nil, apperr.NotFound("child not found")
		}
		return child, nil
	case p.IsParent():
		if child == nil || child.ParentID != p.ID {
			return nil, apperr.Forbidden("child not found or not yours")
		}
	case p.IsChild():
		if child == nil || child.ID != p.ID {
			return nil, apperr.Forbidden("not allowed to access another child's rewards")
		}
	default:
		return nil, apperr.Forbidden("not allowed")
	}
	return child, nil
}

// Credit grants points to a child. Only the child's parent may do it.
func (l *Ledger) Credit(p auth.Principal, childID int64, title, description string, points int) (*model.Reward, error) {
	if !p.IsParent() {
		return nil, apperr.Forbidden("only parents can grant rewards")
	}
	if points <= 0 {
		return nil, apperr.Validation("points must be positive")
	}
	if _, err := l.authorizeChild(p, childID); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultDescription
	}

	r, err := l.rewards.Credit(model.Reward{ChildID: childID, Title: title, Description: description, Points: points})
	if err != nil {
		return nil, err
	}
	l.logger.Info("reward credited", "child_id", childID, "points", points)
	return r, nil
}

func (l *Ledger) List(p auth.Principal, childID int64) ([]model.Reward, error) {
	if _, err := l.authorizeChild(p, childID); err != nil {
		return nil, err
	}
	return l.rewards.ListByChild(childID)
}

func (l *Ledger) Balance(p auth.Principal, childID int64) (*model.PointBalance, error) {
	if _, err := l.authorizeChild(p, childID); err != nil {
		return nil, err
	}
	pb, err := l.rewards.GetPointBalance(childID)
	if err != nil {
		return nil, err
	}
	if pb == nil {
		return nil, apperr.NotFound("child not found")
	}
	return pb, nil
}

// Leaderboard returns balances for all of a parent's children.
func (l *Ledger) Leaderboard(p auth.Principal) ([]model.PointBalance, error) {
	if !p.IsParent() {
		return nil, apperr.Forbidden("only parents can view the leaderboard")
	}
	return l.rewards.ListPointBalances(p.ID)
}

func (l *Ledger) authorizeEntry(p auth.Principal, rewardID int64) (*model.Reward, error) {
	r, err := l.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("reward not found")
	}
	if _, err := l.authorizeChild(p, r.ChildID); err != nil {
		return nil, err
	}
	return r, nil
}

// Redeem flags an entry as redeemed. The balance does not change.
func (l *Ledger) Redeem(p auth.Principal, rewardID int64) (*model.Reward, error) {
	r, err := l.authorizeEntry(p, rewardID)
	if err != nil {
		return nil, err
	}
	if r.Redeemed {
		return r, nil
	}
	return l.rewards.MarkRedeemed(rewardID)
}

// UpdateDetails edits an entry's title and description. Points are immutable.
func (l *Ledger) UpdateDetails(p auth.Principal, rewardID int64, title, description string) (*model.Reward, error) {
	if !p.IsParent() {
		return nil, apperr.Forbidden("only parents can edit rewards")
	}
	r, err := l.authorizeEntry(p, rewardID)
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(title); t != "" {
		r.Title = t
	}
	if d := strings.TrimSpace(description); d != "" {
		r.Description = d
	}
	return l.rewards.UpdateDetails(rewardID, r.Title, r.Description)
}

func (l *Ledger) Catalog() ([]model.PredefinedReward, error) {
	return l.rewards.ListCatalog()
}

// RedeemCatalog spends a catalog item's cost from the child's balance. It
// fails with ErrInsufficientBalance, leaving the ledger unchanged, when the
// balance is below the cost.
func (l *Ledger) RedeemCatalog(p auth.Principal, childID, itemID int64) (*model.Reward, *model.PointBalance, error) {
	if p.IsAdmin() {
		return nil, nil, apperr.Forbidden("admins cannot redeem rewards")
	}
	if _, err := l.authorizeChild(p, childID); err != nil {
		return nil, nil, err
	}
	item, err := l.rewards.GetCatalogItem(itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, apperr.NotFound("catalog reward not found")
	}

	entry, ok, err := l.rewards.Debit(childID, "Redeemed: "+item.Title, item.Description, item.PointsRequired)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%q needs %d points: %w", item.Title, item.PointsRequired, apperr.ErrInsufficientBalance)
	}

	pb, err := l.rewards.GetPointBalance(childID)
	if err != nil {
		return nil, nil, err
	}
	l.logger.Info("catalog reward redeemed", "child_id", childID, "item_id", itemID, "cost", item.PointsRequired)
	return entry, pb, nil
}
