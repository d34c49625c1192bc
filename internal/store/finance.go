package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type FinanceStore struct {
	db *sql.DB
}

func NewFinanceStore(db *sql.DB) *FinanceStore {
	return &FinanceStore{db: db}
}

// --- Transactions ---

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	err := scanner.Scan(&t.ID, &t.UserID, &t.Type, &t.Category, &t.Amount, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const transactionCols = `id, user_id, type, category, amount, description, created_at, updated_at`

func insertTransaction(ex execer, t model.Transaction) (int64, error) {
	result, err := ex.Exec(
		`INSERT INTO transactions (user_id, type, category, amount, description) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Type, t.Category, t.Amount.String(), t.Description,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return result.LastInsertId()
}

func (s *FinanceStore) CreateTransaction(t model.Transaction) (*model.Transaction, error) {
	id, err := insertTransaction(s.db, t)
	if err != nil {
		return nil, err
	}
	return s.GetTransaction(id)
}

func (s *FinanceStore) GetTransaction(id int64) (*model.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRow(`SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *FinanceStore) ListTransactions(userID int64) ([]model.Transaction, error) {
	rows, err := s.db.Query(`SELECT `+transactionCols+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (s *FinanceStore) UpdateTransaction(t model.Transaction) (*model.Transaction, error) {
	_, err := s.db.Exec(
		`UPDATE transactions SET type = ?, category = ?, amount = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.Type, t.Category, t.Amount.String(), t.Description, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	return s.GetTransaction(t.ID)
}

// DeleteTransaction removes a transaction. Shopping items linked to it keep
// existing and lose the link.
func (s *FinanceStore) DeleteTransaction(id int64) error {
	_, err := s.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// Summary totals a user's income and expenses.
func (s *FinanceStore) Summary(userID int64) (*model.FinanceSummary, error) {
	rows, err := s.db.Query(`SELECT type, amount FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("finance summary: %w", err)
	}
	defer rows.Close()

	sum := &model.FinanceSummary{Income: decimal.Zero, Expenses: decimal.Zero}
	for rows.Next() {
		var typ string
		var amount decimal.Decimal
		if err := rows.Scan(&typ, &amount); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		switch typ {
		case model.TransactionIncome:
			sum.Income = sum.Income.Add(amount)
		case model.TransactionExpense:
			sum.Expenses = sum.Expenses.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finance summary: %w", err)
	}
	sum.Balance = sum.Income.Sub(sum.Expenses)
	return sum, nil
}

// --- Shopping items ---

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var it model.ShoppingItem
	var purchased int
	var txID sql.NullInt64
	err := scanner.Scan(&it.ID, &it.UserID, &it.Name, &it.Category, &it.Priority, &it.Notes, &it.Cost,
		&purchased, &txID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.Purchased = purchased != 0
	it.TransactionID = int64Ptr(txID)
	return &it, nil
}

const shoppingItemCols = `id, user_id, name, category, priority, notes, cost, purchased, transaction_id, created_at, updated_at`

// CreateShoppingItem stores the item together with the expense transaction
// that records its cost.
func (s *FinanceStore) CreateShoppingItem(it model.ShoppingItem) (*model.ShoppingItem, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	txID, err := insertTransaction(tx, model.Transaction{
		UserID:      it.UserID,
		Type:        model.TransactionExpense,
		Category:    it.Category,
		Amount:      it.Cost,
		Description: "Shopping: " + it.Name,
	})
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`INSERT INTO shopping_items (user_id, name, category, priority, notes, cost, purchased, transaction_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.UserID, it.Name, it.Category, it.Priority, it.Notes, it.Cost.String(), boolInt(it.Purchased), txID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert shopping item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetShoppingItem(id)
}

func (s *FinanceStore) GetShoppingItem(id int64) (*model.ShoppingItem, error) {
	it, err := scanShoppingItem(s.db.QueryRow(`SELECT `+shoppingItemCols+` FROM shopping_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return it, nil
}

func (s *FinanceStore) ListShoppingItems(userID int64) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(`SELECT `+shoppingItemCols+` FROM shopping_items WHERE user_id = ? ORDER BY purchased ASC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	items := []model.ShoppingItem{}
	for rows.Next() {
		it, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// UpdateShoppingItem saves the item and keeps its linked transaction's
// amount and category in step.
func (s *FinanceStore) UpdateShoppingItem(it model.ShoppingItem) (*model.ShoppingItem, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE shopping_items SET name = ?, category = ?, priority = ?, notes = ?, cost = ?, purchased = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		it.Name, it.Category, it.Priority, it.Notes, it.Cost.String(), boolInt(it.Purchased), it.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update shopping item: %w", err)
	}
	_, err = tx.Exec(
		`UPDATE transactions SET amount = ?, category = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = (SELECT transaction_id FROM shopping_items WHERE id = ?)`,
		it.Cost.String(), it.Category, it.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("sync transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetShoppingItem(it.ID)
}

// DeleteShoppingItem removes the item and its linked transaction.
func (s *FinanceStore) DeleteShoppingItem(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var txID sql.NullInt64
	err = tx.QueryRow(`SELECT transaction_id FROM shopping_items WHERE id = ?`, id).Scan(&txID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get shopping item: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM shopping_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	if txID.Valid {
		if _, err := tx.Exec(`DELETE FROM transactions WHERE id = ?`, txID.Int64); err != nil {
			return fmt.Errorf("delete linked transaction: %w", err)
		}
	}
	return tx.Commit()
}
