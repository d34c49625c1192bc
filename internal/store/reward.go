package store

import (
	"database/sql"
	"fmt"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Ledger entries ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var taskID sql.NullInt64
	var redeemed int

	err := scanner.Scan(&r.ID, &r.ChildID, &taskID, &r.Title, &r.Description, &r.Points, &redeemed, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.TaskID = int64Ptr(taskID)
	r.Redeemed = redeemed != 0
	return &r, nil
}

const rewardCols = `id, child_id, task_id, title, description, points, redeemed, created_at`

func insertReward(ex execer, r *model.Reward) (int64, error) {
	result, err := ex.Exec(
		`INSERT INTO rewards (child_id, task_id, title, description, points, redeemed) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ChildID, nullInt64(r.TaskID), r.Title, r.Description, r.Points, boolInt(r.Redeemed),
	)
	if err != nil {
		return 0, fmt.Errorf("insert reward: %w", err)
	}
	return result.LastInsertId()
}

func getReward(q interface {
	QueryRow(string, ...any) *sql.Row
}, id int64) (*model.Reward, error) {
	r, err := scanReward(q.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// Credit appends a ledger entry for the child.
func (s *RewardStore) Credit(r model.Reward) (*model.Reward, error) {
	id, err := insertReward(s.db, &r)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	return getReward(s.db, id)
}

// ListByChild returns a child's ledger, newest first.
func (s *RewardStore) ListByChild(childID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT `+rewardCols+` FROM rewards WHERE child_id = ? ORDER BY created_at DESC, id DESC`, childID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// UpdateDetails edits the descriptive fields of an entry. Points are never
// rewritten.
func (s *RewardStore) UpdateDetails(id int64, title, description string) (*model.Reward, error) {
	_, err := s.db.Exec(`UPDATE rewards SET title = ?, description = ? WHERE id = ?`, title, description, id)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

// MarkRedeemed flags an entry as redeemed. The balance is unaffected.
func (s *RewardStore) MarkRedeemed(id int64) (*model.Reward, error) {
	_, err := s.db.Exec(`UPDATE rewards SET redeemed = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("mark reward redeemed: %w", err)
	}
	return s.GetByID(id)
}

// Debit appends a negative entry of cost points only if the child's balance
// covers it. The balance check and the insert are one statement, so two
// concurrent debits cannot both spend the same points. It reports false when
// the balance was insufficient.
func (s *RewardStore) Debit(childID int64, title, description string, cost int) (*model.Reward, bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (child_id, title, description, points, redeemed)
		 SELECT ?, ?, ?, ?, 1
		 WHERE (SELECT COALESCE(SUM(points), 0) FROM rewards WHERE child_id = ?) >= ?`,
		childID, title, description, -cost, childID, cost,
	)
	if err != nil {
		return nil, false, fmt.Errorf("debit reward: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	r, err := s.GetByID(id)
	return r, err == nil, err
}

// --- Balances ---

// GetPointBalance derives a child's balance from the ledger.
func (s *RewardStore) GetPointBalance(childID int64) (*model.PointBalance, error) {
	var pb model.PointBalance
	pb.ChildID = childID

	err := s.db.QueryRow(
		`SELECT c.name,
			COALESCE(SUM(CASE WHEN r.points > 0 THEN r.points END), 0),
			COALESCE(-SUM(CASE WHEN r.points < 0 THEN r.points END), 0),
			COALESCE(SUM(r.redeemed), 0),
			COALESCE(SUM(r.points), 0)
		 FROM children c LEFT JOIN rewards r ON r.child_id = c.id
		 WHERE c.id = ?
		 GROUP BY c.id`,
		childID,
	).Scan(&pb.ChildName, &pb.TotalEarned, &pb.TotalSpent, &pb.RedeemedCount, &pb.Balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get point balance: %w", err)
	}
	return &pb, nil
}

// ListPointBalances returns balances for every child of a parent, highest first.
func (s *RewardStore) ListPointBalances(parentID int64) ([]model.PointBalance, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.name,
			COALESCE(SUM(CASE WHEN r.points > 0 THEN r.points END), 0),
			COALESCE(-SUM(CASE WHEN r.points < 0 THEN r.points END), 0),
			COALESCE(SUM(r.redeemed), 0),
			COALESCE(SUM(r.points), 0) AS balance
		 FROM children c LEFT JOIN rewards r ON r.child_id = c.id
		 WHERE c.parent_id = ?
		 GROUP BY c.id
		 ORDER BY balance DESC, c.name ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list point balances: %w", err)
	}
	defer rows.Close()

	balances := []model.PointBalance{}
	for rows.Next() {
		var pb model.PointBalance
		if err := rows.Scan(&pb.ChildID, &pb.ChildName, &pb.TotalEarned, &pb.TotalSpent, &pb.RedeemedCount, &pb.Balance); err != nil {
			return nil, fmt.Errorf("scan point balance: %w", err)
		}
		balances = append(balances, pb)
	}
	return balances, rows.Err()
}

// --- Catalog ---

func scanPredefined(scanner interface{ Scan(...any) error }) (*model.PredefinedReward, error) {
	var p model.PredefinedReward
	if err := scanner.Scan(&p.ID, &p.Title, &p.Description, &p.PointsRequired, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

const predefinedCols = `id, title, description, points_required, created_at`

func (s *RewardStore) ListCatalog() ([]model.PredefinedReward, error) {
	rows, err := s.db.Query(`SELECT ` + predefinedCols + ` FROM predefined_rewards ORDER BY points_required ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	items := []model.PredefinedReward{}
	for rows.Next() {
		p, err := scanPredefined(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (s *RewardStore) GetCatalogItem(id int64) (*model.PredefinedReward, error) {
	p, err := scanPredefined(s.db.QueryRow(`SELECT `+predefinedCols+` FROM predefined_rewards WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return p, nil
}
