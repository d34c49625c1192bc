package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var username sql.NullString
	var expiry sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.Email, &username, &u.FullName, &u.PasswordHash, &u.Role,
		&u.PhoneNumber, &u.DateOfBirth, &u.Gender, &u.Occupation,
		&u.Address.Street, &u.Address.City, &u.Address.State, &u.Address.ZipCode, &u.Address.Country,
		&u.ProfilePicture, &u.SubscriptionStatus, &u.SubscriptionPlan, &expiry,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.SubscriptionExpiry = timePtr(expiry)
	return &u, nil
}

const userCols = `id, email, username, full_name, password_hash, role,
	phone_number, date_of_birth, gender, occupation,
	street, city, state, zip_code, country,
	profile_picture, subscription_status, subscription_plan, subscription_expiry,
	stripe_customer_id, stripe_subscription_id, created_at, updated_at`

// Create inserts a user. It returns ErrDuplicate when the email or username is taken.
func (s *UserStore) Create(email, username, fullName, passwordHash string, role model.Role) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, username, full_name, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		email, nullString(username), fullName, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	return s.getOne(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	return s.getOne(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	return s.getOne(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
}

func (s *UserStore) GetByStripeCustomerID(customerID string) (*model.User, error) {
	if customerID == "" {
		return nil, nil
	}
	return s.getOne(`SELECT `+userCols+` FROM users WHERE stripe_customer_id = ?`, customerID)
}

func (s *UserStore) getOne(query string, arg any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List returns all users, newest first.
func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateProfile applies the non-nil fields of upd.
func (s *UserStore) UpdateProfile(id int64, upd model.ProfileUpdate) (*model.User, error) {
	u, err := s.GetByID(id)
	if err != nil || u == nil {
		return u, err
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&u.FullName, upd.FullName)
	apply(&u.Username, upd.Username)
	apply(&u.PhoneNumber, upd.PhoneNumber)
	apply(&u.DateOfBirth, upd.DateOfBirth)
	apply(&u.Gender, upd.Gender)
	apply(&u.Occupation, upd.Occupation)
	if upd.Address != nil {
		u.Address = *upd.Address
	}

	_, err = s.db.Exec(
		`UPDATE users SET full_name = ?, username = ?, phone_number = ?, date_of_birth = ?,
			gender = ?, occupation = ?, street = ?, city = ?, state = ?, zip_code = ?, country = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		u.FullName, nullString(u.Username), u.PhoneNumber, u.DateOfBirth,
		u.Gender, u.Occupation, u.Address.Street, u.Address.City, u.Address.State, u.Address.ZipCode, u.Address.Country,
		id,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateEmail changes the login email. A taken address returns ErrDuplicate.
func (s *UserStore) UpdateEmail(id int64, email string) error {
	_, err := s.db.Exec(`UPDATE users SET email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, email, id)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

func (s *UserStore) UpdateProfilePicture(id int64, url string) error {
	_, err := s.db.Exec(`UPDATE users SET profile_picture = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("update profile picture: %w", err)
	}
	return nil
}

func (s *UserStore) SetStripeCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, customerID, id)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return nil
}

// UpdateSubscription overwrites the subscription fields. Empty customer and
// subscription IDs keep the stored values.
func (s *UserStore) UpdateSubscription(id int64, sub model.Subscription) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET subscription_status = ?, subscription_plan = ?, subscription_expiry = ?,
			stripe_customer_id = COALESCE(NULLIF(?, ''), stripe_customer_id),
			stripe_subscription_id = COALESCE(NULLIF(?, ''), stripe_subscription_id),
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		sub.Status, sub.Plan, nullTime(sub.Expiry), sub.CustomerID, sub.StripeID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return s.GetByID(id)
}

// UpdateSubscriptionStatus sets the status of whichever user holds the given
// Stripe subscription. It reports whether a user matched.
func (s *UserStore) UpdateSubscriptionStatus(stripeSubscriptionID, status string, expiry *time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users SET subscription_status = ?,
			subscription_expiry = COALESCE(?, subscription_expiry),
			updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ? AND stripe_subscription_id != ''`,
		status, nullTime(expiry), stripeSubscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("update subscription status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Analytics returns platform-wide counts for the admin dashboard.
func (s *UserStore) Analytics(now time.Time) (*model.Analytics, error) {
	var a model.Analytics
	err := s.db.QueryRow(
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'parent'),
			(SELECT COUNT(*) FROM children),
			(SELECT COUNT(*) FROM tasks),
			(SELECT COUNT(*) FROM tasks WHERE status = 'done'),
			(SELECT COUNT(*) FROM users WHERE subscription_status = 'active'
				AND (subscription_expiry IS NULL OR subscription_expiry > ?))`,
		now.UTC(),
	).Scan(&a.Users, &a.Children, &a.Tasks, &a.CompletedTasks, &a.ActiveSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return &a, nil
}
