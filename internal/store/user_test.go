package store

import (
	"errors"
	"testing"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.Create("alice@example.com", "alice", "Alice", "hash", model.RoleParent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Role != model.RoleParent {
		t.Errorf("role = %q, want parent", u.Role)
	}
	if u.SubscriptionStatus != model.SubscriptionInactive {
		t.Errorf("subscription status = %q, want inactive", u.SubscriptionStatus)
	}
	if u.SubscriptionPlan != "free" {
		t.Errorf("subscription plan = %q, want free", u.SubscriptionPlan)
	}
}

func TestUserCreateDuplicate(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	if _, err := us.Create("alice@example.com", "alice", "Alice", "hash", model.RoleParent); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("alice@example.com", "other", "Alice2", "hash", model.RoleParent); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
	}
	if _, err := us.Create("bob@example.com", "alice", "Bob", "hash", model.RoleParent); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate username err = %v, want ErrDuplicate", err)
	}
}

func TestUserUpdateEmail(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	alice, _ := us.Create("alice@example.com", "alice", "Alice", "hash", model.RoleParent)
	if _, err := us.Create("bob@example.com", "bob", "Bob", "hash", model.RoleParent); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	if err := us.UpdateEmail(alice.ID, "alice@family.example"); err != nil {
		t.Fatalf("update email: %v", err)
	}
	got, _ := us.GetByEmail("alice@family.example")
	if got == nil || got.ID != alice.ID {
		t.Fatalf("lookup by new email = %+v", got)
	}
	if err := us.UpdateEmail(alice.ID, "bob@example.com"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("taken email err = %v, want ErrDuplicate", err)
	}
}

func TestUserEmptyUsernamesDoNotCollide(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	if _, err := us.Create("a@example.com", "", "A", "hash", model.RoleParent); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := us.Create("b@example.com", "", "B", "hash", model.RoleParent); err != nil {
		t.Fatalf("create second: %v", err)
	}
}

func TestUserLookups(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, _ := us.Create("alice@example.com", "alice", "Alice", "hash", model.RoleParent)

	got, err := us.GetByEmail("alice@example.com")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetByEmail = %v, %v", got, err)
	}
	got, err = us.GetByUsername("alice")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetByUsername = %v, %v", got, err)
	}
	got, err = us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("GetByEmail missing: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing user")
	}
}

func TestUserUpdateProfile(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	u, _ := us.Create("alice@example.com", "alice", "Alice", "hash", model.RoleParent)

	name := "Alice Smith"
	phone := "555-0100"
	updated, err := us.UpdateProfile(u.ID, model.ProfileUpdate{
		FullName:    &name,
		PhoneNumber: &phone,
		Address:     &model.Address{City: "Berlin", Country: "DE"},
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FullName != name {
		t.Errorf("full name = %q, want %q", updated.FullName, name)
	}
	if updated.PhoneNumber != phone {
		t.Errorf("phone = %q, want %q", updated.PhoneNumber, phone)
	}
	if updated.Address.City != "Berlin" {
		t.Errorf("city = %q, want Berlin", updated.Address.City)
	}
	if updated.Username != "alice" {
		t.Errorf("username = %q, should be unchanged", updated.Username)
	}
}

func TestUserSubscription(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	u, _ := us.Create("alice@example.com", "alice", "Alice", "hash", model.RoleParent)

	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	updated, err := us.UpdateSubscription(u.ID, model.Subscription{
		Status:     model.SubscriptionActive,
		Plan:       "premium",
		Expiry:     &expiry,
		CustomerID: "cus_123",
		StripeID:   "sub_123",
	})
	if err != nil {
		t.Fatalf("update subscription: %v", err)
	}
	if !updated.SubscriptionActiveAt(time.Date(2029, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected active subscription before expiry")
	}
	if updated.SubscriptionActiveAt(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected lapsed subscription after expiry")
	}

	ok, err := us.UpdateSubscriptionStatus("sub_123", model.SubscriptionCanceled, nil)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !ok {
		t.Fatal("expected a user to match sub_123")
	}
	got, _ := us.GetByID(u.ID)
	if got.SubscriptionStatus != model.SubscriptionCanceled {
		t.Errorf("status = %q, want canceled", got.SubscriptionStatus)
	}
	if got.SubscriptionExpiry == nil {
		t.Error("expiry should be kept when not provided")
	}

	byCustomer, err := us.GetByStripeCustomerID("cus_123")
	if err != nil || byCustomer == nil || byCustomer.ID != u.ID {
		t.Errorf("GetByStripeCustomerID = %v, %v", byCustomer, err)
	}

	ok, err = us.UpdateSubscriptionStatus("sub_unknown", model.SubscriptionCanceled, nil)
	if err != nil || ok {
		t.Errorf("unknown subscription = %v, %v; want false, nil", ok, err)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	parent, kids := seedFamily(t, db, "p@example.com", 2)
	us := NewUserStore(db)

	if err := us.Delete(parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := NewChildStore(db).GetByID(kids[0].ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got != nil {
		t.Error("children should be removed with their parent")
	}
}

func TestAnalytics(t *testing.T) {
	db := openTestDB(t)
	seedFamily(t, db, "p1@example.com", 2)
	seedFamily(t, db, "p2@example.com", 1)

	a, err := NewUserStore(db).Analytics(time.Now())
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.Users != 2 {
		t.Errorf("users = %d, want 2", a.Users)
	}
	if a.Children != 3 {
		t.Errorf("children = %d, want 3", a.Children)
	}
	if a.ActiveSubscriptions != 0 {
		t.Errorf("active subscriptions = %d, want 0", a.ActiveSubscriptions)
	}
}
