package store

import (
	"database/sql"
	"testing"

	"github.com/huzaifasad/backendforfamily/internal/database"
	"github.com/huzaifasad/backendforfamily/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a parent with the given number of children.
func seedFamily(t *testing.T, db *sql.DB, email string, children int) (*model.User, []model.Child) {
	t.Helper()
	us := NewUserStore(db)
	cs := NewChildStore(db)

	parent, err := us.Create(email, "", "Parent", "hash", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	var kids []model.Child
	for i := 0; i < children; i++ {
		c, err := cs.Create(parent.ID, "Kid", email+"-kid"+string(rune('a'+i)), "hash", "", "")
		if err != nil {
			t.Fatalf("create child: %v", err)
		}
		kids = append(kids, *c)
	}
	return parent, kids
}
