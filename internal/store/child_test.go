package store

import (
	"errors"
	"testing"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

func TestChildCRUD(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	cs := NewChildStore(db)

	parent, err := us.Create("p@example.com", "parentname", "Parent", "hash", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	c, err := cs.Create(parent.ID, "Mia", "mia@example.com", "hash", "2015-04-01", "3")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if c.ParentID != parent.ID {
		t.Errorf("parent_id = %d, want %d", c.ParentID, parent.ID)
	}

	if _, err := cs.Create(parent.ID, "Other", "mia@example.com", "hash", "", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
	}

	got, err := cs.GetByLogin("mia@example.com", "parentname")
	if err != nil {
		t.Fatalf("get by login: %v", err)
	}
	if got == nil || got.ID != c.ID {
		t.Fatalf("GetByLogin = %v, want child %d", got, c.ID)
	}
	got, err = cs.GetByLogin("mia@example.com", "someoneelse")
	if err != nil {
		t.Fatalf("get by login wrong parent: %v", err)
	}
	if got != nil {
		t.Error("expected nil for wrong parent username")
	}

	updated, err := cs.Update(c.ID, "Mia R.", "2015-04-01", "4")
	if err != nil {
		t.Fatalf("update child: %v", err)
	}
	if updated.Name != "Mia R." || updated.Grade != "4" {
		t.Errorf("updated = %+v", updated)
	}

	list, err := cs.ListByParent(parent.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}

	if err := cs.Delete(c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := cs.GetByID(c.ID); got != nil {
		t.Error("expected child to be deleted")
	}
}
