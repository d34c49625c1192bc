package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

type ChildHandler struct {
	children *store.ChildStore
	users    *store.UserStore
	files    uploader
	notifier
	logger *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, us *store.UserStore, files uploader, hub broadcaster, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{children: cs, users: us, files: files, notifier: notifier{hub}, logger: logger}
}

type childRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DateOfBirth string `json:"date_of_birth"`
	Grade       string `json:"grade"`
}

// Create adds a child account under the calling parent. The parent needs a
// username because children sign in with it.
func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req childRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	email, ok := normalizeEmail(req.Email)
	switch {
	case req.Name == "":
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	case !ok:
		writeMessage(w, http.StatusBadRequest, "a valid email is required")
		return
	case len(req.Password) < auth.MinPasswordLength:
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
		return
	}
	if req.DateOfBirth != "" {
		if _, err := parseDate(req.DateOfBirth); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	parent, err := h.users.GetByID(p.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if parent == nil || parent.Username == "" {
		writeMessage(w, http.StatusBadRequest, "set a username on your profile before adding children")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.children.Create(p.ID, req.Name, email, hash, req.DateOfBirth, strings.TrimSpace(req.Grade))
	if errors.Is(err, store.ErrDuplicate) {
		writeMessage(w, http.StatusConflict, "a child with this email already exists")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify(p.FamilyID, "child", "created", c.ID, nil)
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	children, err := h.children.ListByParent(p.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

// ownChild loads a child of the calling parent, writing 404 otherwise.
func (h *ChildHandler) ownChild(w http.ResponseWriter, r *http.Request) (*model.Child, bool) {
	p, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	c, err := h.children.GetByID(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if c == nil || c.ParentID != p.ID {
		writeMessage(w, http.StatusNotFound, "child not found")
		return nil, false
	}
	return c, true
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownChild(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update edits name, date of birth and grade. Empty fields are kept.
func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownChild(w, r)
	if !ok {
		return
	}
	var req childRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if v := strings.TrimSpace(req.Name); v != "" {
		c.Name = v
	}
	if req.DateOfBirth != "" {
		if _, err := parseDate(req.DateOfBirth); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		c.DateOfBirth = req.DateOfBirth
	}
	if v := strings.TrimSpace(req.Grade); v != "" {
		c.Grade = v
	}

	updated, err := h.children.Update(c.ID, c.Name, c.DateOfBirth, c.Grade)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(c.ParentID, "child", "updated", c.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a child together with their tasks and ledger.
func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownChild(w, r)
	if !ok {
		return
	}
	if err := h.children.Delete(c.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(c.ParentID, "child", "deleted", c.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChildHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownChild(w, r)
	if !ok {
		return
	}
	url, ok := receiveUpload(w, r, h.files, h.logger, "profile_picture", "profile_pictures")
	if !ok {
		return
	}
	if err := h.children.UpdateProfilePicture(c.ID, url); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	discard(r.Context(), h.files, h.logger, c.ProfilePicture)
	h.notify(c.ParentID, "child", "updated", c.ID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"profile_picture": url})
}
