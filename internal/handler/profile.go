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

type ProfileHandler struct {
	users    *store.UserStore
	children *store.ChildStore
	files    uploader
	logger   *slog.Logger
}

func NewProfileHandler(us *store.UserStore, cs *store.ChildStore, files uploader, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: us, children: cs, files: files, logger: logger}
}

type parentProfile struct {
	*model.User
	Children []model.Child `json:"children"`
}

// Get returns the caller's profile. Parents also get their children.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	if p.IsChild() {
		c, err := h.children.GetByID(p.ID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if c == nil {
			writeMessage(w, http.StatusNotFound, "profile not found")
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	u, err := h.users.GetByID(p.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "profile not found")
		return
	}
	children, err := h.children.ListByParent(u.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, parentProfile{User: u, Children: children})
}

// Update applies a partial edit of a parent's personal details.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	if p.IsChild() {
		writeMessage(w, http.StatusForbidden, "children cannot edit their profile")
		return
	}

	var upd model.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			writeMessage(w, http.StatusBadRequest, "username cannot be empty")
			return
		}
		upd.Username = &name
	}

	u, err := h.users.UpdateProfile(p.ID, upd)
	if errors.Is(err, store.ErrDuplicate) {
		writeMessage(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("new password must be at least %d characters", auth.MinPasswordLength))
		return
	}

	var current string
	if p.IsChild() {
		c, err := h.children.GetByID(p.ID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if c != nil {
			current = c.PasswordHash
		}
	} else {
		u, err := h.users.GetByID(p.ID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if u != nil {
			current = u.PasswordHash
		}
	}
	if current == "" || !auth.VerifyPassword(current, req.CurrentPassword) {
		writeMessage(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if p.IsChild() {
		err = h.children.UpdatePassword(p.ID, hash)
	} else {
		err = h.users.UpdatePassword(p.ID, hash)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// UploadPicture stores a new profile picture for the caller.
func (h *ProfileHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	url, ok := receiveUpload(w, r, h.files, h.logger, "profile_picture", "profile_pictures")
	if !ok {
		return
	}

	var old string
	var err error
	if p.IsChild() {
		var c *model.Child
		if c, err = h.children.GetByID(p.ID); err == nil && c != nil {
			old = c.ProfilePicture
			err = h.children.UpdateProfilePicture(p.ID, url)
		}
	} else {
		var u *model.User
		if u, err = h.users.GetByID(p.ID); err == nil && u != nil {
			old = u.ProfilePicture
			err = h.users.UpdateProfilePicture(p.ID, url)
		}
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	discard(r.Context(), h.files, h.logger, old)
	writeJSON(w, http.StatusOK, map[string]string{"profile_picture": url})
}
