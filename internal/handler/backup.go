package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/huzaifasad/backendforfamily/internal/auth"
	"github.com/huzaifasad/backendforfamily/internal/backup"
	"github.com/huzaifasad/backendforfamily/internal/model"
)

type backupRunner interface {
	Enabled() bool
	Run(ctx context.Context, source string) (*model.Backup, error)
	List(limit int) ([]model.Backup, error)
}

type BackupHandler struct {
	backups backupRunner
	logger  *slog.Logger
}

func NewBackupHandler(b backupRunner, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: b, logger: logger}
}

// List returns recent backups, newest first. ?limit caps the count (1-200).
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeMessage(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	list, err := h.backups.List(limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": h.backups.Enabled(), "backups": list})
}

// Run takes a snapshot immediately.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	rec, err := h.backups.Run(r.Context(), backup.SourceManual)
	if errors.Is(err, backup.ErrDisabled) {
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("manual backup", "admin_id", p.ID, "backup_id", rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}
