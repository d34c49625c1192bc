package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/huzaifasad/backendforfamily/internal/blob"
)

// uploader stores files and returns their public URLs.
type uploader interface {
	Enabled() bool
	MaxSize() int64
	Upload(ctx context.Context, folder, filename string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// receiveUpload stores the multipart file in field under folder. It writes the
// error response itself and reports whether the upload succeeded.
func receiveUpload(w http.ResponseWriter, r *http.Request, files uploader, logger *slog.Logger, field, folder string) (string, bool) {
	if files == nil || !files.Enabled() {
		writeMessage(w, http.StatusServiceUnavailable, "file uploads are not configured")
		return "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, files.MaxSize()+64<<10)
	file, header, err := r.FormFile(field)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "file is too large")
			return "", false
		}
		writeMessage(w, http.StatusBadRequest, "missing file field "+field)
		return "", false
	}
	defer file.Close()

	url, err := files.Upload(r.Context(), folder, header.Filename, file)
	switch {
	case errors.Is(err, blob.ErrUnsupportedType):
		writeMessage(w, http.StatusBadRequest, err.Error())
		return "", false
	case errors.Is(err, blob.ErrTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, err.Error())
		return "", false
	case err != nil:
		writeError(w, r, logger, err)
		return "", false
	}
	return url, true
}

// discard removes a replaced upload; failures are only logged.
func discard(ctx context.Context, files uploader, logger *slog.Logger, url string) {
	if url == "" {
		return
	}
	if err := files.Delete(ctx, url); err != nil {
		logger.Warn("delete replaced upload", "url", url, "error", err)
	}
}
