package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// ArchiveReader reads archived activity back from object storage.
type ArchiveReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// PipelineHandler serves the archive trigger and archive read-back.
type PipelineHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{} // when non-nil, sending triggers one archive run
	archives  ArchiveReader
}

// NewPipelineHandler creates a PipelineHandler with the given logger.
func NewPipelineHandler(logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{logger: logHandler(logger, "pipeline")}
}

// WithTriggerChannel sets the channel to send on when an archive run is
// requested. The archive cron must receive from this channel.
func (h *PipelineHandler) WithTriggerChannel(ch chan<- struct{}) *PipelineHandler {
	h.triggerCh = ch
	return h
}

// WithArchives enables the archive listing and download endpoints.
func (h *PipelineHandler) WithArchives(r ArchiveReader) *PipelineHandler {
	h.archives = r
	return h
}

// TriggerArchive enqueues one archive run with a non-blocking send.
// POST /api/pipeline/archive
func (h *PipelineHandler) TriggerArchive(w http.ResponseWriter, r *http.Request) {
	if h.triggerCh == nil {
		writeError(w, http.StatusServiceUnavailable, "archive pipeline is not running")
		return
	}
	h.logger.InfoContext(r.Context(), "archive run requested")
	select {
	case h.triggerCh <- struct{}{}:
	default:
		// already pending
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      "archive run enqueued",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListArchives returns the archived activity days, newest first.
// GET /api/pipeline/archives
func (h *PipelineHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}
	infos, err := h.archives.List(r.Context(), domain.ActivityArchivePrefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to list archives")
		return
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path > infos[j].Path })
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": infos})
}

// GetArchive streams one archived day as JSON lines.
// GET /api/pipeline/archives/{day}
func (h *PipelineHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}
	day, err := time.Parse(time.DateOnly, r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("day %q: want YYYY-MM-DD", r.PathValue("day")))
		return
	}

	body, err := h.archives.Get(r.Context(), domain.ActivityArchivePath(day))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "get archive failed", slog.String("error", err.Error()))
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted", slog.String("error", err.Error()))
	}
}
