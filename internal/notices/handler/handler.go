// Package handler exposes the notice setup journey over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wrls/internal/notices/models"
	"wrls/internal/notices/service"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/platform/httputil"
	"wrls/pkg/requestcontext"
)

// Service defines the notice setup operations the handlers call.
type Service interface {
	CreateSession(ctx context.Context, cmd service.SetupCommand) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Check(ctx context.Context, id uuid.UUID) (*service.CheckResult, error)
	Download(ctx context.Context, id uuid.UUID) (*service.Download, error)
	Send(ctx context.Context, id uuid.UUID) (*service.SendResult, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*service.EventDetail, error)
}

// Handler wires notice endpoints to the notice service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a notices handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the notice endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/notices/setup", h.HandleCreateSession)
	r.Get("/notices/setup/{sessionId}", h.HandleGetSession)
	r.Get("/notices/setup/{sessionId}/check", h.HandleCheck)
	r.Get("/notices/setup/{sessionId}/download", h.HandleDownload)
	r.Post("/notices/setup/{sessionId}/send", h.HandleSend)
	r.Get("/notices/events/{eventId}", h.HandleGetEvent)
}

// HandleCreateSession handles POST /notices/setup.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.CreateSession(ctx, req.ToCommand())
	if err != nil {
		h.writeError(ctx, w, "failed to create notice setup session", err)
		return
	}

	w.Header().Set("Location", "/notices/setup/"+session.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

// HandleGetSession handles GET /notices/setup/{sessionId}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "sessionId")
	if !ok {
		return
	}

	session, err := h.service.GetSession(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "failed to load notice setup session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleCheck handles GET /notices/setup/{sessionId}/check.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id, ok := h.pathID(w, r, "sessionId")
	if !ok {
		return
	}

	result, err := h.service.Check(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "failed to check notice recipients", err)
		return
	}

	h.logger.InfoContext(ctx, "notice recipients checked",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", id,
		"recipient_count", result.RecipientCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromCheckResult(result))
}

// HandleDownload handles GET /notices/setup/{sessionId}/download.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "sessionId")
	if !ok {
		return
	}

	download, err := h.service.Download(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "failed to download notice recipients", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(download.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(download.Body)
}

// HandleSend handles POST /notices/setup/{sessionId}/send.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "sessionId")
	if !ok {
		return
	}

	result, err := h.service.Send(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "failed to send notice", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleGetEvent handles GET /notices/events/{eventId}.
func (h *Handler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "eventId")
	if !ok {
		return
	}

	detail, err := h.service.GetEvent(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "failed to load notice", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid path id",
			"request_id", requestcontext.RequestID(r.Context()),
			"param", param,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid "+param))
		return uuid.Nil, false
	}
	return id, true
}

// writeError logs client faults at warn and everything else at error.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
