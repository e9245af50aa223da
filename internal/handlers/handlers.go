package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"noticeboard-backend/internal/auth"
	"noticeboard-backend/internal/events"
	"noticeboard-backend/internal/metrics"
	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/respond"
	"noticeboard-backend/internal/storage"
)

const (
	msgInvalidBody    = "Invalid request body"
	msgInternal       = "Something went wrong"
	msgNoticeNotFound = "Notice not found"
	msgUnauthorized   = "Log in first"
)

type Handler struct {
	notices storage.NoticeStore
	events  events.Publisher
	log     *slog.Logger
	metrics *metrics.Collector
}

func New(notices storage.NoticeStore, publisher events.Publisher, log *slog.Logger, m *metrics.Collector) *Handler {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Handler{
		notices: notices,
		events:  publisher,
		log:     log,
		metrics: m,
	}
}

// RegisterRoutes mounts the notice routes. Callers wrap r with the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/notices", h.CreateNotice)
	r.Get("/notices", h.ListNotices)
	r.Put("/notices/{id}", h.UpdateNotice)
	r.Delete("/notices/{id}", h.DeleteNotice)
}

// noticeRequest is the body of create and update. Absent fields stay nil.
type noticeRequest struct {
	Title    *string `json:"title"`
	Body     *string `json:"body"`
	Category *string `json:"category"`
	Date     *string `json:"date"`
}

func (req noticeRequest) patch() (models.NoticePatch, error) {
	patch := models.NoticePatch{
		Title:    req.Title,
		Body:     req.Body,
		Category: req.Category,
	}
	if req.Date != nil {
		date, err := models.ParseDate(*req.Date)
		if err != nil {
			return models.NoticePatch{}, err
		}
		patch.Date = date
	}
	return patch, nil
}

// CreateNotice creates a notice owned by the caller
// @Summary Create notice
// @Tags notices
// @Accept json
// @Produce json
// @Param notice body noticeRequest true "Notice fields; date is YYYY-MM-DD or RFC 3339"
// @Success 201 {object} models.Notice
// @Failure 400 {object} respond.ErrorResponse "Invalid request body"
// @Failure 401 {object} respond.ErrorResponse "Log in first"
// @Failure 500 {object} respond.ErrorResponse "Something went wrong"
// @Security BearerAuth
// @Router /notices [post]
func (h *Handler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req noticeRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	notice := models.Notice{UserID: userID}
	patch.Apply(&notice)

	if err := h.notices.CreateNotice(r.Context(), &notice); err != nil {
		h.log.Error("create notice", slog.String("user_id", userID), slog.Any("error", err))
		h.metrics.RecordNoticeOp("create", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.metrics.RecordNoticeOp("create", metrics.ResultSuccess)
	h.publish(r.Context(), models.NoticeCreated, &notice)
	respond.JSON(w, http.StatusCreated, notice)
}

// ListNotices lists the caller's notices
// @Summary List notices
// @Description Returns the caller's notices with the owner expanded to name and email
// @Tags notices
// @Produce json
// @Param category query string false "Only notices in this category"
// @Success 200 {array} models.Notice
// @Failure 401 {object} respond.ErrorResponse "Log in first"
// @Failure 500 {object} respond.ErrorResponse "Something went wrong"
// @Security BearerAuth
// @Router /notices [get]
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	notices, err := h.notices.ListNotices(r.Context(), userID, category)
	if err != nil {
		h.log.Error("list notices", slog.String("user_id", userID), slog.Any("error", err))
		h.metrics.RecordNoticeOp("list", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if notices == nil {
		notices = []models.Notice{}
	}

	h.metrics.RecordNoticeOp("list", metrics.ResultSuccess)
	respond.JSON(w, http.StatusOK, notices)
}

// UpdateNotice updates one of the caller's notices
// @Summary Update notice
// @Description Only fields present in the body are changed; an empty body changes nothing. Notices owned by other users are reported as not found.
// @Tags notices
// @Accept json
// @Produce json
// @Param id path string true "Notice ID"
// @Param notice body noticeRequest true "Fields to change"
// @Success 200 {object} models.Notice
// @Failure 400 {object} respond.ErrorResponse "Invalid request body"
// @Failure 401 {object} respond.ErrorResponse "Log in first"
// @Failure 404 {object} respond.ErrorResponse "Notice not found"
// @Failure 500 {object} respond.ErrorResponse "Something went wrong"
// @Security BearerAuth
// @Router /notices/{id} [put]
func (h *Handler) UpdateNotice(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	var req noticeRequest
	if err := respond.Decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	notice, err := h.notices.UpdateNotice(r.Context(), id, userID, patch)
	if err != nil {
		h.log.Error("update notice", slog.String("notice_id", id), slog.Any("error", err))
		h.metrics.RecordNoticeOp("update", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if notice == nil {
		h.metrics.RecordNoticeOp("update", "not_found")
		respond.Error(w, http.StatusNotFound, msgNoticeNotFound)
		return
	}

	h.metrics.RecordNoticeOp("update", metrics.ResultSuccess)
	h.publish(r.Context(), models.NoticeUpdated, notice)
	respond.JSON(w, http.StatusOK, notice)
}

// DeleteNotice deletes one of the caller's notices
// @Summary Delete notice
// @Description Returns the deleted notice. Notices owned by other users are reported as not found.
// @Tags notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} models.Notice
// @Failure 401 {object} respond.ErrorResponse "Log in first"
// @Failure 404 {object} respond.ErrorResponse "Notice not found"
// @Failure 500 {object} respond.ErrorResponse "Something went wrong"
// @Security BearerAuth
// @Router /notices/{id} [delete]
func (h *Handler) DeleteNotice(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	notice, err := h.notices.DeleteNotice(r.Context(), id, userID)
	if err != nil {
		h.log.Error("delete notice", slog.String("notice_id", id), slog.Any("error", err))
		h.metrics.RecordNoticeOp("delete", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if notice == nil {
		h.metrics.RecordNoticeOp("delete", "not_found")
		respond.Error(w, http.StatusNotFound, msgNoticeNotFound)
		return
	}

	h.metrics.RecordNoticeOp("delete", metrics.ResultSuccess)
	h.publish(r.Context(), models.NoticeDeleted, notice)
	respond.JSON(w, http.StatusOK, notice)
}

// publish never fails the request; the change is already stored.
func (h *Handler) publish(ctx context.Context, eventType string, notice *models.Notice) {
	if err := h.events.Publish(ctx, eventType, notice); err != nil {
		h.log.Warn("publish notice event",
			slog.String("type", eventType),
			slog.String("notice_id", notice.ID),
			slog.Any("error", err))
	}
}
