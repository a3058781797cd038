package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/attendance"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/lock"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/schedule"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timeline"
)

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDCtxKey).(string)
	return id
}

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "requestID", requestIDFrom(r), "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
		http.Error(w, "服务器内部错误", http.StatusInternalServerError)
	}
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

// errorResponseWithData 用于需要把额度等详细信息返回给前端的错误
func (h *Handler) errorResponseWithData(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: false,
		Message: msg,
		Data:    data,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		h.errorResponse(w, r, err.Error())
		return
	}

	h.errorResponse(w, r, validationErrors[0].Translate(h.translator))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Message: "服务器内部错误",
		Data:    nil,
	})
}

// retryableError 表示基础设施暂时不可用，客户端可以稍后重试
func (h *Handler) retryableError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	slog.Warn("可重试的错误", "requestID", requestIDFrom(r), "method", r.Method, "path", r.URL.Path, "error", err)
	w.Header().Set("Retry-After", "1")
	h.writeJSON(w, r, http.StatusServiceUnavailable, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

// domainError 把业务错误转换为响应，未识别的错误按服务器内部错误处理
func (h *Handler) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		quotaErr      *breaks.QuotaError
		capacityErr   *breaks.CapacityError
		transitionErr *breaks.TransitionError
	)

	switch {
	case errors.As(err, &quotaErr):
		h.errorResponseWithData(w, r, quotaErr.Error(), quotaErr)
	case errors.As(err, &capacityErr):
		h.errorResponseWithData(w, r, capacityErr.Error(), capacityErr)
	case errors.As(err, &transitionErr):
		h.errorResponse(w, r, transitionErr.Error())
	case errors.Is(err, schedule.ErrCommitFailed):
		h.retryableError(w, r, err, schedule.ErrCommitFailed.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		h.retryableError(w, r, err, "系统繁忙，请稍后重试")
	case errors.Is(err, breaks.ErrQuotaExceeded),
		errors.Is(err, breaks.ErrCapacityExceeded),
		errors.Is(err, breaks.ErrInvalidTransition),
		errors.Is(err, breaks.ErrInvalidDuration),
		errors.Is(err, breaks.ErrOverlapsOwnBreak),
		errors.Is(err, breaks.ErrBreakNotFound),
		errors.Is(err, attendance.ErrSessionNotStarted),
		errors.Is(err, attendance.ErrInvalidTransition),
		errors.Is(err, editor.ErrSessionNotFound),
		errors.Is(err, editor.ErrInvalidTool),
		errors.Is(err, editor.ErrNoTool),
		errors.Is(err, editor.ErrUnknownAgent),
		errors.Is(err, timegrid.ErrInvalidTime),
		errors.Is(err, timeline.ErrMalformedInterval),
		errors.Is(err, timeline.ErrGridSize),
		errors.Is(err, timeline.ErrColorConflict):
		h.errorResponse(w, r, err.Error())
	default:
		h.internalServerError(w, r, err)
	}
}
