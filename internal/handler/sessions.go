package handler

import (
	"context"
	"net/http"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

type currentSession struct {
	Session     *domain.WorkSession `json:"session"`
	ActiveBreak *domain.Break       `json:"activeBreak"`
}

// GetCurrentSession 返回今天的工作状态以及正在进行的休息
func (h *Handler) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	date := h.today()

	ws, err := h.tracker.Current(r.Context(), myInfo.ID, date)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	bs, err := h.repository.ListBreaks(r.Context(), breaks.Filter{AgentID: &myInfo.ID, Date: date})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	resp := currentSession{Session: ws}
	for _, b := range bs {
		if b.Status == domain.BreakActive {
			resp.ActiveBreak = b
			break
		}
	}

	h.successResponse(w, r, "获取工作状态成功", resp)
}

type sessionTransition func(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error)

func (h *Handler) transitionSession(w http.ResponseWriter, r *http.Request, fn sessionTransition, msg string) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	ws, err := fn(r.Context(), myInfo.ID, h.today())
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, ws)
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	h.transitionSession(w, r, h.tracker.Start, "已开始工作")
}

func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	h.transitionSession(w, r, h.tracker.Pause, "已暂停工作")
}

func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	h.transitionSession(w, r, h.tracker.Resume, "已恢复工作")
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.transitionSession(w, r, h.tracker.End, "已结束工作")
}
