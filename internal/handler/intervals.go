package handler

import (
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

const maxIntervalRangeDays = 62

// GetAgentIntervals 返回助理在 [from, to] 范围内每天的排班区间
func (h *Handler) GetAgentIntervals(w http.ResponseWriter, r *http.Request) {
	agent := r.Context().Value(AgentInfoCtx).(*domain.User)

	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" {
		from = h.today()
	}
	if to == "" {
		to = from
	}

	fromDate, err := time.Parse(domain.DateLayout, from)
	if err != nil {
		h.errorResponse(w, r, "日期格式应为 YYYY-MM-DD")
		return
	}
	toDate, err := time.Parse(domain.DateLayout, to)
	if err != nil {
		h.errorResponse(w, r, "日期格式应为 YYYY-MM-DD")
		return
	}
	if toDate.Before(fromDate) {
		h.errorResponse(w, r, "结束日期不能早于开始日期")
		return
	}
	if toDate.Sub(fromDate) > maxIntervalRangeDays*24*time.Hour {
		h.errorResponse(w, r, "查询范围过大")
		return
	}

	intervals, err := h.repository.ListAgentIntervals(r.Context(), agent.ID, from, to)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排班成功", intervals)
}
