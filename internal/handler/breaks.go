package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

// dateQuery 读取 ?date=，缺省为今天
func (h *Handler) dateQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return h.today(), true
	}
	if !domain.ValidDate(date) {
		h.errorResponse(w, r, "日期格式应为 YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func (h *Handler) GetMyBreaks(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	date, ok := h.dateQuery(w, r)
	if !ok {
		return
	}

	filter := breaks.Filter{
		AgentID:          &myInfo.ID,
		Date:             date,
		IncludeCancelled: r.URL.Query().Get("includeCancelled") == "true",
	}
	bs, err := h.repository.ListBreaks(r.Context(), filter)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取休息记录成功", bs)
}

func (h *Handler) GetMyBreakSummary(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	date, ok := h.dateQuery(w, r)
	if !ok {
		return
	}

	summary, err := h.breaks.DailySummary(r.Context(), myInfo.ID, date)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取休息额度成功", summary)
}

// GetBreakOptions 返回可选的休息时长和当前使用的额度形式
func (h *Handler) GetBreakOptions(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取休息选项成功", map[string]any{
		"durations":   h.breaks.Durations(),
		"quotaPolicy": h.breaks.Quota().Policy(),
	})
}

func (h *Handler) RequestBreak(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Date            string `json:"date" validate:"omitempty,datetime=2006-01-02"`
		StartTime       string `json:"startTime" validate:"required"`
		DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if myInfo.TeamID == nil {
		h.errorResponse(w, r, "您尚未加入任何团队")
		return
	}

	start, err := timegrid.ParseClock(req.StartTime)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	date := req.Date
	if date == "" {
		date = h.today()
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Break.LockWait)*time.Second)
	defer cancel()

	b, err := h.breaks.RequestBreak(ctx, breaks.Request{
		AgentID:         myInfo.ID,
		TeamID:          *myInfo.TeamID,
		Date:            date,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.publish(r, domain.EventBreakRequested, &b.TeamID, b.Date, breakEventData(b))

	h.successResponse(w, r, "申请休息成功", b)
}

type breakTransition func(ctx context.Context, agentID, breakID int64) (*domain.Break, error)

func (h *Handler) transitionBreak(w http.ResponseWriter, r *http.Request, fn breakTransition, typ domain.EventType, msg string) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	breakID := r.Context().Value(BreakIDCtx).(int64)

	b, err := fn(r.Context(), myInfo.ID, breakID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.publish(r, typ, &b.TeamID, b.Date, breakEventData(b))

	h.successResponse(w, r, msg, b)
}

func (h *Handler) StartBreak(w http.ResponseWriter, r *http.Request) {
	h.transitionBreak(w, r, h.breaks.StartBreak, domain.EventBreakStarted, "休息已开始")
}

func (h *Handler) EndBreak(w http.ResponseWriter, r *http.Request) {
	h.transitionBreak(w, r, h.breaks.EndBreak, domain.EventBreakEnded, "休息已结束")
}

func (h *Handler) CancelBreak(w http.ResponseWriter, r *http.Request) {
	h.transitionBreak(w, r, h.breaks.CancelBreak, domain.EventBreakCancelled, "休息已取消")
}
