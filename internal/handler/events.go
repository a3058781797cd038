package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/events"
)

// publish 发送审计事件，发送失败只记录日志，不影响已经完成的操作
func (h *Handler) publish(r *http.Request, typ domain.EventType, teamID *int64, date string, data any) {
	if h.publisher == nil {
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	e := events.New(typ, myInfo.ID, teamID, date, data, h.now())

	if err := h.publisher.Publish(context.WithoutCancel(r.Context()), e); err != nil {
		slog.Warn("审计事件发送失败", "requestID", requestIDFrom(r), "type", typ, "eventID", e.ID, "error", err)
	}
}

func breakEventData(b *domain.Break) domain.BreakEventData {
	return domain.BreakEventData{
		BreakID:         b.ID,
		AgentID:         b.AgentID,
		StartTime:       b.StartTime.String(),
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
	}
}
