package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
)

type teamDay struct {
	TeamID      int64                  `json:"teamID"`
	Date        string                 `json:"date"`
	SlotMinutes int                    `json:"slotMinutes"`
	Intervals   []domain.ShiftInterval `json:"intervals"`
	Breaks      []*domain.Break        `json:"breaks"`
	Overlay     []breaks.Segment       `json:"overlay"`
}

// GetTeamDay 返回团队当天已保存的排班以及叠加在上面的休息
func (h *Handler) GetTeamDay(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)
	date := r.Context().Value(DateCtx).(string)

	intervals, err := h.repository.ListTeamIntervals(r.Context(), team.ID, date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	bs, err := h.repository.ListBreaks(r.Context(), breaks.Filter{TeamID: &team.ID, Date: date})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	layout := h.schedule.Layout()
	h.successResponse(w, r, "获取团队排班成功", teamDay{
		TeamID:      team.ID,
		Date:        date,
		SlotMinutes: layout.SlotMinutes(),
		Intervals:   intervals,
		Breaks:      bs,
		Overlay:     breaks.Overlay(layout, bs),
	})
}

func (h *Handler) GetTeamDayBreaks(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)
	date := r.Context().Value(DateCtx).(string)

	filter := breaks.Filter{
		TeamID:           &team.ID,
		Date:             date,
		IncludeCancelled: r.URL.Query().Get("includeCancelled") == "true",
	}
	bs, err := h.repository.ListBreaks(r.Context(), filter)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取团队休息成功", bs)
}

func (h *Handler) GetTeamDayAudit(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)
	date := r.Context().Value(DateCtx).(string)

	es, err := h.repository.ListAuditEvents(r.Context(), team.ID, date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取操作记录成功", es)
}

func (h *Handler) saveEditor(w http.ResponseWriter, r *http.Request, session *editor.Session, msg string) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	if err := h.editors.Save(r.Context(), myInfo.ID, session); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, session.Snapshot())
}

// OpenEditor 从已保存的排班开始一个新的编辑会话，会覆盖之前未提交的修改
func (h *Handler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)
	date := r.Context().Value(DateCtx).(string)

	session, err := h.schedule.OpenDay(r.Context(), team.ID, date)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "打开编辑器成功")
}

func (h *Handler) GetEditor(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)
	h.successResponse(w, r, "获取编辑器成功", session.Snapshot())
}

func (h *Handler) DiscardEditor(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	team := r.Context().Value(TeamCtx).(*domain.Team)
	date := r.Context().Value(DateCtx).(string)

	if err := h.editors.Delete(r.Context(), myInfo.ID, team.ID, date); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "已放弃未保存的修改", nil)
}

// loadTemplate 读取模板并检查是否可以在该团队中使用
func (h *Handler) loadTemplate(w http.ResponseWriter, r *http.Request, id int64) (editor.Template, bool) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	st, err := h.repository.GetShiftTemplate(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "模板不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return editor.Template{}, false
	}
	if st.TeamID != nil && *st.TeamID != team.ID {
		h.errorResponse(w, r, "该模板不属于本团队")
		return editor.Template{}, false
	}
	return editor.TemplateFromShiftTemplate(st), true
}

func (h *Handler) SetEditorTool(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	var req struct {
		Kind       editor.ToolKind `json:"kind" validate:"required"`
		TemplateID int64           `json:"templateID"`
		Label      string          `json:"label"`
		Color      string          `json:"color" validate:"omitempty,hexcolor"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	var tool editor.Tool
	switch req.Kind {
	case editor.ToolTemplate:
		t, ok := h.loadTemplate(w, r, req.TemplateID)
		if !ok {
			return
		}
		tool = editor.TemplateTool(t)
	case editor.ToolStatus:
		tool = editor.StatusTool(req.Label)
	case editor.ToolEraser:
		tool = editor.EraserTool()
	default:
		tool = editor.CustomTool(req.Label, req.Color)
	}

	if err := session.SetTool(tool); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "切换画笔成功")
}

type slotRange struct {
	AgentID int64 `json:"agentID" validate:"required"`
	Start   int   `json:"start" validate:"gte=0"`
	End     int   `json:"end" validate:"gte=0"`
}

// PaintGrid 用当前画笔涂抹 [start, end) 范围内的格子
func (h *Handler) PaintGrid(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	var req slotRange
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := session.Paint(req.AgentID, req.Start, req.End); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "涂抹成功")
}

// DragGrid 处理一次拖拽，按下和松开的格子都会被涂抹
func (h *Handler) DragGrid(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	var req struct {
		AgentID int64 `json:"agentID" validate:"required"`
		Down    int   `json:"down" validate:"gte=0"`
		Up      int   `json:"up" validate:"gte=0"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := session.Drag(req.AgentID, req.Down, req.Up); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "涂抹成功")
}

func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	var req struct {
		AgentID    int64 `json:"agentID" validate:"required"`
		TemplateID int64 `json:"templateID" validate:"required"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	t, ok := h.loadTemplate(w, r, req.TemplateID)
	if !ok {
		return
	}
	if err := session.ApplyTemplate(req.AgentID, t); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "套用模板成功")
}

func (h *Handler) EraseRange(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	var req slotRange
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := session.EraseRange(req.AgentID, req.Start, req.End); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "擦除成功")
}

func (h *Handler) ClearGrid(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	var req struct {
		AgentID int64 `json:"agentID" validate:"required"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := session.Clear(req.AgentID); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveEditor(w, r, session, "清空成功")
}

// CommitDay 把编辑会话整体保存为团队当天的排班
// 保存失败时数据库中仍是旧的排班，编辑会话也会保留，可以直接重试
func (h *Handler) CommitDay(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	session := r.Context().Value(EditorSessionCtx).(*editor.Session)

	intervals, err := h.schedule.CommitSession(r.Context(), session)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	if err := h.editors.Delete(r.Context(), myInfo.ID, session.TeamID(), session.Date()); err != nil {
		slog.Warn("删除编辑会话失败", "requestID", requestIDFrom(r), "error", err)
	}

	teamID := session.TeamID()
	h.publish(r, domain.EventDayCommitted, &teamID, session.Date(), domain.DayCommittedData{
		Agents:    len(session.Agents()),
		Intervals: len(intervals),
	})

	h.successResponse(w, r, "保存排班成功", intervals)
}
