package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

func (h *Handler) shiftTemplateConstraintError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "shift_templates_team_id_name_key":
			h.errorResponse(w, r, "模板名称已存在")
		case "shift_templates_team_id_fkey":
			h.errorResponse(w, r, "团队不存在")
		default:
			h.internalServerError(w, r, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "请重试")
	default:
		h.internalServerError(w, r, err)
	}
}

// canEditShiftTemplate 通用模板只有超级管理员可以修改，团队模板由该团队的组长修改
func canEditShiftTemplate(u *domain.User, teamID *int64) bool {
	if teamID == nil {
		return u.Role == domain.RoleSuperAdmin
	}
	return u.CanManageTeam(*teamID)
}

// validateShiftTemplate 要求模板能够在当前的时间划分上完整落到格子里
func (h *Handler) validateShiftTemplate(st *domain.ShiftTemplate) error {
	tool := editor.TemplateTool(editor.TemplateFromShiftTemplate(st))
	return tool.Validate(h.schedule.Layout())
}

func (h *Handler) GetAllShiftTemplates(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	teamID := myInfo.TeamID
	if myInfo.Role == domain.RoleSuperAdmin {
		teamID = nil
		if s := r.URL.Query().Get("teamID"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				h.errorResponse(w, r, "团队ID无效")
				return
			}
			teamID = &id
		}
	} else if teamID == nil {
		// 不属于任何团队时只能看到通用模板
		none := int64(0)
		teamID = &none
	}

	sts, err := h.repository.GetShiftTemplates(r.Context(), teamID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次模板成功", sts)
}

func (h *Handler) CreateShiftTemplate(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		TeamID    *int64 `json:"teamID" validate:"omitempty,gt=0"`
		Name      string `json:"name" validate:"required"`
		StartTime string `json:"startTime" validate:"required"`
		EndTime   string `json:"endTime" validate:"required"`
		Label     string `json:"label" validate:"required"`
		Color     string `json:"color" validate:"omitempty,hexcolor"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if !canEditShiftTemplate(myInfo, req.TeamID) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	start, err := timegrid.ParseClock(req.StartTime)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	end, err := timegrid.ParseClock(req.EndTime)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	st := &domain.ShiftTemplate{
		TeamID:    req.TeamID,
		Name:      req.Name,
		StartTime: start,
		EndTime:   end,
		Label:     req.Label,
		Color:     req.Color,
	}
	if st.Color == "" {
		st.Color = editor.ColorFor(st.Label)
	}

	if err := h.validateShiftTemplate(st); err != nil {
		h.domainError(w, r, err)
		return
	}

	if err := h.repository.CreateShiftTemplate(r.Context(), st); err != nil {
		h.shiftTemplateConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建班次模板成功", st)
}

func (h *Handler) GetShiftTemplate(w http.ResponseWriter, r *http.Request) {
	st := r.Context().Value(ShiftTemplateCtx).(*domain.ShiftTemplate)

	h.successResponse(w, r, "获取班次模板成功", st)
}

func (h *Handler) UpdateShiftTemplate(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	st := r.Context().Value(ShiftTemplateCtx).(*domain.ShiftTemplate)

	if !canEditShiftTemplate(myInfo, st.TeamID) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	var req struct {
		Name      *string `json:"name" validate:"omitempty,min=1"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
		Label     *string `json:"label" validate:"omitempty,min=1"`
		Color     *string `json:"color" validate:"omitempty,hexcolor"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		st.Name = *req.Name
	}
	if req.StartTime != nil {
		start, err := timegrid.ParseClock(*req.StartTime)
		if err != nil {
			h.domainError(w, r, err)
			return
		}
		st.StartTime = start
	}
	if req.EndTime != nil {
		end, err := timegrid.ParseClock(*req.EndTime)
		if err != nil {
			h.domainError(w, r, err)
			return
		}
		st.EndTime = end
	}
	if req.Label != nil {
		st.Label = *req.Label
	}
	if req.Color != nil {
		st.Color = *req.Color
	}

	if err := h.validateShiftTemplate(st); err != nil {
		h.domainError(w, r, err)
		return
	}

	if err := h.repository.UpdateShiftTemplate(r.Context(), st); err != nil {
		h.shiftTemplateConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新班次模板成功", st)
}

func (h *Handler) DeleteShiftTemplate(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	st := r.Context().Value(ShiftTemplateCtx).(*domain.ShiftTemplate)

	if !canEditShiftTemplate(myInfo, st.TeamID) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	if err := h.repository.DeleteShiftTemplate(r.Context(), st.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除班次模板成功", nil)
}
