package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

func (h *Handler) teamConstraintError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "teams_name_key":
			h.errorResponse(w, r, "团队名称已存在")
		case "teams_leader_id_fkey":
			h.errorResponse(w, r, "组长不存在")
		default:
			h.internalServerError(w, r, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "团队信息已被修改，请重试")
	default:
		h.internalServerError(w, r, err)
	}
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                string `json:"name" validate:"required"`
		LeaderID            *int64 `json:"leaderID" validate:"omitempty,gt=0"`
		MaxConcurrentBreaks *int32 `json:"maxConcurrentBreaks" validate:"omitempty,gte=0"`
		OverlapTolerance    *int32 `json:"overlapTolerance" validate:"omitempty,gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	team := &domain.Team{
		Name:                req.Name,
		LeaderID:            req.LeaderID,
		MaxConcurrentBreaks: int32(h.config.Break.MaxConcurrentBreaks),
		OverlapTolerance:    int32(h.config.Break.OverlapTolerance),
	}
	if req.MaxConcurrentBreaks != nil {
		team.MaxConcurrentBreaks = *req.MaxConcurrentBreaks
	}
	if req.OverlapTolerance != nil {
		team.OverlapTolerance = *req.OverlapTolerance
	}

	if err := h.repository.CreateTeam(r.Context(), team); err != nil {
		h.teamConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建团队成功", team)
}

func (h *Handler) GetAllTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.repository.GetAllTeams(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取团队列表成功", teams)
}

func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)
	h.successResponse(w, r, "获取团队成功", team)
}

func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	var req struct {
		Name     *string `json:"name" validate:"omitempty,min=1"`
		LeaderID *int64  `json:"leaderID" validate:"omitempty,gte=0"`
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
		team.Name = *req.Name
	}
	if req.LeaderID != nil {
		team.LeaderID = normalizeTeamID(req.LeaderID)
	}

	if err := h.repository.UpdateTeam(r.Context(), team); err != nil {
		h.teamConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新团队成功", team)
}

// UpdateTeamCapacity 修改团队同时休息的人数上限，之后的休息申请立即按新规则判断
func (h *Handler) UpdateTeamCapacity(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	var req struct {
		MaxConcurrentBreaks *int32 `json:"maxConcurrentBreaks" validate:"required,gte=0"`
		OverlapTolerance    *int32 `json:"overlapTolerance" validate:"omitempty,gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	team.MaxConcurrentBreaks = *req.MaxConcurrentBreaks
	if req.OverlapTolerance != nil {
		team.OverlapTolerance = *req.OverlapTolerance
	}

	if err := h.repository.UpdateTeam(r.Context(), team); err != nil {
		h.teamConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新团队休息规则成功", team.CapacityPolicy())
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	if err := h.repository.DeleteTeam(r.Context(), team.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除团队成功", nil)
}

func (h *Handler) GetTeamMembers(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	members, err := h.repository.ListTeamMembers(r.Context(), team.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取团队成员成功", members)
}
