package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/utils"
)

const generatedPasswordLength = 12

func (h *Handler) userConstraintError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "users_agent_number_key":
			h.errorResponse(w, r, "工号已存在")
		case "users_team_id_fkey":
			h.errorResponse(w, r, "团队不存在")
		case "users_role_check":
			h.errorResponse(w, r, "无效的角色")
		default:
			h.internalServerError(w, r, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "更新用户信息失败，请重试")
	default:
		h.internalServerError(w, r, err)
	}
}

// normalizeTeamID 把 0 视为不属于任何团队
func normalizeTeamID(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

func (h *Handler) GetAllUserInfo(w http.ResponseWriter, r *http.Request) {
	users, err := h.repository.GetAllUsers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentNumber string `json:"agentNumber" validate:"required,max=32"`
		FullName    string `json:"fullName" validate:"required"`
		Role        string `json:"role" validate:"required,oneof=Agent TeamLead SuperAdmin"`
		TeamID      *int64 `json:"teamID" validate:"omitempty,gte=0"`
		Password    string `json:"password" validate:"omitempty,min=8"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 没有指定密码时生成随机密码，只在本次响应中返回
	password := req.Password
	generated := password == ""
	if generated {
		password = utils.GenerateRandomPassword(generatedPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		AgentNumber:  req.AgentNumber,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Role:         domain.Role(req.Role),
		TeamID:       normalizeTeamID(req.TeamID),
	}

	if err := h.repository.CreateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	resp := struct {
		*domain.User
		InitialPassword string `json:"initialPassword,omitempty"`
	}{User: user}
	if generated {
		resp.InitialPassword = password
	}

	h.successResponse(w, r, "用户创建成功", resp)
}

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)
	h.successResponse(w, r, "获取用户信息成功", user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName *string `json:"fullName" validate:"omitempty,min=1"`
		Role     *string `json:"role" validate:"omitempty,oneof=Agent TeamLead SuperAdmin"`
		TeamID   *int64  `json:"teamID" validate:"omitempty,gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Role != nil {
		user.Role = domain.Role(*req.Role)
	}
	if req.TeamID != nil {
		user.TeamID = normalizeTeamID(req.TeamID)
	}

	if err := h.repository.UpdateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新用户信息成功", user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if err := h.repository.DeleteUser(r.Context(), user.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除用户成功", nil)
}

func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user.PasswordHash = string(hashedPassword)
	if err := h.repository.UpdateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "修改密码成功", nil)
}
