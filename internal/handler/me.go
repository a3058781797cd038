package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

// myInfoView 在用户信息之外附带所属团队，未分配团队时 team 为 null
type myInfoView struct {
	*domain.User
	Team *domain.Team `json:"team"`
}

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	view := myInfoView{User: myInfo}
	if myInfo.TeamID != nil {
		team, err := h.repository.GetTeam(r.Context(), *myInfo.TeamID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// 团队已被删除
		case err != nil:
			h.internalServerError(w, r, err)
			return
		default:
			view.Team = team
		}
	}

	h.successResponse(w, r, "获取个人信息成功", view)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, "原密码不正确")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	myInfo.PasswordHash = string(passwordHash)

	if err := h.repository.UpdateUser(r.Context(), myInfo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.errorResponse(w, r, "账号信息已被修改，请重新获取后再试")
		} else {
			h.internalServerError(w, r, err)
		}
		return
	}

	// 修改密码后重新签发令牌，当前设备保持登录
	cookie, err := h.issueToken(myInfo)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	http.SetCookie(w, cookie)

	h.successResponse(w, r, "密码已修改", nil)
}
