package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

const tokenCookieName = "__ecnc_shift_attendance_token"

const errBadCredentials = "工号或密码不正确"

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// tokenCookie 生成保存令牌的 http-only cookie，生产环境下只允许通过 https 发送
func (h *Handler) tokenCookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
	}
	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	return cookie
}

// issueToken 为用户签发令牌，角色以签发时数据库中的为准
func (h *Handler) issueToken(user *domain.User) (*http.Cookie, error) {
	now := h.now()
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	})
	ss, err := token.SignedString([]byte(h.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	return h.tokenCookie(ss, expiration), nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentNumber string `json:"agentNumber" validate:"required"`
		Password    string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.AgentNumber = strings.TrimSpace(req.AgentNumber)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.repository.GetUserByAgentNumber(r.Context(), req.AgentNumber)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, errBadCredentials)
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.errorResponse(w, r, errBadCredentials)
		} else {
			h.internalServerError(w, r, err)
		}
		return
	}

	cookie, err := h.issueToken(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	http.SetCookie(w, cookie)

	h.successResponse(w, r, "登录成功", user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.tokenCookie("", h.now().Add(-time.Hour)))
	h.successResponse(w, r, "已退出登录", nil)
}
