package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/lock"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/schedule"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.InitialAdmin.AgentNumber = "admin"

	h, err := NewHandler(cfg, nil, Services{})
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return h
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestRequestIDIsGeneratedAndPropagated(t *testing.T) {
	h := newTestHandler(t)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r)
	})

	rec := httptest.NewRecorder()
	h.requestID(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.requestID(next).ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	h := newTestHandler(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	h.recoverer(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

func TestRequiredRole(t *testing.T) {
	h := newTestHandler(t)
	mw := h.RequiredRole([]domain.Role{domain.RoleSuperAdmin, domain.RoleTeamLead})

	tests := []struct {
		role    domain.Role
		allowed bool
	}{
		{domain.RoleSuperAdmin, true},
		{domain.RoleTeamLead, true},
		{domain.RoleAgent, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), RoleCtxKey, string(tt.role)))

			rec := httptest.NewRecorder()
			mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

			if tt.allowed {
				assert.Equal(t, http.StatusNoContent, rec.Code)
				return
			}
			assert.Equal(t, http.StatusOK, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, "权限不足", resp.Message)
		})
	}
}

func TestAuthRejectsMissingAndForgedTokens(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.auth(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "用户未登录", decodeResponse(t, rec).Message)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role:             string(domain.RoleSuperAdmin),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	})
	ss, err := forged.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: ss})
	rec = httptest.NewRecorder()
	h.auth(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
	assert.Equal(t, "无效的令牌", decodeResponse(t, rec).Message)
}

func TestAuthAcceptsSignedToken(t *testing.T) {
	h := newTestHandler(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(domain.RoleTeamLead),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	ss, err := token.SignedString([]byte(h.config.JWT.Secret))
	require.NoError(t, err)

	var sub, role string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = r.Context().Value(SubCtxKey).(string)
		role = r.Context().Value(RoleCtxKey).(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: ss})
	h.auth(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "42", sub)
	assert.Equal(t, string(domain.RoleTeamLead), role)
}

func TestIssuedTokenPassesAuth(t *testing.T) {
	h := newTestHandler(t)
	h.config.JWT.Expiration = 1

	cookie, err := h.issueToken(&domain.User{ID: 7, Role: domain.RoleAgent})
	require.NoError(t, err)
	assert.Equal(t, h.now().Add(time.Hour), cookie.Expires)
	assert.True(t, cookie.HttpOnly)

	var sub string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = r.Context().Value(SubCtxKey).(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.auth(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "7", sub)

	// 超过有效期后同一个令牌不再被接受
	issued := h.now()
	h.now = func() time.Time { return issued.Add(2 * time.Hour) }
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.auth(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
	assert.Equal(t, "无效的令牌", decodeResponse(t, rec).Message)
}

func TestLogoutExpiresCookie(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].Expires.Before(h.now()))
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestUpdateMyPasswordRejectsReuse(t *testing.T) {
	h := newTestHandler(t)

	body := strings.NewReader(`{"oldPassword":"password1","newPassword":"password1"}`)
	req := httptest.NewRequest(http.MethodPatch, "/my-info/password", body)
	req = req.WithContext(context.WithValue(req.Context(), MyInfoCtx, &domain.User{ID: 7}))

	rec := httptest.NewRecorder()
	h.UpdateMyPassword(rec, req)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
	assert.Empty(t, rec.Result().Cookies())
}

func TestGetMyInfoWithoutTeam(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/my-info", nil)
	req = req.WithContext(context.WithValue(req.Context(), MyInfoCtx, &domain.User{ID: 7, AgentNumber: "A000007"}))

	rec := httptest.NewRecorder()
	h.GetMyInfo(rec, req)

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "A000007", data["agentNumber"])
	assert.Nil(t, data["team"])
}

func withUserAndTeam(r *http.Request, u *domain.User, team *domain.Team) *http.Request {
	ctx := context.WithValue(r.Context(), MyInfoCtx, u)
	ctx = context.WithValue(ctx, TeamCtx, team)
	return r.WithContext(ctx)
}

func TestTeamScoping(t *testing.T) {
	h := newTestHandler(t)

	own, other := int64(1), int64(2)
	team := &domain.Team{ID: own}

	tests := []struct {
		name      string
		user      *domain.User
		canView   bool
		canManage bool
	}{
		{"super admin", &domain.User{Role: domain.RoleSuperAdmin}, true, true},
		{"lead of team", &domain.User{Role: domain.RoleTeamLead, TeamID: &own}, true, true},
		{"lead of other team", &domain.User{Role: domain.RoleTeamLead, TeamID: &other}, false, false},
		{"member", &domain.User{Role: domain.RoleAgent, TeamID: &own}, true, false},
		{"outsider", &domain.User{Role: domain.RoleAgent, TeamID: &other}, false, false},
		{"no team", &domain.User{Role: domain.RoleAgent}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := withUserAndTeam(httptest.NewRequest(http.MethodGet, "/", nil), tt.user, team)
			h.teamViewer(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
			assert.Equal(t, tt.canView, rec.Code == http.StatusNoContent)

			rec = httptest.NewRecorder()
			req = withUserAndTeam(httptest.NewRequest(http.MethodGet, "/", nil), tt.user, team)
			h.teamManager(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
			assert.Equal(t, tt.canManage, rec.Code == http.StatusNoContent)
		})
	}
}

func TestDayParam(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		param string
		want  string
		ok    bool
	}{
		{"2025-03-02", "2025-03-02", true},
		{"today", "2025-03-01", true},
		{"2025-02-30", "", false},
		{"03-02-2025", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			var got string
			r := chi.NewRouter()
			r.With(h.dayParam).Get("/days/{date}", func(w http.ResponseWriter, r *http.Request) {
				got = r.Context().Value(DateCtx).(string)
				w.WriteHeader(http.StatusNoContent)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/days/"+tt.param, nil))

			if !tt.ok {
				assert.False(t, decodeResponse(t, rec).Success)
				return
			}
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDomainErrorMapping(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"quota", &breaks.QuotaError{Policy: breaks.PolicyUnits, DurationMinutes: 30, Used: 1, Allowed: 1}, http.StatusOK, "30 分钟的休息每天最多 1 次，今日已使用 1 次"},
		{"capacity", &breaks.CapacityError{Concurrent: 2, Max: 2}, http.StatusOK, "该时段已有 2 人休息，团队上限为 2 人"},
		{"transition", &breaks.TransitionError{From: domain.BreakCompleted, To: domain.BreakActive}, http.StatusOK, "休息状态无法从 completed 变更为 active"},
		{"not found", breaks.ErrBreakNotFound, http.StatusOK, breaks.ErrBreakNotFound.Error()},
		{"editor expired", editor.ErrSessionNotFound, http.StatusOK, editor.ErrSessionNotFound.Error()},
		{"bad time", fmt.Errorf("%w: %q", timegrid.ErrInvalidTime, "25:00"), http.StatusOK, `无效的时间: "25:00"`},
		{"commit failed", fmt.Errorf("%w: %w", schedule.ErrCommitFailed, errors.New("conn reset")), http.StatusServiceUnavailable, schedule.ErrCommitFailed.Error()},
		{"lock timeout", errors.Join(lock.ErrLockTimeout, context.DeadlineExceeded), http.StatusServiceUnavailable, "系统繁忙，请稍后重试"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.domainError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestQuotaErrorCarriesDetails(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	err := fmt.Errorf("申请失败: %w", &breaks.QuotaError{Policy: breaks.PolicyMinutes, DurationMinutes: 30, Used: 40, Allowed: 60, RemainingMinutes: 20})
	h.domainError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 20, data["remainingMinutes"])
}

func TestCanEditShiftTemplate(t *testing.T) {
	own, other := int64(1), int64(2)
	lead := &domain.User{Role: domain.RoleTeamLead, TeamID: &own}
	admin := &domain.User{Role: domain.RoleSuperAdmin}

	assert.True(t, canEditShiftTemplate(admin, nil))
	assert.True(t, canEditShiftTemplate(lead, &own))
	assert.False(t, canEditShiftTemplate(lead, &other))
	assert.False(t, canEditShiftTemplate(lead, nil))
}
