package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/attendance"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/events"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/schedule"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	translator ut.Translator
	publisher  *events.Publisher
	editors    *editor.Store
	breaks     *breaks.Controller
	tracker    *attendance.Tracker
	schedule   *schedule.Service
	now        func() time.Time

	Mux *chi.Mux
}

// Services 是 handler 依赖的业务组件
type Services struct {
	Publisher *events.Publisher
	Editors   *editor.Store
	Breaks    *breaks.Controller
	Tracker   *attendance.Tracker
	Schedule  *schedule.Service
}

func NewHandler(cfg *config.Config, repo *repository.Repository, svc Services) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		publisher:  svc.Publisher,
		editors:    svc.Editors,
		breaks:     svc.Breaks,
		tracker:    svc.Tracker,
		schedule:   svc.Schedule,
		now:        time.Now,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.requestID)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	superAdmin := h.RequiredRole([]domain.Role{domain.RoleSuperAdmin})
	managers := h.RequiredRole([]domain.Role{domain.RoleSuperAdmin, domain.RoleTeamLead})

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(superAdmin)
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).Delete("/", h.DeleteUser)
				r.Patch("/password", h.UpdateUserPassword)
			})
		})

		// 助理的排班区间，只有本人和能管理其团队的人可以查看
		r.With(h.agentInfo).Get("/agents/{id}/intervals", h.GetAgentIntervals)

		r.Route("/teams", func(r chi.Router) {
			r.With(superAdmin).Post("/", h.CreateTeam)
			r.Get("/", h.GetAllTeams)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.teamInfo)
				r.Get("/", h.GetTeam)
				r.With(superAdmin).Patch("/", h.UpdateTeam)
				r.With(superAdmin).Delete("/", h.DeleteTeam)
				r.With(superAdmin).Patch("/capacity", h.UpdateTeamCapacity)
				r.With(h.teamViewer).Get("/members", h.GetTeamMembers)

				r.Route("/days/{date}", func(r chi.Router) {
					r.Use(h.dayParam)
					r.With(h.teamViewer).Get("/", h.GetTeamDay)
					r.With(h.teamViewer).Get("/breaks", h.GetTeamDayBreaks)
					r.With(managers, h.teamManager).Get("/audit", h.GetTeamDayAudit)

					// 编辑会话保存在 redis 中，每个操作者一份
					r.Route("/editor", func(r chi.Router) {
						r.Use(managers)
						r.Use(h.teamManager)
						r.Post("/", h.OpenEditor)
						r.Delete("/", h.DiscardEditor)
						r.Group(func(r chi.Router) {
							r.Use(h.editorSession)
							r.Get("/", h.GetEditor)
							r.Put("/tool", h.SetEditorTool)
							r.Post("/paint", h.PaintGrid)
							r.Post("/drag", h.DragGrid)
							r.Post("/template", h.ApplyTemplate)
							r.Post("/erase", h.EraseRange)
							r.Post("/clear", h.ClearGrid)
							r.Post("/commit", h.CommitDay)
						})
					})
				})
			})
		})

		r.Route("/shift-templates", func(r chi.Router) {
			r.Get("/", h.GetAllShiftTemplates)
			r.With(managers).Post("/", h.CreateShiftTemplate)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.shiftTemplate)
				r.Get("/", h.GetShiftTemplate)
				r.With(managers).Patch("/", h.UpdateShiftTemplate)
				r.With(managers).Delete("/", h.DeleteShiftTemplate)
			})
		})

		r.Route("/breaks", func(r chi.Router) {
			r.Get("/", h.GetMyBreaks)
			r.Post("/", h.RequestBreak)
			r.Get("/summary", h.GetMyBreakSummary)
			r.Get("/options", h.GetBreakOptions)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.breakID)
				r.Post("/start", h.StartBreak)
				r.Post("/end", h.EndBreak)
				r.Post("/cancel", h.CancelBreak)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/current", h.GetCurrentSession)
			r.Post("/start", h.StartSession)
			r.Post("/pause", h.PauseSession)
			r.Post("/resume", h.ResumeSession)
			r.Post("/end", h.EndSession)
		})
	})
}
