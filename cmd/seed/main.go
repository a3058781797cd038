package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/schedule"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/seed"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var teamID int64
	var date string
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机助理, 2: 随机排班, 3: 从 CSV 导入名单)")
	flag.IntVar(&n, "n", 5, "要插入的助理数量或要排班的天数")
	flag.Int64Var(&teamID, "team", 0, "目标团队 ID")
	flag.StringVar(&date, "date", time.Now().Format(domain.DateLayout), "随机排班的第一天")
	flag.StringVar(&file, "file", "", "名单 CSV 文件路径")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)
	ctx = context.Background()

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 || teamID <= 0 {
			slog.Error("请输入合法的助理数量和团队 ID")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomAgent(cfg.Seed.User.Password, teamID)
			if err != nil {
				slog.Error("无法生成随机助理", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(ctx, user); err != nil {
				slog.Error("无法插入助理", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入助理成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 || teamID <= 0 {
			slog.Error("请输入合法的天数和团队 ID")
			return
		}

		first, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			slog.Error("无效的日期", slog.String("date", date))
			return
		}

		layout, err := timegrid.NewLayout(cfg.Grid.SlotMinutes)
		if err != nil {
			slog.Error("无效的时间划分", slog.String("error", err.Error()))
			return
		}

		sts, err := repo.GetShiftTemplates(ctx, &teamID)
		if err != nil {
			slog.Error("无法获取班次模板", slog.String("error", err.Error()))
			return
		}
		templates := make([]editor.Template, 0, len(sts))
		for _, st := range sts {
			templates = append(templates, editor.TemplateFromShiftTemplate(st))
		}

		svc := schedule.NewService(repo, layout)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))

		cnt := 0
		for i := 0; i < n; i++ {
			day := first.AddDate(0, 0, i).Format(domain.DateLayout)

			session, err := svc.OpenDay(ctx, teamID, day)
			if err != nil {
				slog.Error("无法打开排班", slog.String("date", day), slog.String("error", err.Error()))
				continue
			}
			if err := seed.PaintRandomDay(session, templates, rng); err != nil {
				slog.Error("无法生成随机排班", slog.String("date", day), slog.String("error", err.Error()))
				return
			}
			if _, err := svc.CommitSession(ctx, session); err != nil {
				slog.Error("无法保存排班", slog.String("date", day), slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("随机排班成功", slog.Int64("team_id", teamID), slog.Int("days", cnt))
	case 3:
		if file == "" {
			slog.Error("请指定名单文件")
			return
		}

		f, err := os.Open(file)
		if err != nil {
			slog.Error("无法打开名单文件", slog.String("error", err.Error()))
			return
		}
		defer f.Close()

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.User.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("无法生成密码哈希", slog.String("error", err.Error()))
			return
		}

		policy := domain.TeamCapacityPolicy{
			MaxConcurrentBreaks: cfg.Break.MaxConcurrentBreaks,
			OverlapTolerance:    cfg.Break.OverlapTolerance,
		}
		result, err := seed.ImportRoster(ctx, repo, f, string(passwordHash), policy)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				slog.Error("名单中的助理在导入过程中被修改，请重试")
				return
			}
			slog.Error("导入名单失败", slog.String("error", err.Error()), slog.Any("result", result))
			return
		}

		slog.Info("导入名单成功", slog.Any("result", result))
	default:
		slog.Error("指定的操作非法")
	}
}
