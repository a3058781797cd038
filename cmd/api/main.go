package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/attendance"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/events"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/handler"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/lock"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/migration"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/schedule"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/migrations"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func newQuota(cfg *config.Config) (breaks.Quota, error) {
	switch cfg.Break.QuotaPolicy {
	case breaks.PolicyUnits:
		limits, err := config.ParseUnitLimits(cfg.Break.UnitLimits)
		if err != nil {
			return nil, err
		}
		return breaks.NewUnitQuota(limits)
	case breaks.PolicyMinutes:
		return breaks.NewMinutesQuota(cfg.Break.DailyMinutes)
	default:
		return nil, fmt.Errorf("未知的休息额度形式 %q", cfg.Break.QuotaPolicy)
	}
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	layout, err := timegrid.NewLayout(cfg.Grid.SlotMinutes)
	if err != nil {
		logger.Error("无效的时间划分", "error", err)
		return
	}

	quota, err := newQuota(cfg)
	if err != nil {
		logger.Error("无效的休息额度配置", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
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

	/**********************************************
	 * 执行数据库迁移
	 **********************************************/
	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.TransactionTimeout)*time.Second)
		applied, err := migration.NewRunner(dbpool, migrations.FS).Apply(migrateCtx)
		cancel()
		if err != nil {
			logger.Error("数据库迁移失败", "error", err)
			return
		}
		logger.Info("数据库迁移完成", "applied", applied)
	}

	/**********************************************
	 * 创建 repository
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("无法生成初始管理员密码哈希", "error", err)
		return
	}
	initialAdmin := &domain.User{
		AgentNumber:  cfg.InitialAdmin.AgentNumber,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Role:         domain.RoleSuperAdmin,
	}
	if err := repo.CreateUser(context.Background(), initialAdmin); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "users_agent_number_key":
				// 如果返回这个错误，说明数据库中已经存在初始管理员，不处理
			default:
				logger.Error("无法创建初始管理员", "error", err)
				return
			}
		default:
			logger.Error("无法创建初始管理员", "error", err)
			return
		}
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	// 声明队列
	_, err = ch.QueueDeclare(
		cfg.RabbitMQ.EventQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	publisher := events.NewPublisher(ch, cfg.RabbitMQ.EventQueue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 创建业务组件
	 **********************************************/
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Break.DistributedLock {
		locker = lock.NewRedisLocker(rdb, time.Duration(cfg.Break.LockTTL)*time.Second)
	}

	tracker := attendance.NewTracker(repo, time.Now)
	services := handler.Services{
		Publisher: publisher,
		Editors:   editor.NewStore(rdb, time.Duration(cfg.Editor.SessionTTL)*time.Second),
		Breaks:    breaks.NewController(repo, tracker, locker, quota, cfg.Break.Durations),
		Tracker:   tracker,
		Schedule:  schedule.NewService(repo, layout),
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, services)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port, "slotMinutes", layout.SlotMinutes(), "quotaPolicy", quota.Policy())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
