package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/events"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func toAuditEvent(e *events.Received) *repository.AuditEvent {
	ae := &repository.AuditEvent{
		ID:         e.ID,
		Type:       string(e.Type),
		ActorID:    e.ActorID,
		TeamID:     e.TeamID,
		Data:       e.Data,
		OccurredAt: e.OccurredAt,
	}
	if e.Date != "" {
		date := e.Date
		ae.Date = &date
	}
	return ae
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", slog.String("error", err.Error()))
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", slog.String("error", err.Error()))
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.EventQueue, // 队列名称
		true,                    // 是否持久化
		false,                   // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false,                   // 是否独占，即是否允许多个消费者访问这个队列
		false,                   // 是否不等待，设置为 false，即等待 RabbitMQ 确认队列是否创建成功
		nil,                     // 额外参数
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 每次只取一条未确认的消息，写库失败重新入队时不会打乱太多顺序
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息
	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，设置为空字符串，表示由 RabbitMQ 自动分配
		false,  // 是否自动确认消息
		false,  // 是否独占队列
		false,  // 是否禁止消费者接受自己发送的消息，必须设置为 false，因为 RabbitMQ 不支持这个参数
		false,  // 是否不等待，等待 RabbitMQ 响应
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("消息通道已关闭")
					return
				}

				e, err := events.Decode(msg.Body)
				if err != nil {
					// 格式错误的消息重新入队也无法处理，直接丢弃
					logger.Error("审计事件反序列化失败", slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
					continue
				}

				inserted, err := repo.InsertAuditEvent(ctx, toAuditEvent(e))
				if err != nil {
					logger.Error("审计事件写入失败", slog.String("id", e.ID), slog.String("error", err.Error()))
					_ = msg.Nack(false, !errors.Is(err, context.Canceled)) // 将消息重新入队
					continue
				}
				if !inserted {
					logger.Info("重复的审计事件", slog.String("id", e.ID))
				} else {
					logger.Info("已记录审计事件", slog.String("id", e.ID), slog.String("type", string(e.Type)))
				}

				// 确认消息
				_ = msg.Ack(false)
			}
		}
	}()

	// 等待 CTRL+C 信号
	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	slog.Info("正在关闭 auditor...")
	cancel()
	wg.Wait() // 等待所有 goroutine 完成
	slog.Info("auditor 已成功关闭")
}
