package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
		AutoMigrate        bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		AgentNumber string `env:"AGENT_NUMBER" envDefault:"admin"`
		Password    string `env:"PASSWORD,required"`
		FullName    string `env:"FULL_NAME" envDefault:"管理员"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 单位为小时，14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		EventQueue     string `env:"EVENT_QUEUE" envDefault:"attendance_events"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	Grid struct {
		SlotMinutes int `env:"SLOT_MINUTES" envDefault:"30"`
	} `envPrefix:"GRID_"`
	Break struct {
		Durations           []int  `env:"DURATIONS" envDefault:"10,30"`
		QuotaPolicy         string `env:"QUOTA_POLICY" envDefault:"units"`
		UnitLimits          string `env:"UNIT_LIMITS" envDefault:"10:6,30:1"`
		DailyMinutes        int    `env:"DAILY_MINUTES" envDefault:"60"`
		MaxConcurrentBreaks int    `env:"MAX_CONCURRENT" envDefault:"2"`
		OverlapTolerance    int    `env:"OVERLAP_TOLERANCE" envDefault:"1"`
		LockTTL             int    `env:"LOCK_TTL" envDefault:"10"`  // 单位为秒
		LockWait            int    `env:"LOCK_WAIT" envDefault:"5"`  // 单位为秒
		DistributedLock     bool   `env:"DISTRIBUTED_LOCK" envDefault:"true"`
	} `envPrefix:"BREAK_"`
	Editor struct {
		SessionTTL int `env:"SESSION_TTL" envDefault:"7200"` // 单位为秒
	} `envPrefix:"EDITOR_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

// ParseUnitLimits 解析形如 "10:6,30:1" 的休息次数额度
func ParseUnitLimits(s string) (map[int]int, error) {
	limits := make(map[int]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		duration, count, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("无效的休息次数额度 %q", part)
		}
		d, err := strconv.Atoi(strings.TrimSpace(duration))
		if err != nil {
			return nil, fmt.Errorf("无效的休息时长 %q", duration)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, fmt.Errorf("无效的休息次数 %q", count)
		}
		limits[d] = n
	}

	if len(limits) == 0 {
		return nil, errors.New("休息次数额度不能为空")
	}
	return limits, nil
}
