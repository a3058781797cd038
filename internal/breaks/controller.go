package breaks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/lock"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

type Filter struct {
	AgentID          *int64
	TeamID           *int64
	Date             string
	IncludeCancelled bool
}

// Store 是休息记录的持久化接口，未找到记录时返回 sql.ErrNoRows
type Store interface {
	ListBreaks(ctx context.Context, f Filter) ([]*domain.Break, error)
	GetBreak(ctx context.Context, id int64) (*domain.Break, error)
	InsertBreak(ctx context.Context, b *domain.Break) error
	// UpdateBreakStatus 仅当当前状态为 from 时才更新，返回是否更新成功
	UpdateBreakStatus(ctx context.Context, id int64, from, to domain.BreakStatus, at time.Time) (bool, error)
	GetTeamCapacityPolicy(ctx context.Context, teamID int64) (domain.TeamCapacityPolicy, error)
}

// WorkSessions 在休息开始和结束时暂停、恢复当天的工作记录
type WorkSessions interface {
	PauseWorkSession(ctx context.Context, agentID int64, date string, at time.Time) error
	ResumeWorkSession(ctx context.Context, agentID int64, date string, at time.Time) error
}

type Request struct {
	AgentID         int64
	TeamID          int64
	Date            string
	StartTime       timegrid.Clock
	DurationMinutes int
}

type Controller struct {
	store     Store
	sessions  WorkSessions
	locker    lock.Locker
	quota     Quota
	durations []int
	now       func() time.Time
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(store Store, sessions WorkSessions, locker lock.Locker, quota Quota, durations []int, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		sessions:  sessions,
		locker:    locker,
		quota:     quota,
		durations: slices.Clone(durations),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Durations() []int { return slices.Clone(c.durations) }

func (c *Controller) Quota() Quota { return c.quota }

func lockKey(teamID int64, date string) string {
	return fmt.Sprintf("break:%d:%s", teamID, date)
}

// RequestBreak 依次检查时长、额度、团队容量，全部通过后写入一条 scheduled 状态的休息
// 同一团队同一天的申请在锁内串行执行
func (c *Controller) RequestBreak(ctx context.Context, req Request) (*domain.Break, error) {
	if !domain.ValidDate(req.Date) {
		return nil, fmt.Errorf("%w: 无效的日期 %q", timegrid.ErrInvalidTime, req.Date)
	}
	if !slices.Contains(c.durations, req.DurationMinutes) {
		return nil, ErrInvalidDuration
	}
	if !req.StartTime.Valid() || !req.StartTime.Add(req.DurationMinutes).ValidEnd() {
		return nil, fmt.Errorf("%w: 休息时间超出当天范围", timegrid.ErrInvalidTime)
	}

	unlock, err := c.locker.Lock(ctx, lockKey(req.TeamID, req.Date))
	if err != nil {
		return nil, err
	}
	defer unlock()

	own, err := c.store.ListBreaks(ctx, Filter{AgentID: &req.AgentID, Date: req.Date})
	if err != nil {
		return nil, err
	}
	if err := c.quota.Check(own, req.DurationMinutes); err != nil {
		return nil, err
	}
	if overlapsAny(own, req.StartTime, req.DurationMinutes) {
		return nil, ErrOverlapsOwnBreak
	}

	policy, err := c.store.GetTeamCapacityPolicy(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}
	team, err := c.store.ListBreaks(ctx, Filter{TeamID: &req.TeamID, Date: req.Date})
	if err != nil {
		return nil, err
	}
	concurrent := CountConcurrent(team, req.StartTime, req.DurationMinutes, policy.OverlapTolerance)
	if concurrent >= policy.MaxConcurrentBreaks {
		return nil, &CapacityError{Concurrent: concurrent, Max: policy.MaxConcurrentBreaks}
	}

	b := &domain.Break{
		AgentID:         req.AgentID,
		TeamID:          req.TeamID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          domain.BreakScheduled,
	}
	if err := c.store.InsertBreak(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Controller) loadOwned(ctx context.Context, agentID, breakID int64) (*domain.Break, error) {
	b, err := c.store.GetBreak(ctx, breakID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBreakNotFound
		}
		return nil, err
	}
	if b.AgentID != agentID {
		return nil, ErrBreakNotFound
	}
	return b, nil
}

func (c *Controller) transition(ctx context.Context, b *domain.Break, to domain.BreakStatus, at time.Time) error {
	if err := checkTransition(b.Status, to); err != nil {
		return err
	}

	ok, err := c.store.UpdateBreakStatus(ctx, b.ID, b.Status, to, at)
	if err != nil {
		return err
	}
	if !ok {
		// 状态已被并发修改
		current, err := c.store.GetBreak(ctx, b.ID)
		if err != nil {
			return err
		}
		return &TransitionError{From: current.Status, To: to}
	}

	b.Status = to
	return nil
}

func (c *Controller) StartBreak(ctx context.Context, agentID, breakID int64) (*domain.Break, error) {
	b, err := c.loadOwned(ctx, agentID, breakID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if err := c.transition(ctx, b, domain.BreakActive, now); err != nil {
		return nil, err
	}
	b.ActualStart = &now

	if err := c.sessions.PauseWorkSession(ctx, agentID, b.Date, now); err != nil {
		slog.Warn("休息已开始但暂停工作记录失败", slog.Int64("breakID", b.ID), slog.String("error", err.Error()))
	}
	return b, nil
}

func (c *Controller) EndBreak(ctx context.Context, agentID, breakID int64) (*domain.Break, error) {
	b, err := c.loadOwned(ctx, agentID, breakID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if err := c.transition(ctx, b, domain.BreakCompleted, now); err != nil {
		return nil, err
	}
	b.ActualEnd = &now

	if err := c.sessions.ResumeWorkSession(ctx, agentID, b.Date, now); err != nil {
		slog.Warn("休息已结束但恢复工作记录失败", slog.Int64("breakID", b.ID), slog.String("error", err.Error()))
	}
	return b, nil
}

func (c *Controller) CancelBreak(ctx context.Context, agentID, breakID int64) (*domain.Break, error) {
	b, err := c.loadOwned(ctx, agentID, breakID)
	if err != nil {
		return nil, err
	}

	if err := c.transition(ctx, b, domain.BreakCancelled, c.now()); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Controller) DailySummary(ctx context.Context, agentID int64, date string) (Summary, error) {
	own, err := c.store.ListBreaks(ctx, Filter{AgentID: &agentID, Date: date})
	if err != nil {
		return Summary{}, err
	}
	return c.quota.Summary(own), nil
}
