package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

var (
	ErrSessionNotStarted = errors.New("今天的工作尚未开始")
	ErrInvalidTransition = errors.New("工作状态无法进行该变更")
)

// Store 是工作记录的持久化接口，未找到记录时返回 sql.ErrNoRows
type Store interface {
	GetWorkSession(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error)
	CreateWorkSession(ctx context.Context, ws *domain.WorkSession) error
	// UpdateWorkSessionStatus 仅当当前状态为 from 时才更新
	UpdateWorkSessionStatus(ctx context.Context, agentID int64, date string, from, to domain.WorkSessionStatus, at time.Time) (bool, error)
}

var transitions = map[domain.WorkSessionStatus][]domain.WorkSessionStatus{
	domain.WorkSessionIdle:   {domain.WorkSessionActive},
	domain.WorkSessionActive: {domain.WorkSessionPaused, domain.WorkSessionCompleted},
	domain.WorkSessionPaused: {domain.WorkSessionActive, domain.WorkSessionCompleted},
}

func canTransition(from, to domain.WorkSessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Tracker 记录助理每天的上班、暂停、恢复和下班
type Tracker struct {
	store Store
	now   func() time.Time
}

func NewTracker(store Store, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, now: now}
}

// Current 返回当天的工作记录，没有记录时返回 idle 状态的空记录
func (t *Tracker) Current(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	ws, err := t.store.GetWorkSession(ctx, agentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.WorkSession{AgentID: agentID, Date: date, Status: domain.WorkSessionIdle}, nil
		}
		return nil, err
	}
	return ws, nil
}

func (t *Tracker) Start(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	ws, err := t.store.GetWorkSession(ctx, agentID, date)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		now := t.now()
		ws = &domain.WorkSession{
			AgentID:   agentID,
			Date:      date,
			Status:    domain.WorkSessionActive,
			StartedAt: &now,
		}
		if err := t.store.CreateWorkSession(ctx, ws); err != nil {
			return nil, err
		}
		return ws, nil
	}

	if ws.Status == domain.WorkSessionActive {
		return ws, nil
	}
	return t.move(ctx, ws, domain.WorkSessionActive)
}

func (t *Tracker) Pause(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	return t.transition(ctx, agentID, date, domain.WorkSessionPaused)
}

func (t *Tracker) Resume(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	return t.transition(ctx, agentID, date, domain.WorkSessionActive)
}

func (t *Tracker) End(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	return t.transition(ctx, agentID, date, domain.WorkSessionCompleted)
}

func (t *Tracker) transition(ctx context.Context, agentID int64, date string, to domain.WorkSessionStatus) (*domain.WorkSession, error) {
	ws, err := t.store.GetWorkSession(ctx, agentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotStarted
		}
		return nil, err
	}
	return t.move(ctx, ws, to)
}

func (t *Tracker) move(ctx context.Context, ws *domain.WorkSession, to domain.WorkSessionStatus) (*domain.WorkSession, error) {
	if !canTransition(ws.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ws.Status, to)
	}

	now := t.now()
	ok, err := t.store.UpdateWorkSessionStatus(ctx, ws.AgentID, ws.Date, ws.Status, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: 工作状态已被修改", ErrInvalidTransition)
	}

	ws.Status = to
	switch to {
	case domain.WorkSessionActive:
		if ws.StartedAt == nil {
			ws.StartedAt = &now
		}
	case domain.WorkSessionCompleted:
		ws.EndedAt = &now
	}
	return ws, nil
}

// PauseWorkSession 在休息开始时调用，只有处于工作中的记录会被暂停
func (t *Tracker) PauseWorkSession(ctx context.Context, agentID int64, date string, at time.Time) error {
	_, err := t.store.UpdateWorkSessionStatus(ctx, agentID, date, domain.WorkSessionActive, domain.WorkSessionPaused, at)
	return err
}

// ResumeWorkSession 在休息结束时调用，只有处于暂停的记录会被恢复
func (t *Tracker) ResumeWorkSession(ctx context.Context, agentID int64, date string, at time.Time) error {
	_, err := t.store.UpdateWorkSessionStatus(ctx, agentID, date, domain.WorkSessionPaused, domain.WorkSessionActive, at)
	return err
}
