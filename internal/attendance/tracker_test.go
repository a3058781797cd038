package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

type memoryStore struct {
	sessions map[string]*domain.WorkSession
}

func key(agentID int64, date string) string {
	return fmt.Sprintf("%d_%s", agentID, date)
}

func (m *memoryStore) GetWorkSession(_ context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	ws, ok := m.sessions[key(agentID, date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *ws
	return &copied, nil
}

func (m *memoryStore) CreateWorkSession(_ context.Context, ws *domain.WorkSession) error {
	copied := *ws
	m.sessions[key(ws.AgentID, ws.Date)] = &copied
	return nil
}

func (m *memoryStore) UpdateWorkSessionStatus(_ context.Context, agentID int64, date string, from, to domain.WorkSessionStatus, at time.Time) (bool, error) {
	ws, ok := m.sessions[key(agentID, date)]
	if !ok || ws.Status != from {
		return false, nil
	}
	ws.Status = to
	if to == domain.WorkSessionCompleted {
		ws.EndedAt = &at
	}
	return true, nil
}

const testDate = "2025-03-14"

func TestTrackerLifecycle(t *testing.T) {
	store := &memoryStore{sessions: make(map[string]*domain.WorkSession)}
	tr := NewTracker(store, nil)
	ctx := context.Background()

	current, err := tr.Current(ctx, 1, testDate)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkSessionIdle, current.Status)

	_, err = tr.Pause(ctx, 1, testDate)
	require.ErrorIs(t, err, ErrSessionNotStarted)

	ws, err := tr.Start(ctx, 1, testDate)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkSessionActive, ws.Status)
	require.NotNil(t, ws.StartedAt)

	// 重复开始不会报错
	_, err = tr.Start(ctx, 1, testDate)
	require.NoError(t, err)

	ws, err = tr.Pause(ctx, 1, testDate)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkSessionPaused, ws.Status)

	_, err = tr.Pause(ctx, 1, testDate)
	require.ErrorIs(t, err, ErrInvalidTransition)

	ws, err = tr.Resume(ctx, 1, testDate)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkSessionActive, ws.Status)

	ws, err = tr.End(ctx, 1, testDate)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkSessionCompleted, ws.Status)
	assert.NotNil(t, ws.EndedAt)

	_, err = tr.Start(ctx, 1, testDate)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBreakHooksAreConditional(t *testing.T) {
	store := &memoryStore{sessions: make(map[string]*domain.WorkSession)}
	tr := NewTracker(store, nil)
	ctx := context.Background()

	// 没有工作记录时休息钩子什么也不做
	require.NoError(t, tr.PauseWorkSession(ctx, 1, testDate, time.Now()))

	_, err := tr.Start(ctx, 1, testDate)
	require.NoError(t, err)

	require.NoError(t, tr.PauseWorkSession(ctx, 1, testDate, time.Now()))
	assert.Equal(t, domain.WorkSessionPaused, store.sessions[key(1, testDate)].Status)

	require.NoError(t, tr.ResumeWorkSession(ctx, 1, testDate, time.Now()))
	assert.Equal(t, domain.WorkSessionActive, store.sessions[key(1, testDate)].Status)

	_, err = tr.End(ctx, 1, testDate)
	require.NoError(t, err)
	require.NoError(t, tr.ResumeWorkSession(ctx, 1, testDate, time.Now()))
	assert.Equal(t, domain.WorkSessionCompleted, store.sessions[key(1, testDate)].Status)
}
