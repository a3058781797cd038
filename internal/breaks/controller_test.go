package breaks

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/lock"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

const testDate = "2025-03-14"

type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	breaks   map[int64]*domain.Break
	policies map[int64]domain.TeamCapacityPolicy
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		breaks:   make(map[int64]*domain.Break),
		policies: make(map[int64]domain.TeamCapacityPolicy),
	}
}

func (m *memoryStore) ListBreaks(_ context.Context, f Filter) ([]*domain.Break, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Break
	for _, b := range m.breaks {
		if b.Date != f.Date {
			continue
		}
		if f.AgentID != nil && b.AgentID != *f.AgentID {
			continue
		}
		if f.TeamID != nil && b.TeamID != *f.TeamID {
			continue
		}
		if !f.IncludeCancelled && b.Status == domain.BreakCancelled {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryStore) GetBreak(_ context.Context, id int64) (*domain.Break, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breaks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func (m *memoryStore) InsertBreak(_ context.Context, b *domain.Break) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	b.ID = m.nextID
	b.CreatedAt = time.Now()
	copied := *b
	m.breaks[b.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateBreakStatus(_ context.Context, id int64, from, to domain.BreakStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breaks[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	switch to {
	case domain.BreakActive:
		b.ActualStart = &at
	case domain.BreakCompleted:
		b.ActualEnd = &at
	}
	return true, nil
}

func (m *memoryStore) GetTeamCapacityPolicy(_ context.Context, teamID int64) (domain.TeamCapacityPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.policies[teamID]; ok {
		return p, nil
	}
	return domain.TeamCapacityPolicy{
		MaxConcurrentBreaks: domain.DefaultMaxConcurrentBreaks,
		OverlapTolerance:    domain.DefaultOverlapTolerance,
	}, nil
}

type memorySessions struct {
	mu     sync.Mutex
	events []string
}

func (s *memorySessions) PauseWorkSession(_ context.Context, agentID int64, date string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "pause")
	return nil
}

func (s *memorySessions) ResumeWorkSession(_ context.Context, agentID int64, date string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "resume")
	return nil
}

func clock(t *testing.T, s string) timegrid.Clock {
	t.Helper()
	c, err := timegrid.ParseClock(s)
	require.NoError(t, err)
	return c
}

func newUnitController(t *testing.T, store *memoryStore, sessions *memorySessions) *Controller {
	t.Helper()
	q, err := NewUnitQuota(map[int]int{10: 6, 30: 1})
	require.NoError(t, err)
	return NewController(store, sessions, lock.NewKeyedMutex(), q, []int{10, 30})
}

func request(t *testing.T, agentID int64, start string, duration int) Request {
	return Request{
		AgentID:         agentID,
		TeamID:          1,
		Date:            testDate,
		StartTime:       clock(t, start),
		DurationMinutes: duration,
	}
}

func TestRequestBreakUnitQuota(t *testing.T) {
	store := newMemoryStore()
	// 关闭容量限制，只测试额度
	store.policies[1] = domain.TeamCapacityPolicy{MaxConcurrentBreaks: 100}
	c := newUnitController(t, store, &memorySessions{})
	ctx := context.Background()

	starts := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00"}
	for _, s := range starts {
		_, err := c.RequestBreak(ctx, request(t, 7, s, 10))
		require.NoError(t, err)
	}

	_, err := c.RequestBreak(ctx, request(t, 7, "15:00", 10))
	require.ErrorIs(t, err, ErrQuotaExceeded)
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 6, qe.Used)
	assert.Equal(t, 6, qe.Allowed)

	_, err = c.RequestBreak(ctx, request(t, 7, "16:00", 30))
	require.NoError(t, err)

	_, err = c.RequestBreak(ctx, request(t, 7, "17:00", 30))
	require.ErrorIs(t, err, ErrQuotaExceeded)

	summary, err := c.DailySummary(ctx, 7, testDate)
	require.NoError(t, err)
	assert.Equal(t, PolicyUnits, summary.Policy)
	assert.Equal(t, 90, summary.UsedMinutes)
	assert.Equal(t, 0, summary.RemainingMinutes)
}

func TestCancelledBreakFreesQuota(t *testing.T) {
	store := newMemoryStore()
	c := newUnitController(t, store, &memorySessions{})
	ctx := context.Background()

	b, err := c.RequestBreak(ctx, request(t, 7, "16:00", 30))
	require.NoError(t, err)

	_, err = c.CancelBreak(ctx, 7, b.ID)
	require.NoError(t, err)

	_, err = c.RequestBreak(ctx, request(t, 7, "17:00", 30))
	require.NoError(t, err)
}

func TestRequestBreakMinutesQuota(t *testing.T) {
	store := newMemoryStore()
	q, err := NewMinutesQuota(60)
	require.NoError(t, err)
	c := NewController(store, &memorySessions{}, lock.NewKeyedMutex(), q, []int{10, 30})
	ctx := context.Background()

	_, err = c.RequestBreak(ctx, request(t, 7, "10:00", 30))
	require.NoError(t, err)
	_, err = c.RequestBreak(ctx, request(t, 7, "11:00", 30))
	require.NoError(t, err)

	_, err = c.RequestBreak(ctx, request(t, 7, "12:00", 10))
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 0, qe.RemainingMinutes)
	assert.Equal(t, 60, qe.Used)
}

func TestRequestBreakCapacity(t *testing.T) {
	store := newMemoryStore()
	c := newUnitController(t, store, &memorySessions{})
	ctx := context.Background()

	_, err := c.RequestBreak(ctx, request(t, 1, "14:00", 10))
	require.NoError(t, err)
	_, err = c.RequestBreak(ctx, request(t, 2, "14:00", 10))
	require.NoError(t, err)

	_, err = c.RequestBreak(ctx, request(t, 3, "14:00", 10))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	var ce *CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Concurrent)
	assert.Equal(t, 2, ce.Max)

	// 开始时间相差 1 分钟仍视为同一时段
	_, err = c.RequestBreak(ctx, request(t, 3, "14:01", 10))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = c.RequestBreak(ctx, request(t, 3, "14:30", 10))
	require.NoError(t, err)

	// 首尾相接的休息不冲突
	_, err = c.RequestBreak(ctx, request(t, 3, "14:10", 10))
	require.NoError(t, err)
}

func TestRequestBreakCapacityIsPerTeam(t *testing.T) {
	store := newMemoryStore()
	c := newUnitController(t, store, &memorySessions{})
	ctx := context.Background()

	for agent := int64(1); agent <= 2; agent++ {
		_, err := c.RequestBreak(ctx, request(t, agent, "14:00", 10))
		require.NoError(t, err)
	}

	other := request(t, 3, "14:00", 10)
	other.TeamID = 2
	_, err := c.RequestBreak(ctx, other)
	require.NoError(t, err)
}

func TestRequestBreakConcurrentAdmission(t *testing.T) {
	store := newMemoryStore()
	c := newUnitController(t, store, &memorySessions{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for agent := int64(1); agent <= 10; agent++ {
		req := request(t, agent, "14:00", 10)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.RequestBreak(context.Background(), req)
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrCapacityExceeded)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, admitted)
}

func TestRequestBreakValidation(t *testing.T) {
	c := newUnitController(t, newMemoryStore(), &memorySessions{})
	ctx := context.Background()

	_, err := c.RequestBreak(ctx, request(t, 1, "14:00", 15))
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = c.RequestBreak(ctx, request(t, 1, "23:55", 10))
	require.ErrorIs(t, err, timegrid.ErrInvalidTime)

	bad := request(t, 1, "14:00", 10)
	bad.Date = "2025/03/14"
	_, err = c.RequestBreak(ctx, bad)
	require.ErrorIs(t, err, timegrid.ErrInvalidTime)

	_, err = c.RequestBreak(ctx, request(t, 1, "14:00", 10))
	require.NoError(t, err)
	_, err = c.RequestBreak(ctx, request(t, 1, "14:05", 10))
	require.ErrorIs(t, err, ErrOverlapsOwnBreak)
}

func TestBreakLifecycle(t *testing.T) {
	store := newMemoryStore()
	sessions := &memorySessions{}
	now := time.Date(2025, 3, 14, 14, 0, 0, 0, time.Local)
	q, err := NewUnitQuota(map[int]int{10: 6, 30: 1})
	require.NoError(t, err)
	c := NewController(store, sessions, lock.NewKeyedMutex(), q, []int{10, 30}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	b, err := c.RequestBreak(ctx, request(t, 7, "14:00", 10))
	require.NoError(t, err)
	assert.Equal(t, domain.BreakScheduled, b.Status)

	_, err = c.EndBreak(ctx, 7, b.ID)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.BreakScheduled, te.From)
	assert.Equal(t, domain.BreakCompleted, te.To)

	_, err = c.StartBreak(ctx, 8, b.ID)
	require.ErrorIs(t, err, ErrBreakNotFound)

	started, err := c.StartBreak(ctx, 7, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BreakActive, started.Status)
	require.NotNil(t, started.ActualStart)
	assert.True(t, started.ActualStart.Equal(now))

	_, err = c.StartBreak(ctx, 7, b.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = c.CancelBreak(ctx, 7, b.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	now = now.Add(10 * time.Minute)
	ended, err := c.EndBreak(ctx, 7, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BreakCompleted, ended.Status)
	require.NotNil(t, ended.ActualEnd)

	stored, err := store.GetBreak(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BreakCompleted, stored.Status)
	assert.Equal(t, []string{"pause", "resume"}, sessions.events)

	_, err = c.StartBreak(ctx, 7, 999)
	require.ErrorIs(t, err, ErrBreakNotFound)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.BreakStatus
		want     bool
	}{
		{domain.BreakScheduled, domain.BreakActive, true},
		{domain.BreakScheduled, domain.BreakCancelled, true},
		{domain.BreakActive, domain.BreakCompleted, true},
		{domain.BreakScheduled, domain.BreakCompleted, false},
		{domain.BreakActive, domain.BreakCancelled, false},
		{domain.BreakCompleted, domain.BreakActive, false},
		{domain.BreakCancelled, domain.BreakScheduled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOverlay(t *testing.T) {
	bs := []*domain.Break{
		{ID: 1, StartTime: clock(t, "14:20"), DurationMinutes: 30, Status: domain.BreakScheduled},
		{ID: 2, StartTime: clock(t, "09:00"), DurationMinutes: 10, Status: domain.BreakCancelled},
	}

	segs := Overlay(timegrid.DefaultLayout(), bs)
	require.Len(t, segs, 2)

	assert.Equal(t, 28, segs[0].Slot)
	assert.InDelta(t, 66.67, segs[0].Left, 0.01)
	assert.InDelta(t, 33.33, segs[0].Width, 0.01)

	assert.Equal(t, 29, segs[1].Slot)
	assert.InDelta(t, 0, segs[1].Left, 0.01)
	assert.InDelta(t, 66.67, segs[1].Width, 0.01)
}
