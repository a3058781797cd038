package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timeline"
)

var ErrSessionNotFound = errors.New("编辑会话不存在或已过期")

// Snapshot 是会话的可序列化形式
type Snapshot struct {
	TeamID      int64                   `json:"teamID"`
	Date        string                  `json:"date"`
	SlotMinutes int                     `json:"slotMinutes"`
	Tool        *Tool                   `json:"tool,omitempty"`
	Grids       map[int64]timeline.Grid `json:"grids"`
}

func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{
		TeamID:      s.teamID,
		Date:        s.date,
		SlotMinutes: s.layout.SlotMinutes(),
		Grids:       s.Grids(),
	}
	if s.tool != nil {
		t := *s.tool
		snap.Tool = &t
	}
	return snap
}

func Restore(snap *Snapshot) (*Session, error) {
	layout, err := timegrid.NewLayout(snap.SlotMinutes)
	if err != nil {
		return nil, err
	}

	s := &Session{
		layout: layout,
		teamID: snap.TeamID,
		date:   snap.Date,
		grids:  make(map[int64]timeline.Grid, len(snap.Grids)),
	}
	for id, g := range snap.Grids {
		if len(g) != layout.Slots() {
			return nil, fmt.Errorf("%w: 助理 %d", timeline.ErrGridSize, id)
		}
		s.grids[id] = g.Clone()
	}
	if snap.Tool != nil {
		if err := s.SetTool(*snap.Tool); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Store 把编辑会话保存在 redis 中，使无状态的 HTTP 请求之间可以共享同一个会话
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(operatorID, teamID int64, date string) string {
	return fmt.Sprintf("editor_%d_team_%d_%s", operatorID, teamID, date)
}

func (st *Store) Save(ctx context.Context, operatorID int64, s *Session) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return err
	}
	return st.rdb.Set(ctx, sessionKey(operatorID, s.teamID, s.date), data, st.ttl).Err()
}

func (st *Store) Load(ctx context.Context, operatorID, teamID int64, date string) (*Session, error) {
	data, err := st.rdb.Get(ctx, sessionKey(operatorID, teamID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	return Restore(snap)
}

func (st *Store) Delete(ctx context.Context, operatorID, teamID int64, date string) error {
	return st.rdb.Del(ctx, sessionKey(operatorID, teamID, date)).Err()
}
