package schedule

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timeline"
)

// ErrCommitFailed 表示保存过程中存储层出错，此时库中仍是保存前的数据，可以重试
var ErrCommitFailed = errors.New("保存排班失败，请稍后重试")

type Gateway interface {
	// ReplaceIntervals 在一个事务内删除该团队当天的所有区间并写入新的区间
	ReplaceIntervals(ctx context.Context, teamID int64, date string, intervals []domain.ShiftInterval) error
	ListTeamIntervals(ctx context.Context, teamID int64, date string) ([]domain.ShiftInterval, error)
	ListTeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error)
}

type Service struct {
	gw     Gateway
	layout timegrid.Layout
}

func NewService(gw Gateway, layout timegrid.Layout) *Service {
	return &Service{gw: gw, layout: layout}
}

func (s *Service) Layout() timegrid.Layout { return s.layout }

// OpenDay 读取团队当天已保存的排班，构造一个新的编辑会话
func (s *Service) OpenDay(ctx context.Context, teamID int64, date string) (*editor.Session, error) {
	if !domain.ValidDate(date) {
		return nil, fmt.Errorf("%w: 无效的日期 %q", timegrid.ErrInvalidTime, date)
	}

	members, err := s.gw.ListTeamMemberIDs(ctx, teamID)
	if err != nil {
		return nil, err
	}
	intervals, err := s.gw.ListTeamIntervals(ctx, teamID, date)
	if err != nil {
		return nil, err
	}

	// 已离开团队的助理的旧区间也需要显示出来，否则保存时会被静默删除
	for _, iv := range intervals {
		if !slices.Contains(members, iv.AgentID) {
			members = append(members, iv.AgentID)
		}
	}

	session := editor.NewSession(s.layout, teamID, date, members)
	if err := session.Load(intervals); err != nil {
		return nil, err
	}
	return session, nil
}

// CommitDay 编码所有网格，并整体替换团队当天的区间
// 编码失败属于调用方错误，原样返回；存储失败包装为 ErrCommitFailed
func (s *Service) CommitDay(ctx context.Context, teamID int64, date string, grids map[int64]timeline.Grid) ([]domain.ShiftInterval, error) {
	if !domain.ValidDate(date) {
		return nil, fmt.Errorf("%w: 无效的日期 %q", timegrid.ErrInvalidTime, date)
	}

	intervals := make([]domain.ShiftInterval, 0)
	for _, agentID := range slices.Sorted(maps.Keys(grids)) {
		ivs, err := timeline.Encode(s.layout, agentID, date, grids[agentID])
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, ivs...)
	}

	if err := s.gw.ReplaceIntervals(ctx, teamID, date, intervals); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return intervals, nil
}

func (s *Service) CommitSession(ctx context.Context, session *editor.Session) ([]domain.ShiftInterval, error) {
	return s.CommitDay(ctx, session.TeamID(), session.Date(), session.Grids())
}
