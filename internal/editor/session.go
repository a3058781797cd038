package editor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timeline"
)

var (
	ErrUnknownAgent = errors.New("该助理不在本次编辑的团队中")
	ErrNoTool       = errors.New("尚未选择画笔")
)

// Session 保存一个团队某一天的编辑状态：每个助理一张网格以及当前的画笔
// 所有操作只修改内存，保存需要显式提交
type Session struct {
	layout timegrid.Layout
	teamID int64
	date   string
	grids  map[int64]timeline.Grid
	tool   *Tool
}

func NewSession(layout timegrid.Layout, teamID int64, date string, agentIDs []int64) *Session {
	s := &Session{
		layout: layout,
		teamID: teamID,
		date:   date,
		grids:  make(map[int64]timeline.Grid, len(agentIDs)),
	}
	for _, id := range agentIDs {
		s.grids[id] = timeline.NewGrid(layout)
	}
	return s
}

// Load 用已保存的区间覆盖对应助理的网格
func (s *Session) Load(intervals []domain.ShiftInterval) error {
	for _, iv := range intervals {
		if iv.Date != s.date {
			return fmt.Errorf("%w: 区间日期 %s 与编辑日期 %s 不一致", timeline.ErrMalformedInterval, iv.Date, s.date)
		}
		if _, ok := s.grids[iv.AgentID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAgent, iv.AgentID)
		}
	}

	grids, err := timeline.DecodeDay(s.layout, intervals)
	if err != nil {
		return err
	}
	for agentID, g := range grids {
		s.grids[agentID] = g
	}
	s.normalizeColors()
	return nil
}

// normalizeColors 让会话中每个标签只有一种颜色：内置状态使用调色板颜色，
// 其他标签使用按助理 ID 和时间顺序第一次出现的颜色
func (s *Session) normalizeColors() {
	colors := make(map[string]string)
	for _, id := range s.Agents() {
		g := s.grids[id]
		for i, c := range g {
			if c.IsEmpty() {
				continue
			}
			color, ok := colors[c.Label]
			if !ok {
				color = c.Color
				if IsStatusLabel(c.Label) {
					color = ColorFor(c.Label)
				}
				colors[c.Label] = color
			}
			g[i].Color = color
		}
	}
}

func (s *Session) Layout() timegrid.Layout { return s.layout }
func (s *Session) TeamID() int64           { return s.teamID }
func (s *Session) Date() string            { return s.date }

func (s *Session) Agents() []int64 {
	ids := make([]int64, 0, len(s.grids))
	for id := range s.grids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Session) Grid(agentID int64) (timeline.Grid, bool) {
	g, ok := s.grids[agentID]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// Grids 返回所有网格的副本
func (s *Session) Grids() map[int64]timeline.Grid {
	out := make(map[int64]timeline.Grid, len(s.grids))
	for id, g := range s.grids {
		out[id] = g.Clone()
	}
	return out
}

func (s *Session) Tool() (Tool, bool) {
	if s.tool == nil {
		return Tool{}, false
	}
	return *s.tool, true
}

func (s *Session) SetTool(t Tool) error {
	if err := t.Validate(s.layout); err != nil {
		return err
	}
	s.tool = &t
	return nil
}

// Paint 用当前画笔涂抹 [start, end)，范围会被限制在 [0, S) 内
// 模板画笔总是涂抹模板自身的范围
func (s *Session) Paint(agentID int64, start, end int) error {
	if s.tool == nil {
		return ErrNoTool
	}
	if s.tool.Kind == ToolTemplate {
		return s.ApplyTemplate(agentID, *s.tool.Template)
	}
	return s.fill(agentID, start, end, s.tool.cell())
}

// Drag 处理一次拖拽选择：(down, up) 先规范化为 (min, max)，两端都包含在内
// down == up 即为单击
func (s *Session) Drag(agentID int64, down, up int) error {
	lo, hi := min(down, up), max(down, up)
	return s.Paint(agentID, lo, hi+1)
}

func (s *Session) ApplyTemplate(agentID int64, t Template) error {
	if err := TemplateTool(t).Validate(s.layout); err != nil {
		return err
	}
	from, to, err := t.slots(s.layout)
	if err != nil {
		return err
	}
	return s.fill(agentID, from, to, t.cell())
}

func (s *Session) EraseRange(agentID int64, start, end int) error {
	return s.fill(agentID, start, end, timeline.Cell{})
}

// Clear 清空某个助理当天的所有格子
func (s *Session) Clear(agentID int64) error {
	return s.fill(agentID, 0, s.layout.Slots(), timeline.Cell{})
}

func (s *Session) fill(agentID int64, start, end int, cell timeline.Cell) error {
	g, ok := s.grids[agentID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, agentID)
	}

	// 用新颜色涂抹某个标签时，会话中该标签已有的格子一起换成新颜色
	if !cell.IsEmpty() {
		for _, other := range s.grids {
			for i := range other {
				if other[i].Label == cell.Label {
					other[i].Color = cell.Color
				}
			}
		}
	}

	start, end = s.layout.Clamp(start), s.layout.Clamp(end)
	for i := start; i < end; i++ {
		g[i] = cell
	}
	return nil
}

// Encode 将所有助理的网格编码为区间，按助理 ID 排序
func (s *Session) Encode() ([]domain.ShiftInterval, error) {
	intervals := make([]domain.ShiftInterval, 0)
	for _, id := range s.Agents() {
		ivs, err := timeline.Encode(s.layout, id, s.date, s.grids[id])
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, ivs...)
	}
	return intervals, nil
}
