package timeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

var (
	ErrMalformedInterval = errors.New("排班区间不合法")
	ErrGridSize          = errors.New("网格长度与时间划分不一致")
	ErrColorConflict     = errors.New("同一标签的相邻格子颜色不一致")
)

// Cell 是网格中的一个格子，Label 为空表示该格子未排班
type Cell struct {
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
}

func (c Cell) IsEmpty() bool {
	return c.Label == ""
}

// Grid 是某个助理某一天的可编辑网格，长度恒为 layout.Slots()
type Grid []Cell

func NewGrid(layout timegrid.Layout) Grid {
	return make(Grid, layout.Slots())
}

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	copy(out, g)
	return out
}

func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if g[i] != other[i] {
			return false
		}
	}
	return true
}

// Encode 将网格按游程压缩为最少的连续区间
// 相邻且标签相同的格子合并为一个区间，同一段内的格子颜色必须一致
func Encode(layout timegrid.Layout, agentID int64, date string, grid Grid) ([]domain.ShiftInterval, error) {
	n := layout.Slots()
	if len(grid) != n {
		return nil, fmt.Errorf("%w: 期望 %d 个格子，实际 %d 个", ErrGridSize, n, len(grid))
	}

	intervals := make([]domain.ShiftInterval, 0)
	for i := 0; i < n; {
		if grid[i].IsEmpty() {
			i++
			continue
		}

		j := i + 1
		for j < n && grid[j].Label == grid[i].Label {
			if grid[j].Color != grid[i].Color {
				return nil, fmt.Errorf("%w: 第 %d 格 %q 的颜色为 %s，第 %d 格为 %s", ErrColorConflict,
					i, grid[i].Label, grid[i].Color, j, grid[j].Color)
			}
			j++
		}

		// i 和 j 都在 [0, n] 内，这里不会出错
		start, _ := layout.SlotToTime(i)
		end, _ := layout.SlotToTime(j)

		intervals = append(intervals, domain.ShiftInterval{
			AgentID:   agentID,
			Date:      date,
			StartTime: start,
			EndTime:   end,
			Label:     grid[i].Label,
			Color:     grid[i].Color,
		})
		i = j
	}

	return intervals, nil
}

// Validate 检查同一个助理同一天的区间：开始必须早于结束，且互不重叠
// 返回按开始时间排序后的副本
func Validate(intervals []domain.ShiftInterval) ([]domain.ShiftInterval, error) {
	sorted := make([]domain.ShiftInterval, len(intervals))
	copy(sorted, intervals)

	for i, iv := range sorted {
		if !iv.StartTime.Valid() || !iv.EndTime.ValidEnd() {
			return nil, fmt.Errorf("%w: 第 %d 个区间的时间超出一天的范围", ErrMalformedInterval, i+1)
		}
		if iv.StartTime >= iv.EndTime {
			return nil, fmt.Errorf("%w: 第 %d 个区间的开始时间 %s 不早于结束时间 %s", ErrMalformedInterval, i+1, iv.StartTime, iv.EndTime)
		}
		if iv.Label == "" {
			return nil, fmt.Errorf("%w: 第 %d 个区间缺少标签", ErrMalformedInterval, i+1)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AgentID != sorted[j].AgentID {
			return sorted[i].AgentID < sorted[j].AgentID
		}
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].StartTime < sorted[j].StartTime
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.AgentID != cur.AgentID || prev.Date != cur.Date {
			continue
		}
		if prev.EndTime > cur.StartTime {
			return nil, fmt.Errorf("%w: 助理 %d 在 %s 的区间 %s-%s 与 %s-%s 重叠", ErrMalformedInterval,
				cur.AgentID, cur.Date, prev.StartTime, prev.EndTime, cur.StartTime, cur.EndTime)
		}
	}

	return sorted, nil
}

// Decode 将同一个助理同一天的区间还原为网格，未被覆盖的格子为空
// 未对齐格子边界的区间：开始向下取整，结束向上取整
// 取整后两个内容不同的区间落在同一个格子时返回错误，避免后写入的区间覆盖前一个
func Decode(layout timegrid.Layout, intervals []domain.ShiftInterval) (Grid, error) {
	sorted, err := Validate(intervals)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(sorted); i++ {
		if sorted[i].AgentID != sorted[0].AgentID || sorted[i].Date != sorted[0].Date {
			return nil, fmt.Errorf("%w: 区间不属于同一个助理的同一天", ErrMalformedInterval)
		}
	}

	grid := NewGrid(layout)
	for _, iv := range sorted {
		from, err := layout.TimeToSlot(iv.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInterval, err)
		}
		to, err := layout.EndSlot(iv.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInterval, err)
		}
		cell := Cell{Label: iv.Label, Color: iv.Color}
		for s := from; s < to; s++ {
			if !grid[s].IsEmpty() && grid[s] != cell {
				at, _ := layout.SlotToTime(s)
				return nil, fmt.Errorf("%w: 区间 %s-%s %q 与 %q 落在同一个格子 %s", ErrMalformedInterval,
					iv.StartTime, iv.EndTime, iv.Label, grid[s].Label, at)
			}
			grid[s] = cell
		}
	}

	return grid, nil
}

// DecodeDay 将一个团队某一天的所有区间按助理分组还原为网格
func DecodeDay(layout timegrid.Layout, intervals []domain.ShiftInterval) (map[int64]Grid, error) {
	byAgent := make(map[int64][]domain.ShiftInterval)
	for _, iv := range intervals {
		byAgent[iv.AgentID] = append(byAgent[iv.AgentID], iv)
	}

	grids := make(map[int64]Grid, len(byAgent))
	for agentID, ivs := range byAgent {
		grid, err := Decode(layout, ivs)
		if err != nil {
			return nil, err
		}
		grids[agentID] = grid
	}

	return grids, nil
}
