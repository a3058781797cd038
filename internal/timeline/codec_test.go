package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

const testDate = "2025-03-14"

var palette = []Cell{
	{},
	{Label: domain.LabelWork, Color: "#3b82f6"},
	{Label: domain.LabelLeave, Color: "#ef4444"},
	{Label: domain.LabelSick, Color: "#f59e0b"},
	{Label: "Training", Color: "#10b981"},
}

func randomGrid(r *rand.Rand, layout timegrid.Layout) Grid {
	g := NewGrid(layout)
	for i := range g {
		// 偏向于生成较长的连续段
		if i > 0 && r.Intn(3) > 0 {
			g[i] = g[i-1]
			continue
		}
		g[i] = palette[r.Intn(len(palette))]
	}
	return g
}

func clock(t *testing.T, s string) timegrid.Clock {
	t.Helper()
	c, err := timegrid.ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestEncodeMergesAdjacentSlots(t *testing.T) {
	layout := timegrid.DefaultLayout()
	g := NewGrid(layout)
	work := palette[1]
	for i := 22; i < 40; i++ { // 11:00 - 20:00
		g[i] = work
	}

	intervals, err := Encode(layout, 7, testDate, g)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, int64(7), intervals[0].AgentID)
	assert.Equal(t, testDate, intervals[0].Date)
	assert.Equal(t, "11:00", intervals[0].StartTime.String())
	assert.Equal(t, "20:00", intervals[0].EndTime.String())
	assert.Equal(t, domain.LabelWork, intervals[0].Label)
	assert.Equal(t, work.Color, intervals[0].Color)
}

func TestEncodeSplitsOnLabelChangeAndGap(t *testing.T) {
	layout := timegrid.DefaultLayout()
	g := NewGrid(layout)
	g[0] = palette[1]
	g[1] = palette[2]
	g[2] = palette[2]
	g[4] = palette[2]
	g[47] = palette[3]

	intervals, err := Encode(layout, 1, testDate, g)
	require.NoError(t, err)
	require.Len(t, intervals, 4)

	want := [][3]string{
		{"00:00", "00:30", domain.LabelWork},
		{"00:30", "01:30", domain.LabelLeave},
		{"02:00", "02:30", domain.LabelLeave},
		{"23:30", "24:00", domain.LabelSick},
	}
	for i, w := range want {
		assert.Equal(t, w[0], intervals[i].StartTime.String(), "interval %d start", i)
		assert.Equal(t, w[1], intervals[i].EndTime.String(), "interval %d end", i)
		assert.Equal(t, w[2], intervals[i].Label, "interval %d label", i)
	}
}

func TestEncodeEmptyGrid(t *testing.T) {
	layout := timegrid.DefaultLayout()
	intervals, err := Encode(layout, 1, testDate, NewGrid(layout))
	require.NoError(t, err)
	assert.Empty(t, intervals)
}

func TestEncodeRejectsWrongSize(t *testing.T) {
	_, err := Encode(timegrid.DefaultLayout(), 1, testDate, make(Grid, 10))
	require.ErrorIs(t, err, ErrGridSize)
}

func TestRoundTripGrid(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for _, width := range []int{15, 30, 60} {
		layout, err := timegrid.NewLayout(width)
		require.NoError(t, err)

		for n := 0; n < 200; n++ {
			g := randomGrid(r, layout)

			intervals, err := Encode(layout, 3, testDate, g)
			require.NoError(t, err)

			decoded, err := Decode(layout, intervals)
			require.NoError(t, err)
			require.True(t, g.Equal(decoded), "width %d iteration %d", width, n)
		}
	}

	layout := timegrid.DefaultLayout()
	recolored := Cell{Label: domain.LabelWork, Color: "#000000"}

	// 颜色不同的同名区间只要不相邻就能原样往返
	g := NewGrid(layout)
	g[10] = recolored
	g[12] = palette[1]
	intervals, err := Encode(layout, 3, testDate, g)
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	decoded, err := Decode(layout, intervals)
	require.NoError(t, err)
	assert.True(t, g.Equal(decoded))

	// 相邻时无法合并为一个区间而不丢失颜色
	g[11] = palette[1]
	_, err = Encode(layout, 3, testDate, g)
	require.ErrorIs(t, err, ErrColorConflict)
}

func TestEncodeIsMinimal(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	layout := timegrid.DefaultLayout()

	for n := 0; n < 200; n++ {
		intervals, err := Encode(layout, 3, testDate, randomGrid(r, layout))
		require.NoError(t, err)

		for i, iv := range intervals {
			require.Greater(t, iv.EndTime, iv.StartTime)
			if i == 0 {
				continue
			}
			prev := intervals[i-1]
			require.LessOrEqual(t, prev.EndTime, iv.StartTime)
			if prev.EndTime == iv.StartTime {
				require.NotEqual(t, prev.Label, iv.Label, "contiguous intervals must differ in label")
			}
		}

		// 幂等：再编码一次结果不变
		decoded, err := Decode(layout, intervals)
		require.NoError(t, err)
		again, err := Encode(layout, 3, testDate, decoded)
		require.NoError(t, err)
		require.Equal(t, intervals, again)
	}
}

func TestRoundTripIntervals(t *testing.T) {
	layout := timegrid.DefaultLayout()
	intervals := []domain.ShiftInterval{
		{AgentID: 9, Date: testDate, StartTime: clock(t, "09:00"), EndTime: clock(t, "11:00"), Label: domain.LabelLeave, Color: "#ef4444"},
		{AgentID: 9, Date: testDate, StartTime: clock(t, "11:00"), EndTime: clock(t, "20:00"), Label: domain.LabelWork, Color: "#3b82f6"},
		{AgentID: 9, Date: testDate, StartTime: clock(t, "22:00"), EndTime: timegrid.EndOfDay, Label: domain.LabelWork, Color: "#3b82f6"},
	}

	grid, err := Decode(layout, intervals)
	require.NoError(t, err)

	encoded, err := Encode(layout, 9, testDate, grid)
	require.NoError(t, err)
	assert.Equal(t, intervals, encoded)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	layout := timegrid.DefaultLayout()

	tests := []struct {
		name      string
		intervals []domain.ShiftInterval
	}{
		{
			name: "start equals end",
			intervals: []domain.ShiftInterval{
				{AgentID: 1, Date: testDate, StartTime: clock(t, "10:00"), EndTime: clock(t, "10:00"), Label: domain.LabelWork},
			},
		},
		{
			name: "start after end",
			intervals: []domain.ShiftInterval{
				{AgentID: 1, Date: testDate, StartTime: clock(t, "12:00"), EndTime: clock(t, "10:00"), Label: domain.LabelWork},
			},
		},
		{
			name: "overlap",
			intervals: []domain.ShiftInterval{
				{AgentID: 1, Date: testDate, StartTime: clock(t, "13:00"), EndTime: clock(t, "22:00"), Label: domain.LabelWork},
				{AgentID: 1, Date: testDate, StartTime: clock(t, "11:00"), EndTime: clock(t, "13:30"), Label: domain.LabelLeave},
			},
		},
		{
			name: "missing label",
			intervals: []domain.ShiftInterval{
				{AgentID: 1, Date: testDate, StartTime: clock(t, "10:00"), EndTime: clock(t, "11:00")},
			},
		},
		{
			name: "different agents",
			intervals: []domain.ShiftInterval{
				{AgentID: 1, Date: testDate, StartTime: clock(t, "10:00"), EndTime: clock(t, "11:00"), Label: domain.LabelWork},
				{AgentID: 2, Date: testDate, StartTime: clock(t, "12:00"), EndTime: clock(t, "13:00"), Label: domain.LabelWork},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(layout, tt.intervals)
			require.ErrorIs(t, err, ErrMalformedInterval)
		})
	}
}

func TestDecodeRoundsUnalignedIntervals(t *testing.T) {
	layout := timegrid.DefaultLayout()
	grid, err := Decode(layout, []domain.ShiftInterval{
		{AgentID: 1, Date: testDate, StartTime: clock(t, "11:15"), EndTime: clock(t, "12:10"), Label: domain.LabelWork},
	})
	require.NoError(t, err)

	for i, cell := range grid {
		if i >= 22 && i < 25 {
			assert.Equal(t, domain.LabelWork, cell.Label, "slot %d", i)
		} else {
			assert.True(t, cell.IsEmpty(), "slot %d", i)
		}
	}
}

func TestDecodeRejectsUnalignedIntervalsSharingASlot(t *testing.T) {
	layout := timegrid.DefaultLayout()

	// 以 15 分钟划分保存的两个区间，在 30 分钟划分下落在同一个格子里
	_, err := Decode(layout, []domain.ShiftInterval{
		{AgentID: 1, Date: testDate, StartTime: clock(t, "09:00"), EndTime: clock(t, "09:15"), Label: domain.LabelLeave},
		{AgentID: 1, Date: testDate, StartTime: clock(t, "09:15"), EndTime: clock(t, "10:00"), Label: domain.LabelWork},
	})
	require.ErrorIs(t, err, ErrMalformedInterval)

	// 内容相同的区间共用一个格子不会丢失信息
	grid, err := Decode(layout, []domain.ShiftInterval{
		{AgentID: 1, Date: testDate, StartTime: clock(t, "09:00"), EndTime: clock(t, "09:15"), Label: domain.LabelWork},
		{AgentID: 1, Date: testDate, StartTime: clock(t, "09:15"), EndTime: clock(t, "10:00"), Label: domain.LabelWork},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelWork, grid[18].Label)
	assert.Equal(t, domain.LabelWork, grid[19].Label)
}

func TestDecodeDay(t *testing.T) {
	layout := timegrid.DefaultLayout()
	grids, err := DecodeDay(layout, []domain.ShiftInterval{
		{AgentID: 1, Date: testDate, StartTime: clock(t, "11:00"), EndTime: clock(t, "20:00"), Label: domain.LabelWork},
		{AgentID: 2, Date: testDate, StartTime: clock(t, "13:00"), EndTime: clock(t, "22:00"), Label: domain.LabelWork},
	})
	require.NoError(t, err)
	require.Len(t, grids, 2)
	assert.Equal(t, domain.LabelWork, grids[1][22].Label)
	assert.True(t, grids[1][40].IsEmpty())
	assert.Equal(t, domain.LabelWork, grids[2][43].Label)
}
