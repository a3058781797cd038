package breaks

import (
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

// Segment 表示一个休息落在某个格子内的部分，Left 和 Width 为占格子宽度的百分比
type Segment struct {
	BreakID int64              `json:"breakID"`
	Slot    int                `json:"slot"`
	Left    float64            `json:"left"`
	Width   float64            `json:"width"`
	Status  domain.BreakStatus `json:"status"`
}

// Overlay 把休息切分到网格的各个格子上，用于在排班表上叠加显示
func Overlay(layout timegrid.Layout, bs []*domain.Break) []Segment {
	w := layout.SlotMinutes()

	var segments []Segment
	for _, b := range bs {
		if b.Status == domain.BreakCancelled {
			continue
		}

		start, end := b.StartTime, b.EndTime()
		for slot := int(start) / w; slot < layout.Slots() && slot*w < int(end); slot++ {
			slotStart := timegrid.Clock(slot * w)
			lo := max(slotStart, start)
			hi := min(slotStart.Add(w), end)
			if lo >= hi {
				continue
			}
			segments = append(segments, Segment{
				BreakID: b.ID,
				Slot:    slot,
				Left:    float64(lo-slotStart) / float64(w) * 100,
				Width:   float64(hi-lo) / float64(w) * 100,
				Status:  b.Status,
			})
		}
	}
	return segments
}
