package breaks

import (
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

type window struct {
	start timegrid.Clock
	end   timegrid.Clock
}

// conflicts 判断两个休息是否算作“同时”
// 重叠超过 tolerance 分钟，或开始时间相差不超过 tolerance 分钟，都视为冲突
func conflicts(a, b window, tolerance int) bool {
	overlap := int(min(a.end, b.end) - max(a.start, b.start))
	if overlap > tolerance {
		return true
	}

	diff := int(a.start - b.start)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// CountConcurrent 统计与 [start, start+duration) 冲突的未取消休息数
func CountConcurrent(existing []*domain.Break, start timegrid.Clock, durationMinutes int, tolerance int) int {
	req := window{start: start, end: start.Add(durationMinutes)}

	n := 0
	for _, b := range existing {
		if b.Status == domain.BreakCancelled {
			continue
		}
		if conflicts(req, window{start: b.StartTime, end: b.EndTime()}, tolerance) {
			n++
		}
	}
	return n
}

func overlapsAny(existing []*domain.Break, start timegrid.Clock, durationMinutes int) bool {
	req := window{start: start, end: start.Add(durationMinutes)}
	for _, b := range existing {
		if b.Status == domain.BreakCancelled {
			continue
		}
		if min(req.end, b.EndTime()) > max(req.start, b.StartTime) {
			return true
		}
	}
	return false
}
