package breaks

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

const (
	PolicyUnits   = "units"
	PolicyMinutes = "minutes"
)

// Quota 是每个助理每天的休息额度，进程内只会使用其中一种形式
type Quota interface {
	Policy() string
	// Check 判断在已有（未取消的）休息之外再加入一个 duration 分钟的休息是否超额
	Check(existing []*domain.Break, durationMinutes int) error
	Summary(existing []*domain.Break) Summary
}

type UnitUsage struct {
	DurationMinutes int `json:"durationMinutes"`
	Used            int `json:"used"`
	Allowed         int `json:"allowed"`
	Remaining       int `json:"remaining"`
}

// Summary 是助理当天的休息用量
type Summary struct {
	Policy           string      `json:"policy"`
	UsedMinutes      int         `json:"usedMinutes"`
	RemainingMinutes int         `json:"remainingMinutes"`
	Units            []UnitUsage `json:"units,omitempty"`
}

func activeBreaks(existing []*domain.Break) []*domain.Break {
	out := make([]*domain.Break, 0, len(existing))
	for _, b := range existing {
		if b.Status != domain.BreakCancelled {
			out = append(out, b)
		}
	}
	return out
}

func usedMinutes(existing []*domain.Break) int {
	total := 0
	for _, b := range existing {
		total += b.DurationMinutes
	}
	return total
}

// UnitQuota 按时长分别限制次数，例如 10 分钟 6 次、30 分钟 1 次
type UnitQuota struct {
	limits map[int]int
}

func NewUnitQuota(limits map[int]int) (*UnitQuota, error) {
	if len(limits) == 0 {
		return nil, fmt.Errorf("休息次数额度不能为空")
	}
	copied := make(map[int]int, len(limits))
	for d, n := range limits {
		if d <= 0 || n < 0 {
			return nil, fmt.Errorf("无效的休息次数额度 %d:%d", d, n)
		}
		copied[d] = n
	}
	return &UnitQuota{limits: copied}, nil
}

func (q *UnitQuota) Policy() string { return PolicyUnits }

func (q *UnitQuota) Check(existing []*domain.Break, durationMinutes int) error {
	used := 0
	for _, b := range activeBreaks(existing) {
		if b.DurationMinutes == durationMinutes {
			used++
		}
	}

	allowed := q.limits[durationMinutes]
	if used+1 > allowed {
		return &QuotaError{
			Policy:           PolicyUnits,
			DurationMinutes:  durationMinutes,
			Used:             used,
			Allowed:          allowed,
			RemainingMinutes: q.Summary(existing).RemainingMinutes,
		}
	}
	return nil
}

func (q *UnitQuota) Summary(existing []*domain.Break) Summary {
	active := activeBreaks(existing)

	counts := make(map[int]int)
	for _, b := range active {
		counts[b.DurationMinutes]++
	}

	durations := make([]int, 0, len(q.limits))
	for d := range q.limits {
		durations = append(durations, d)
	}
	slices.Sort(durations)

	s := Summary{
		Policy:      PolicyUnits,
		UsedMinutes: usedMinutes(active),
		Units:       make([]UnitUsage, 0, len(durations)),
	}
	for _, d := range durations {
		remaining := max(0, q.limits[d]-counts[d])
		s.Units = append(s.Units, UnitUsage{
			DurationMinutes: d,
			Used:            counts[d],
			Allowed:         q.limits[d],
			Remaining:       remaining,
		})
		s.RemainingMinutes += remaining * d
	}
	return s
}

// MinutesQuota 限制每天休息的总分钟数
type MinutesQuota struct {
	daily int
}

func NewMinutesQuota(daily int) (*MinutesQuota, error) {
	if daily <= 0 {
		return nil, fmt.Errorf("每日休息分钟数必须为正数")
	}
	return &MinutesQuota{daily: daily}, nil
}

func (q *MinutesQuota) Policy() string { return PolicyMinutes }

func (q *MinutesQuota) Check(existing []*domain.Break, durationMinutes int) error {
	used := usedMinutes(activeBreaks(existing))
	if used+durationMinutes > q.daily {
		return &QuotaError{
			Policy:           PolicyMinutes,
			DurationMinutes:  durationMinutes,
			Used:             used,
			Allowed:          q.daily,
			RemainingMinutes: max(0, q.daily-used),
		}
	}
	return nil
}

func (q *MinutesQuota) Summary(existing []*domain.Break) Summary {
	used := usedMinutes(activeBreaks(existing))
	return Summary{
		Policy:           PolicyMinutes,
		UsedMinutes:      used,
		RemainingMinutes: max(0, q.daily-used),
	}
}
