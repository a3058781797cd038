package domain

import "time"

const (
	DefaultMaxConcurrentBreaks = 2
	DefaultOverlapTolerance    = 1
)

type Team struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	LeaderID            *int64    `json:"leaderID"`
	MaxConcurrentBreaks int32     `json:"maxConcurrentBreaks"`
	OverlapTolerance    int32     `json:"overlapTolerance"` // 单位为分钟
	CreatedAt           time.Time `json:"createdAt"`
	Version             int32     `json:"-"`
}

// TeamCapacityPolicy 描述团队同一时刻最多允许多少人在休息
type TeamCapacityPolicy struct {
	MaxConcurrentBreaks int `json:"maxConcurrentBreaks"`
	// 两个休息的重叠不超过该分钟数时不视为冲突；开始时间相差不超过该分钟数时视为同一时段
	OverlapTolerance int `json:"overlapTolerance"`
}

func (t *Team) CapacityPolicy() TeamCapacityPolicy {
	return TeamCapacityPolicy{
		MaxConcurrentBreaks: int(t.MaxConcurrentBreaks),
		OverlapTolerance:    int(t.OverlapTolerance),
	}
}
