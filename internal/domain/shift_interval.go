package domain

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

const DateLayout = "2006-01-02"

// 内置的状态标签
const (
	LabelWork  = "Work"
	LabelLeave = "Leave"
	LabelSick  = "Sick"
)

// ShiftInterval 是排班的持久化形式：某个助理某一天的 [StartTime, EndTime) 区间
type ShiftInterval struct {
	ID        int64          `json:"id"`
	AgentID   int64          `json:"agentID"`
	Date      string         `json:"date"`
	StartTime timegrid.Clock `json:"startTime"`
	EndTime   timegrid.Clock `json:"endTime"`
	Label     string         `json:"label"`
	Color     string         `json:"color"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (s *ShiftInterval) Minutes() int {
	return int(s.EndTime - s.StartTime)
}

// ValidDate 检查日期是否为 YYYY-MM-DD 格式
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}
