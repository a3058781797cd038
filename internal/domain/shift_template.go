package domain

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

// ShiftTemplate 是编辑器中“点击即套用”的固定班次
type ShiftTemplate struct {
	ID        int64          `json:"id"`
	TeamID    *int64         `json:"teamID"` // 为空表示所有团队通用
	Name      string         `json:"name"`
	StartTime timegrid.Clock `json:"startTime"`
	EndTime   timegrid.Clock `json:"endTime"`
	Label     string         `json:"label"`
	Color     string         `json:"color"`
	CreatedAt time.Time      `json:"createdAt"`
	Version   int32          `json:"-"`
}
