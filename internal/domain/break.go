package domain

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
)

type BreakStatus string

const (
	BreakScheduled BreakStatus = "scheduled"
	BreakActive    BreakStatus = "active"
	BreakCompleted BreakStatus = "completed"
	BreakCancelled BreakStatus = "cancelled"
)

func (s BreakStatus) Terminal() bool {
	return s == BreakCompleted || s == BreakCancelled
}

type Break struct {
	ID              int64          `json:"id"`
	AgentID         int64          `json:"agentID"`
	TeamID          int64          `json:"teamID"`
	Date            string         `json:"date"`
	StartTime       timegrid.Clock `json:"startTime"`
	DurationMinutes int            `json:"durationMinutes"`
	Status          BreakStatus    `json:"status"`
	ActualStart     *time.Time     `json:"actualStart"`
	ActualEnd       *time.Time     `json:"actualEnd"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func (b *Break) EndTime() timegrid.Clock {
	return b.StartTime.Add(b.DurationMinutes)
}
