package domain

import "time"

type WorkSessionStatus string

const (
	WorkSessionIdle      WorkSessionStatus = "idle"
	WorkSessionActive    WorkSessionStatus = "active"
	WorkSessionPaused    WorkSessionStatus = "paused"
	WorkSessionCompleted WorkSessionStatus = "completed"
)

type WorkSession struct {
	ID        int64             `json:"id"`
	AgentID   int64             `json:"agentID"`
	Date      string            `json:"date"`
	Status    WorkSessionStatus `json:"status"`
	StartedAt *time.Time        `json:"startedAt"`
	EndedAt   *time.Time        `json:"endedAt"`
	CreatedAt time.Time         `json:"createdAt"`
}
