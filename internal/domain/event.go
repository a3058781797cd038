package domain

import "time"

type EventType string

const (
	EventDayCommitted   EventType = "day_committed"
	EventBreakRequested EventType = "break_requested"
	EventBreakStarted   EventType = "break_started"
	EventBreakEnded     EventType = "break_ended"
	EventBreakCancelled EventType = "break_cancelled"
)

// Event 是发送到消息队列中的审计事件
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ActorID    int64     `json:"actorID"`
	TeamID     *int64    `json:"teamID"`
	Date       string    `json:"date"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurredAt"`
}

type DayCommittedData struct {
	Agents    int `json:"agents"`
	Intervals int `json:"intervals"`
}

type BreakEventData struct {
	BreakID         int64       `json:"breakID"`
	AgentID         int64       `json:"agentID"`
	StartTime       string      `json:"startTime"`
	DurationMinutes int         `json:"durationMinutes"`
	Status          BreakStatus `json:"status"`
}
