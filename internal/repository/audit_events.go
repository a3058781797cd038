package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent 是审计事件在数据库中的形式，Data 保持为原始 JSON
type AuditEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ActorID    int64           `json:"actorID"`
	TeamID     *int64          `json:"teamID"`
	Date       *string         `json:"date"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// InsertAuditEvent 以事件 ID 去重，同一条消息被重复投递时只保存一次
func (r *Repository) InsertAuditEvent(ctx context.Context, e *AuditEvent) (bool, error) {
	query := `
		INSERT INTO audit_events (id, type, actor_id, team_id, event_date, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::jsonb, $7)
		ON CONFLICT (id) DO NOTHING
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	data := []byte(e.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}

	args := []any{e.ID, e.Type, e.ActorID, e.TeamID, e.Date, string(data), e.OccurredAt}
	result, err := r.dbpool.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *Repository) ListAuditEvents(ctx context.Context, teamID int64, date string) ([]*AuditEvent, error) {
	query := fmt.Sprintf(`
		SELECT id::text, type, actor_id, team_id, %s, data, occurred_at, received_at
		FROM audit_events
		WHERE team_id = $1 AND event_date = $2::date
		ORDER BY occurred_at
	`, fmt.Sprintf(dateColumn, "event_date"))

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, teamID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*AuditEvent, 0)
	for rows.Next() {
		e := &AuditEvent{}
		var data []byte
		dst := []any{&e.ID, &e.Type, &e.ActorID, &e.TeamID, &e.Date, &data, &e.OccurredAt, &e.ReceivedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
