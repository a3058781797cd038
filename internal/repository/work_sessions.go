package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

func (r *Repository) GetWorkSession(ctx context.Context, agentID int64, date string) (*domain.WorkSession, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, status, started_at, ended_at, created_at
		FROM work_sessions WHERE agent_id = $1 AND session_date = $2::date
	`, fmt.Sprintf(dateColumn, "session_date"))

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	ws := &domain.WorkSession{
		AgentID: agentID,
	}

	dst := []any{&ws.ID, &ws.Date, &ws.Status, &ws.StartedAt, &ws.EndedAt, &ws.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, agentID, date).Scan(dst...); err != nil {
		return nil, err
	}

	return ws, nil
}

func (r *Repository) CreateWorkSession(ctx context.Context, ws *domain.WorkSession) error {
	query := `
		INSERT INTO work_sessions (agent_id, session_date, status, started_at)
		VALUES ($1, $2::date, $3, $4)
		RETURNING id, created_at
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{ws.AgentID, ws.Date, string(ws.Status), ws.StartedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&ws.ID, &ws.CreatedAt); err != nil {
		return err
	}

	return nil
}

// UpdateWorkSessionStatus 只有当前状态等于 from 时才会更新
// 第一次进入 active 时记录 started_at，进入 completed 时记录 ended_at
func (r *Repository) UpdateWorkSessionStatus(ctx context.Context, agentID int64, date string, from, to domain.WorkSessionStatus, at time.Time) (bool, error) {
	query := `
		UPDATE work_sessions
		SET
			status = $4::text,
			started_at = CASE WHEN $4::text = 'active' THEN COALESCE(started_at, $5::timestamptz) ELSE started_at END,
			ended_at = CASE WHEN $4::text = 'completed' THEN $5::timestamptz ELSE ended_at END
		WHERE agent_id = $1 AND session_date = $2::date AND status = $3
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, agentID, date, string(from), string(to), at)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
