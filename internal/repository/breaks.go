package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/breaks"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

var breakColumns = fmt.Sprintf(
	`id, agent_id, team_id, %s, start_minute, duration_minutes, status, actual_start, actual_end, created_at`,
	fmt.Sprintf(dateColumn, "break_date"),
)

func scanBreak(scan func(dst ...any) error) (*domain.Break, error) {
	b := &domain.Break{}
	dst := []any{&b.ID, &b.AgentID, &b.TeamID, &b.Date, &b.StartTime, &b.DurationMinutes, &b.Status, &b.ActualStart, &b.ActualEnd, &b.CreatedAt}
	if err := scan(dst...); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repository) ListBreaks(ctx context.Context, f breaks.Filter) ([]*domain.Break, error) {
	conditions := []string{"break_date = $1::date"}
	args := []any{f.Date}

	if f.AgentID != nil {
		args = append(args, *f.AgentID)
		conditions = append(conditions, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if f.TeamID != nil {
		args = append(args, *f.TeamID)
		conditions = append(conditions, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if !f.IncludeCancelled {
		args = append(args, string(domain.BreakCancelled))
		conditions = append(conditions, fmt.Sprintf("status <> $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM breaks
		WHERE %s
		ORDER BY start_minute, id
	`, breakColumns, strings.Join(conditions, " AND "))

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bs := make([]*domain.Break, 0)
	for rows.Next() {
		b, err := scanBreak(rows.Scan)
		if err != nil {
			return nil, err
		}
		bs = append(bs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bs, nil
}

func (r *Repository) GetBreak(ctx context.Context, id int64) (*domain.Break, error) {
	query := fmt.Sprintf(`SELECT %s FROM breaks WHERE id = $1`, breakColumns)

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanBreak(r.dbpool.QueryRowContext(ctx, query, id).Scan)
}

func (r *Repository) InsertBreak(ctx context.Context, b *domain.Break) error {
	query := `
		INSERT INTO breaks (agent_id, team_id, break_date, start_minute, duration_minutes, status)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		RETURNING id, created_at
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{b.AgentID, b.TeamID, b.Date, b.StartTime, b.DurationMinutes, string(b.Status)}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.CreatedAt); err != nil {
		return err
	}

	return nil
}

// UpdateBreakStatus 只有当前状态等于 from 时才会更新
// 进入 active 时记录 actual_start，进入 completed 时记录 actual_end
func (r *Repository) UpdateBreakStatus(ctx context.Context, id int64, from, to domain.BreakStatus, at time.Time) (bool, error) {
	query := `
		UPDATE breaks
		SET
			status = $3::text,
			actual_start = CASE WHEN $3::text = 'active' THEN $4::timestamptz ELSE actual_start END,
			actual_end = CASE WHEN $3::text = 'completed' THEN $4::timestamptz ELSE actual_end END
		WHERE id = $1 AND status = $2
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
