package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

var intervalColumns = fmt.Sprintf(`id, agent_id, %s, start_minute, end_minute, label, color, created_at`, fmt.Sprintf(dateColumn, "shift_date"))

// ReplaceIntervals 在一个事务中删除团队当天的所有区间并写入新的区间
// 同一个团队同一天的保存通过事务级的 advisory lock 串行化
func (r *Repository) ReplaceIntervals(ctx context.Context, teamID int64, date string, intervals []domain.ShiftInterval) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lockQuery := `SELECT pg_advisory_xact_lock(hashtext('shift_intervals:' || $1::bigint::text || ':' || $2::text))`
	if _, err := tx.ExecContext(ctx, lockQuery, teamID, date); err != nil {
		return err
	}

	members, err := teamMemberIDs(ctx, tx, teamID)
	if err != nil {
		return err
	}
	agentIDs := crossTeamAgentIDs(intervals, members)

	// 顺便清理本次涉及的现任成员当天在其他团队留下的区间，避免同一助理同一天出现两套排班
	// 已离开本团队的助理在新团队的排班不受影响
	deleteQuery := `
		DELETE FROM shift_intervals
		WHERE shift_date = $2::date AND (team_id = $1 OR agent_id = ANY($3))
	`
	if _, err := tx.ExecContext(ctx, deleteQuery, teamID, date, agentIDs); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shift_intervals (agent_id, team_id, shift_date, start_minute, end_minute, label, color)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		RETURNING id, created_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range intervals {
		iv := &intervals[i]
		args := []any{iv.AgentID, teamID, date, iv.StartTime, iv.EndTime, iv.Label, iv.Color}
		if err := stmt.QueryRowContext(ctx, args...).Scan(&iv.ID, &iv.CreatedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func teamMemberIDs(ctx context.Context, tx *sql.Tx, teamID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM users WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// crossTeamAgentIDs 返回区间中出现且仍是本团队成员的助理，去重并排序
func crossTeamAgentIDs(intervals []domain.ShiftInterval, members []int64) []int64 {
	ids := make([]int64, 0)
	for _, iv := range intervals {
		if slices.Contains(members, iv.AgentID) && !slices.Contains(ids, iv.AgentID) {
			ids = append(ids, iv.AgentID)
		}
	}
	slices.Sort(ids)
	return ids
}

func (r *Repository) scanIntervals(ctx context.Context, query string, args ...any) ([]domain.ShiftInterval, error) {
	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intervals := make([]domain.ShiftInterval, 0)
	for rows.Next() {
		var iv domain.ShiftInterval
		dst := []any{&iv.ID, &iv.AgentID, &iv.Date, &iv.StartTime, &iv.EndTime, &iv.Label, &iv.Color, &iv.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return intervals, nil
}

func (r *Repository) ListTeamIntervals(ctx context.Context, teamID int64, date string) ([]domain.ShiftInterval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM shift_intervals
		WHERE team_id = $1 AND shift_date = $2::date
		ORDER BY agent_id, start_minute
	`, intervalColumns)

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.scanIntervals(ctx, query, teamID, date)
}

// ListAgentIntervals 返回助理在 [from, to] 日期范围内的区间
func (r *Repository) ListAgentIntervals(ctx context.Context, agentID int64, from, to string) ([]domain.ShiftInterval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM shift_intervals
		WHERE agent_id = $1 AND shift_date BETWEEN $2::date AND $3::date
		ORDER BY shift_date, start_minute
	`, intervalColumns)

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.scanIntervals(ctx, query, agentID, from, to)
}
