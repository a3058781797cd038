package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

const shiftTemplateColumns = `id, team_id, name, start_minute, end_minute, label, color, created_at, version`

func scanShiftTemplate(scan func(dst ...any) error) (*domain.ShiftTemplate, error) {
	st := &domain.ShiftTemplate{}
	dst := []any{&st.ID, &st.TeamID, &st.Name, &st.StartTime, &st.EndTime, &st.Label, &st.Color, &st.CreatedAt, &st.Version}
	if err := scan(dst...); err != nil {
		return nil, err
	}
	return st, nil
}

// GetShiftTemplates 返回某个团队可用的模板，包括所有团队通用的模板
// teamID 为空时返回全部模板
func (r *Repository) GetShiftTemplates(ctx context.Context, teamID *int64) ([]*domain.ShiftTemplate, error) {
	query := `
		SELECT ` + shiftTemplateColumns + `
		FROM shift_templates
		WHERE $1::bigint IS NULL OR team_id IS NULL OR team_id = $1::bigint
		ORDER BY team_id NULLS FIRST, start_minute, id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sts := make([]*domain.ShiftTemplate, 0)
	for rows.Next() {
		st, err := scanShiftTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		sts = append(sts, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sts, nil
}

func (r *Repository) GetShiftTemplate(ctx context.Context, id int64) (*domain.ShiftTemplate, error) {
	query := `SELECT ` + shiftTemplateColumns + ` FROM shift_templates WHERE id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanShiftTemplate(r.dbpool.QueryRowContext(ctx, query, id).Scan)
}

func (r *Repository) CreateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	query := `
		INSERT INTO shift_templates (team_id, name, start_minute, end_minute, label, color)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{st.TeamID, st.Name, st.StartTime, st.EndTime, st.Label, st.Color}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&st.ID, &st.CreatedAt, &st.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	query := `
		UPDATE shift_templates
		SET
			name = $1,
			start_minute = $2,
			end_minute = $3,
			label = $4,
			color = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	params := []any{st.Name, st.StartTime, st.EndTime, st.Label, st.Color, st.ID, st.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&st.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteShiftTemplate(ctx context.Context, id int64) error {
	query := `
		DELETE FROM shift_templates WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}
