package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (name, leader_id, max_concurrent_breaks, overlap_tolerance)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{team.Name, team.LeaderID, team.MaxConcurrentBreaks, team.OverlapTolerance}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&team.ID, &team.CreatedAt, &team.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetTeam(ctx context.Context, id int64) (*domain.Team, error) {
	query := `
		SELECT name, leader_id, max_concurrent_breaks, overlap_tolerance, created_at, version
		FROM teams WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	team := &domain.Team{
		ID: id,
	}

	dst := []any{&team.Name, &team.LeaderID, &team.MaxConcurrentBreaks, &team.OverlapTolerance, &team.CreatedAt, &team.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return team, nil
}

func (r *Repository) GetAllTeams(ctx context.Context) ([]*domain.Team, error) {
	query := `
		SELECT id, name, leader_id, max_concurrent_breaks, overlap_tolerance, created_at, version
		FROM teams ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*domain.Team, 0)
	for rows.Next() {
		team := &domain.Team{}
		dst := []any{&team.ID, &team.Name, &team.LeaderID, &team.MaxConcurrentBreaks, &team.OverlapTolerance, &team.CreatedAt, &team.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return teams, nil
}

func (r *Repository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	query := `
		UPDATE teams
		SET
			name = $1,
			leader_id = $2,
			max_concurrent_breaks = $3,
			overlap_tolerance = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{team.Name, team.LeaderID, team.MaxConcurrentBreaks, team.OverlapTolerance, team.ID, team.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&team.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteTeam(ctx context.Context, id int64) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	return err
}

// GetTeamCapacityPolicy 每次申请休息时都重新读取，不做缓存
func (r *Repository) GetTeamCapacityPolicy(ctx context.Context, teamID int64) (domain.TeamCapacityPolicy, error) {
	team, err := r.GetTeam(ctx, teamID)
	if err != nil {
		return domain.TeamCapacityPolicy{}, err
	}
	return team.CapacityPolicy(), nil
}
