package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT agent_number, password_hash, full_name, role, team_id, created_at, version
		FROM users WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user := &domain.User{
		ID: id,
	}

	dst := []any{&user.AgentNumber, &user.PasswordHash, &user.FullName, &user.Role, &user.TeamID, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) GetUserByAgentNumber(ctx context.Context, agentNumber string) (*domain.User, error) {
	query := `
		SELECT id, password_hash, full_name, role, team_id, created_at, version
		FROM users WHERE agent_number = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user := &domain.User{
		AgentNumber: agentNumber,
	}

	dst := []any{&user.ID, &user.PasswordHash, &user.FullName, &user.Role, &user.TeamID, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, agentNumber).Scan(dst...); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET
			password_hash = $1,
			full_name = $2,
			role = $3,
			team_id = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING agent_number, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{user.PasswordHash, user.FullName, string(user.Role), user.TeamID, user.ID, user.Version}
	dst := []any{&user.AgentNumber, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) scanUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user := &domain.User{}
		dst := []any{&user.ID, &user.AgentNumber, &user.PasswordHash, &user.FullName, &user.Role, &user.TeamID, &user.CreatedAt, &user.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) GetAllUsers(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, agent_number, password_hash, full_name, role, team_id, created_at, version
		FROM users ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.scanUsers(ctx, query)
}

func (r *Repository) ListTeamMembers(ctx context.Context, teamID int64) ([]*domain.User, error) {
	query := `
		SELECT id, agent_number, password_hash, full_name, role, team_id, created_at, version
		FROM users WHERE team_id = $1 ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.scanUsers(ctx, query, teamID)
}

func (r *Repository) ListTeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	query := `SELECT id FROM users WHERE team_id = $1 ORDER BY id`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, teamID)
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

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	query := `
		DELETE FROM users WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO users (agent_number, password_hash, full_name, role, team_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`

	args := []any{user.AgentNumber, user.PasswordHash, user.FullName, string(user.Role), user.TeamID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version); err != nil {
		return err
	}

	return nil
}
