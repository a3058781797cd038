package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/editor"
)

// RosterStore 是导入名单时用到的持久化操作
type RosterStore interface {
	GetAllTeams(ctx context.Context) ([]*domain.Team, error)
	CreateTeam(ctx context.Context, team *domain.Team) error
	UpdateTeam(ctx context.Context, team *domain.Team) error
	GetUserByAgentNumber(ctx context.Context, agentNumber string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, user *domain.User) error
}

var requiredHeaders = []string{"工号", "姓名", "角色", "团队"}

var roleAliases = map[string]domain.Role{
	"agent":      domain.RoleAgent,
	"助理":         domain.RoleAgent,
	"teamlead":   domain.RoleTeamLead,
	"组长":         domain.RoleTeamLead,
	"superadmin": domain.RoleSuperAdmin,
	"管理员":        domain.RoleSuperAdmin,
}

func parseRole(s string) (domain.Role, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return role, ok
}

type ImportResult struct {
	TeamsCreated int `json:"teamsCreated"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
}

// ImportRoster 从 CSV 导入助理名单，表头必须包含 工号,姓名,角色,团队
// 已存在的工号只更新姓名、角色和团队，不修改密码；不存在的团队会被自动创建
func ImportRoster(ctx context.Context, store RosterStore, r io.Reader, passwordHash string, policy domain.TeamCapacityPolicy) (ImportResult, error) {
	result := ImportResult{}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("读取表头失败: %w", err)
	}
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		index[strings.TrimPrefix(strings.TrimSpace(header), "\uFEFF")] = i
	}
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return result, fmt.Errorf("缺少表头 %q", h)
		}
	}

	teams, err := store.GetAllTeams(ctx)
	if err != nil {
		return result, err
	}
	teamsByName := make(map[string]*domain.Team, len(teams))
	for _, team := range teams {
		teamsByName[team.Name] = team
	}

	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result, fmt.Errorf("读取第 %d 行失败: %w", line+1, err)
		}
		line++

		field := func(name string) string {
			return strings.TrimSpace(row[index[name]])
		}

		agentNumber, fullName := field("工号"), field("姓名")
		role, ok := parseRole(field("角色"))
		if agentNumber == "" || fullName == "" || !ok {
			slog.Warn("跳过无效的行", "line", line, "row", row)
			result.Skipped++
			continue
		}

		var team *domain.Team
		if teamName := field("团队"); teamName != "" {
			team = teamsByName[teamName]
			if team == nil {
				team = &domain.Team{
					Name:                teamName,
					MaxConcurrentBreaks: int32(policy.MaxConcurrentBreaks),
					OverlapTolerance:    int32(policy.OverlapTolerance),
				}
				if err := store.CreateTeam(ctx, team); err != nil {
					return result, fmt.Errorf("创建团队 %q 失败: %w", teamName, err)
				}
				teamsByName[teamName] = team
				result.TeamsCreated++
			}
		}

		user, err := store.GetUserByAgentNumber(ctx, agentNumber)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			user = &domain.User{
				AgentNumber:  agentNumber,
				PasswordHash: passwordHash,
				FullName:     fullName,
				Role:         role,
			}
			if team != nil {
				user.TeamID = &team.ID
			}
			if err := store.CreateUser(ctx, user); err != nil {
				return result, fmt.Errorf("创建助理 %s 失败: %w", agentNumber, err)
			}
			result.Created++
		case err != nil:
			return result, err
		default:
			user.FullName = fullName
			user.Role = role
			user.TeamID = nil
			if team != nil {
				user.TeamID = &team.ID
			}
			if err := store.UpdateUser(ctx, user); err != nil {
				return result, fmt.Errorf("更新助理 %s 失败: %w", agentNumber, err)
			}
			result.Updated++
		}

		// 团队还没有组长时，名单中的第一个组长成为该团队的组长
		if team != nil && role == domain.RoleTeamLead && team.LeaderID == nil {
			team.LeaderID = &user.ID
			if err := store.UpdateTeam(ctx, team); err != nil {
				return result, fmt.Errorf("设置团队 %q 的组长失败: %w", team.Name, err)
			}
		}
	}

	return result, nil
}

// PaintRandomDay 随机给会话中的每个助理排一天的班：大多数人套用模板，少数人请假、病假或休息
func PaintRandomDay(session *editor.Session, templates []editor.Template, rng *rand.Rand) error {
	if len(templates) == 0 {
		return errors.New("没有可用的班次模板")
	}

	slots := session.Layout().Slots()
	for _, agentID := range session.Agents() {
		if err := session.Clear(agentID); err != nil {
			return err
		}

		switch n := rng.Intn(10); {
		case n == 0:
			// 休息日
		case n == 1:
			if err := session.SetTool(editor.StatusTool(domain.LabelLeave)); err != nil {
				return err
			}
			if err := session.Paint(agentID, 0, slots); err != nil {
				return err
			}
		default:
			t := templates[rng.Intn(len(templates))]
			if err := session.ApplyTemplate(agentID, t); err != nil {
				return err
			}

			// 偶尔在班次中间请一段病假
			if n == 2 {
				start, err := session.Layout().TimeToSlot(t.Start)
				if err != nil {
					return err
				}
				end, err := session.Layout().EndSlot(t.End)
				if err != nil {
					return err
				}
				if end-start >= 3 {
					from := start + 1 + rng.Intn(end-start-2)
					if err := session.SetTool(editor.StatusTool(domain.LabelSick)); err != nil {
						return err
					}
					if err := session.Drag(agentID, from, from); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
