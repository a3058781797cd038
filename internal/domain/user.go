package domain

import (
	"time"
)

type Role string

const (
	RoleAgent      Role = "Agent"
	RoleTeamLead   Role = "TeamLead"
	RoleSuperAdmin Role = "SuperAdmin"
)

type User struct {
	ID           int64     `json:"id"`
	AgentNumber  string    `json:"agentNumber"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	TeamID       *int64    `json:"teamID"` // 为空表示尚未分配到任何团队
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}

// CanManageTeam 判断用户是否有权编辑某个团队的排班
func (u *User) CanManageTeam(teamID int64) bool {
	switch u.Role {
	case RoleSuperAdmin:
		return true
	case RoleTeamLead:
		return u.TeamID != nil && *u.TeamID == teamID
	default:
		return false
	}
}
