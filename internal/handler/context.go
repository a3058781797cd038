package handler

type ContextKey string

var (
	RequestIDCtxKey  ContextKey = "requestID"
	RoleCtxKey       ContextKey = "role"
	SubCtxKey        ContextKey = "sub"
	MyInfoCtx        ContextKey = "myInfo"
	UserInfoCtx      ContextKey = "userInfo"
	AgentInfoCtx     ContextKey = "agentInfo"
	TeamCtx          ContextKey = "team"
	DateCtx          ContextKey = "date"
	ShiftTemplateCtx ContextKey = "shiftTemplate"
	EditorSessionCtx ContextKey = "editorSession"
	BreakIDCtx       ContextKey = "breakID"
)
