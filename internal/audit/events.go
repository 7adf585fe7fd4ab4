package audit

// Action is the kind of an audit entry.
type Action string

// Moderation actions
const (
	ActionReport      Action = "REPORT_ACTION"
	ActionContent     Action = "CONTENT_ACTION"
	ActionUserSuspend Action = "USER_SUSPEND"
	ActionUserBan     Action = "USER_BAN"
)

// Administrative actions
const (
	ActionTenantReassign Action = "TENANT_REASSIGN"
)

// Target types
const (
	TargetPost    = "Post"
	TargetComment = "Comment"
	TargetUser    = "User"
	TargetReport  = "Report"
)
