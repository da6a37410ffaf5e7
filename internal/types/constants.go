package types

const (
	ContextUserKey = "user"

	TokenCookieName = "token"
	StateCookieName = "oauth_state"

	DefaultTaskLimit = 100
	MaxTaskLimit     = 200

	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 200

	// MaxCalendarDays bounds a calendar query to roughly one quarter.
	MaxCalendarDays = 93
)

const (
	ResourceTasks    = "tasks"
	ResourceComments = "comments"
	ResourceProjects = "projects"
	ResourceMembers  = "members"
	ResourceTeam     = "team"
)
