package constants

import "time"

// Session and context keys
const (
	SessionCookieName   = "task_session"
	ContextKeyUserID    = "user_id"
	ContextKeyUserRole  = "user_role"
	ContextKeyTask      = "task"
	MinPasswordLength   = 8
	MaxSkillLength      = 100
	MaxSkillsPerRecord  = 50
	MaxTitleLength      = 255
	MaxRejectionReason  = 1000
	MaxProgressNoteSize = 2000
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Matching defaults
const (
	DefaultMaxAssumedWorkload = 10
	DefaultCandidateLimit     = 5
)

// Sync defaults
const (
	DefaultDebounce          = 300 * time.Millisecond
	DefaultReconcileInterval = 15 * time.Minute
)

// Agent
const (
	MaxAgentToolRounds = 5
	MaxAgentListLimit  = 50
)
