package domain

import "time"

// ActionType identifies a quota-limited operation performed with an account
type ActionType string

const (
	ActionInvite     ActionType = "invite"
	ActionMessage    ActionType = "message"
	ActionAddContact ActionType = "add_contact"
)

// AccountStatus represents the lifecycle status of a pooled account
type AccountStatus string

const (
	// StatusActive means the account is eligible for allocation
	StatusActive AccountStatus = "active"

	// StatusLocked means the account is currently leased to a caller
	StatusLocked AccountStatus = "locked"

	// StatusRateLimited means all daily quotas are exhausted until the next reset
	StatusRateLimited AccountStatus = "rate_limited"

	// StatusFloodWait means Telegram imposed a temporary wait (FLOOD_WAIT_X)
	StatusFloodWait AccountStatus = "flood_wait"

	// StatusBlocked means the account hit an anti-spam block (PEER_FLOOD or
	// repeated unknown errors) and waits out a long cooldown
	StatusBlocked AccountStatus = "blocked"

	// StatusDisabled is terminal: ban or invalidated session, manual
	// intervention required
	StatusDisabled AccountStatus = "disabled"
)

// ErrorKind classifies an error signal reported by a caller after using
// an account. The classifier maps kinds to status transitions.
type ErrorKind string

const (
	ErrorKindFloodWait   ErrorKind = "flood_wait"
	ErrorKindPeerFlood   ErrorKind = "peer_flood"
	ErrorKindBanned      ErrorKind = "banned"
	ErrorKindAuthInvalid ErrorKind = "auth_invalid"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// Lease represents temporary exclusive ownership of an account.
// It is never persisted beyond the lock provider's TTL record.
type Lease struct {
	AccountID   string    `json:"account_id"`
	LockToken   string    `json:"lock_token"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ServiceName string    `json:"service_name"`
	Purpose     string    `json:"purpose"`
}

// UsageStats is reported by a caller when releasing a lease
type UsageStats struct {
	InvitesSent   int       `json:"invites_sent"`
	MessagesSent  int       `json:"messages_sent"`
	ContactsAdded int       `json:"contacts_added"`
	ChannelsUsed  []string  `json:"channels_used"`
	Success       bool      `json:"success"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// RecoveryStats is a snapshot of the recovery queue for reporting
type RecoveryStats struct {
	QueueSize              int64      `json:"queue_size"`
	OldestDueAt            *time.Time `json:"oldest_due_at,omitempty"`
	RecentlyRecoveredCount int64      `json:"recently_recovered_count"`
}

// AccountEvent is published to Kafka on account lifecycle transitions
type AccountEvent struct {
	EventType string    `json:"event_type"`
	AccountID string    `json:"account_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Account event types
const (
	EventStatusChanged    = "account.status_changed"
	EventAccountRecovered = "account.recovered"
	EventAccountDisabled  = "account.disabled"
)
