package dto

import (
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

// AllocateRequest asks for an exclusive lease on an eligible account
type AllocateRequest struct {
	UserID             int64  `json:"user_id"`
	Purpose            string `json:"purpose,omitempty"`
	ServiceName        string `json:"service_name"`
	PreferredAccountID string `json:"preferred_account_id,omitempty"`
	LeaseTTLSeconds    int    `json:"lease_ttl_seconds,omitempty"`
}

// AllocateResponse carries the granted lease
type AllocateResponse struct {
	AccountID   string    `json:"account_id"`
	LockToken   string    `json:"lock_token"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ServiceName string    `json:"service_name"`
	Purpose     string    `json:"purpose,omitempty"`
}

// ReleaseRequest returns a lease together with the usage performed under it
type ReleaseRequest struct {
	LockToken     string           `json:"lock_token"`
	InvitesSent   int              `json:"invites_sent"`
	MessagesSent  int              `json:"messages_sent"`
	ContactsAdded int              `json:"contacts_added"`
	ChannelsUsed  []string         `json:"channels_used,omitempty"`
	Success       bool             `json:"success"`
	ErrorKind     domain.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
}

// ReportErrorRequest records an error signal observed outside a lease
type ReportErrorRequest struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message,omitempty"`
}

// ReportErrorResponse returns the account status after classification
type ReportErrorResponse struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

// RateLimitResponse is a read-only eligibility verdict for one action
type RateLimitResponse struct {
	AccountID       string     `json:"account_id"`
	Action          string     `json:"action"`
	TargetChannel   string     `json:"target_channel,omitempty"`
	Allowed         bool       `json:"allowed"`
	Reason          string     `json:"reason,omitempty"`
	NextAvailableAt *time.Time `json:"next_available_at,omitempty"`
}

// RegisterAccountRequest adds a new account to the pool
type RegisterAccountRequest struct {
	UserID int64  `json:"user_id"`
	Phone  string `json:"phone"`
}

// AccountResponse is the public view of a pooled account
type AccountResponse struct {
	AccountID  string     `json:"account_id"`
	UserID     int64      `json:"user_id"`
	Phone      string     `json:"phone"`
	Status     string     `json:"status"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
