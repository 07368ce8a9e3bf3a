package entities

import (
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

// ActionCounter tracks quota consumption for one action type.
//
// The hourly window is a persisted bucket (HourStart + ThisHour) rather than
// an in-memory sliding log, so counts survive process restarts and never
// under-count. Burst tracking works the same way (BurstStart + BurstCount).
type ActionCounter struct {
	Today      int
	HourStart  time.Time
	ThisHour   int
	LastAt     *time.Time
	BurstStart *time.Time
	BurstCount int
}

// HourlyCount returns the count attributable to the trailing hourly window.
// A bucket older than one hour contributes nothing.
func (c *ActionCounter) HourlyCount(now time.Time) int {
	if c.HourStart.IsZero() || now.Sub(c.HourStart) >= time.Hour {
		return 0
	}
	return c.ThisHour
}

// BurstActive reports whether the burst window still covers now,
// given the configured burst cooldown.
func (c *ActionCounter) BurstActive(now time.Time, cooldown time.Duration) bool {
	if c.BurstStart == nil || cooldown <= 0 {
		return false
	}
	return now.Sub(*c.BurstStart) < cooldown
}

// Record registers one attempt at time now, rolling the hourly and burst
// windows when they have elapsed. Attempts count regardless of success:
// the remote platform enforces limits on attempts, not successes.
func (c *ActionCounter) Record(now time.Time, burstCooldown time.Duration) {
	c.Today++

	if c.HourStart.IsZero() || now.Sub(c.HourStart) >= time.Hour {
		c.HourStart = now
		c.ThisHour = 1
	} else {
		c.ThisHour++
	}

	if c.BurstStart == nil || !c.BurstActive(now, burstCooldown) {
		start := now
		c.BurstStart = &start
		c.BurstCount = 1
	} else {
		c.BurstCount++
	}

	at := now
	c.LastAt = &at
}

// ChannelUsage tracks invites from one account into one channel.
// Lifetime is monotonic and is never reset by any scheduled job.
type ChannelUsage struct {
	ChannelID string
	Today     int
	Lifetime  int
}

// Account is the unit of allocation: one Telegram credential with its
// quota counters, lock fields and failure bookkeeping.
type Account struct {
	ID     string
	UserID int64
	Phone  string
	Status domain.AccountStatus

	Invites  ActionCounter
	Messages ActionCounter
	Contacts ActionCounter

	// Channels maps channel id to invite usage for that channel
	Channels map[string]*ChannelUsage

	LockOwner     string
	LockExpiresAt *time.Time

	ConsecutiveErrors int
	FloodWaitUntil    *time.Time
	BlockedUntil      *time.Time

	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Counter returns the counter for the given action type
func (a *Account) Counter(action domain.ActionType) *ActionCounter {
	switch action {
	case domain.ActionInvite:
		return &a.Invites
	case domain.ActionMessage:
		return &a.Messages
	case domain.ActionAddContact:
		return &a.Contacts
	default:
		return nil
	}
}

// Channel returns the usage record for a channel, creating it if absent
func (a *Account) Channel(channelID string) *ChannelUsage {
	if a.Channels == nil {
		a.Channels = make(map[string]*ChannelUsage)
	}
	ch, ok := a.Channels[channelID]
	if !ok {
		ch = &ChannelUsage{ChannelID: channelID}
		a.Channels[channelID] = ch
	}
	return ch
}

// TimedOut reports whether the account sits in a timed failure status whose
// timer has already elapsed, meaning it should be re-evaluated as active.
func (a *Account) TimedOut(now time.Time) bool {
	switch a.Status {
	case domain.StatusFloodWait:
		return a.FloodWaitUntil != nil && !now.Before(*a.FloodWaitUntil)
	case domain.StatusBlocked:
		return a.BlockedUntil != nil && !now.Before(*a.BlockedUntil)
	default:
		return false
	}
}

// RecoveryEntry schedules re-evaluation of an account in a timed failure
// status. Consumed by the maintenance sweep once DueAt has passed.
type RecoveryEntry struct {
	ID        uint
	AccountID string
	DueAt     time.Time
	Reason    string
	CreatedAt time.Time
}
