package entities

import (
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

// ActionCounterModel is the embedded GORM representation of ActionCounter
type ActionCounterModel struct {
	Today      int        `gorm:"not null;default:0"`
	HourStart  time.Time  `gorm:""`
	ThisHour   int        `gorm:"not null;default:0"`
	LastAt     *time.Time `gorm:""`
	BurstStart *time.Time `gorm:""`
	BurstCount int        `gorm:"not null;default:0"`
}

// AccountModel is a GORM model for the accounts table
type AccountModel struct {
	ID     string `gorm:"primaryKey;size:64"`
	UserID int64  `gorm:"not null;index"`
	Phone  string `gorm:"size:32;uniqueIndex"`
	Status string `gorm:"not null;size:32;default:'active';index"`

	Invites  ActionCounterModel `gorm:"embedded;embeddedPrefix:invite_"`
	Messages ActionCounterModel `gorm:"embedded;embeddedPrefix:message_"`
	Contacts ActionCounterModel `gorm:"embedded;embeddedPrefix:contact_"`

	LockOwner     string     `gorm:"size:128;not null;default:''"`
	LockExpiresAt *time.Time `gorm:""`

	ConsecutiveErrors int        `gorm:"not null;default:0"`
	FloodWaitUntil    *time.Time `gorm:""`
	BlockedUntil      *time.Time `gorm:""`

	LastUsedAt *time.Time `gorm:""`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`

	Channels []ChannelUsageModel `gorm:"foreignKey:AccountID;references:ID"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

// ChannelUsageModel is a GORM model for the account_channel_usage table
type ChannelUsageModel struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID string    `gorm:"not null;size:64;uniqueIndex:uq_account_channel;index"`
	ChannelID string    `gorm:"not null;size:255;uniqueIndex:uq_account_channel"`
	Today     int       `gorm:"not null;default:0"`
	Lifetime  int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ChannelUsageModel) TableName() string {
	return "account_channel_usage"
}

// RecoveryEntryModel is a GORM model for the recovery_queue table
type RecoveryEntryModel struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID string    `gorm:"not null;size:64;uniqueIndex"`
	DueAt     time.Time `gorm:"not null;index"`
	Reason    string    `gorm:"size:255;default:''"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (RecoveryEntryModel) TableName() string {
	return "recovery_queue"
}

func counterToEntity(m ActionCounterModel) ActionCounter {
	return ActionCounter{
		Today:      m.Today,
		HourStart:  m.HourStart,
		ThisHour:   m.ThisHour,
		LastAt:     m.LastAt,
		BurstStart: m.BurstStart,
		BurstCount: m.BurstCount,
	}
}

func counterToModel(c ActionCounter) ActionCounterModel {
	return ActionCounterModel{
		Today:      c.Today,
		HourStart:  c.HourStart,
		ThisHour:   c.ThisHour,
		LastAt:     c.LastAt,
		BurstStart: c.BurstStart,
		BurstCount: c.BurstCount,
	}
}

// ToEntity converts the DB model to a domain entity
func (m *AccountModel) ToEntity() *Account {
	acc := &Account{
		ID:                m.ID,
		UserID:            m.UserID,
		Phone:             m.Phone,
		Status:            domain.AccountStatus(m.Status),
		Invites:           counterToEntity(m.Invites),
		Messages:          counterToEntity(m.Messages),
		Contacts:          counterToEntity(m.Contacts),
		Channels:          make(map[string]*ChannelUsage, len(m.Channels)),
		LockOwner:         m.LockOwner,
		LockExpiresAt:     m.LockExpiresAt,
		ConsecutiveErrors: m.ConsecutiveErrors,
		FloodWaitUntil:    m.FloodWaitUntil,
		BlockedUntil:      m.BlockedUntil,
		LastUsedAt:        m.LastUsedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	for _, ch := range m.Channels {
		acc.Channels[ch.ChannelID] = &ChannelUsage{
			ChannelID: ch.ChannelID,
			Today:     ch.Today,
			Lifetime:  ch.Lifetime,
		}
	}
	return acc
}

// FromEntity converts a domain entity to the DB model (channels excluded;
// channel rows are maintained separately to keep their upserts atomic)
func FromEntity(a *Account) *AccountModel {
	return &AccountModel{
		ID:                a.ID,
		UserID:            a.UserID,
		Phone:             a.Phone,
		Status:            string(a.Status),
		Invites:           counterToModel(a.Invites),
		Messages:          counterToModel(a.Messages),
		Contacts:          counterToModel(a.Contacts),
		LockOwner:         a.LockOwner,
		LockExpiresAt:     a.LockExpiresAt,
		ConsecutiveErrors: a.ConsecutiveErrors,
		FloodWaitUntil:    a.FloodWaitUntil,
		BlockedUntil:      a.BlockedUntil,
		LastUsedAt:        a.LastUsedAt,
	}
}
