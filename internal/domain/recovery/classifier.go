package recovery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
)

// Config holds classifier timing parameters
type Config struct {
	// FloodWaitBuffer is added on top of the provider-specified wait to avoid
	// re-triggering the limit right at the boundary
	FloodWaitBuffer time.Duration

	// FloodWaitFallback is the delay used when no wait duration could be
	// parsed from the error message. Deliberately generous: guessing short
	// silently under-protects the account.
	FloodWaitFallback time.Duration

	// BlockDelay is the fixed long delay for anti-spam blocks
	BlockDelay time.Duration

	// ErrorThreshold is the number of consecutive unknown errors after which
	// the account is escalated to blocked
	ErrorThreshold int
}

// DefaultConfig returns the built-in classifier timings
func DefaultConfig() Config {
	return Config{
		FloodWaitBuffer:   60 * time.Second,
		FloodWaitFallback: 5 * time.Minute,
		BlockDelay:        24 * time.Hour,
		ErrorThreshold:    5,
	}
}

// Wait-duration patterns seen in provider error messages:
//
//	"FLOOD_WAIT_300"
//	"A wait of 300 seconds is required"
//	"Too Many Requests: retry after 300"
var waitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`FLOOD_WAIT_(\d+)`),
	regexp.MustCompile(`(?i)wait of (\d+) seconds`),
	regexp.MustCompile(`(?i)retry after (\d+)`),
}

// ParseWaitSeconds extracts a wait duration from a free-text provider error
// message. Returns false when no known pattern matches; callers must then
// fall back to a safe default delay.
func ParseWaitSeconds(message string) (time.Duration, bool) {
	for _, re := range waitPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			secs, err := strconv.Atoi(m[1])
			if err != nil || secs < 0 {
				continue
			}
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, false
}

// Classifier maps reported error signals to account status transitions and
// maintains the recovery queue. It never throws decisions back at callers:
// every reported error lands in a definite account state.
type Classifier struct {
	repo    deps.AccountRepository
	queue   deps.RecoveryQueue
	events  deps.EventPublisher
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewClassifier creates a failure classifier
func NewClassifier(
	repo deps.AccountRepository,
	queue deps.RecoveryQueue,
	events deps.EventPublisher,
	cfg Config,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Classifier {
	return &Classifier{
		repo:    repo,
		queue:   queue,
		events:  events,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// HandleError applies one reported error signal to the account. The status
// transition is persisted atomically with the failure bookkeeping; timed
// statuses additionally upsert a recovery entry due when the timer elapses.
func (c *Classifier) HandleError(ctx context.Context, accountID string, kind domain.ErrorKind, message string) (domain.AccountStatus, error) {
	now := time.Now().UTC()

	var dueAt time.Time
	acc, err := c.repo.Mutate(ctx, accountID, func(acc *entities.Account) error {
		if acc.Status == domain.StatusDisabled {
			// Terminal: nothing to escalate
			return nil
		}

		switch kind {
		case domain.ErrorKindFloodWait:
			delay, ok := ParseWaitSeconds(message)
			if !ok {
				c.logger.Warn().
					Str("account_id", accountID).
					Str("message", message).
					Dur("fallback", c.cfg.FloodWaitFallback).
					Msg("Could not parse flood wait duration, using fallback delay")
				delay = c.cfg.FloodWaitFallback
			}
			until := now.Add(delay + c.cfg.FloodWaitBuffer)
			acc.Status = domain.StatusFloodWait
			acc.FloodWaitUntil = &until
			dueAt = until

		case domain.ErrorKindPeerFlood:
			until := now.Add(c.cfg.BlockDelay)
			acc.Status = domain.StatusBlocked
			acc.BlockedUntil = &until
			dueAt = until

		case domain.ErrorKindBanned, domain.ErrorKindAuthInvalid:
			acc.Status = domain.StatusDisabled
			acc.FloodWaitUntil = nil
			acc.BlockedUntil = nil

		default:
			acc.ConsecutiveErrors++
			if acc.ConsecutiveErrors >= c.cfg.ErrorThreshold {
				until := now.Add(c.cfg.BlockDelay)
				acc.Status = domain.StatusBlocked
				acc.BlockedUntil = &until
				acc.ConsecutiveErrors = 0
				dueAt = until
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("classify error for account %s: %w", accountID, err)
	}

	if !dueAt.IsZero() {
		if err := c.queue.Upsert(ctx, accountID, dueAt, string(kind)); err != nil {
			return "", fmt.Errorf("schedule recovery for account %s: %w", accountID, err)
		}
	}

	c.observe(ctx, acc, kind, now)
	return acc.Status, nil
}

func (c *Classifier) observe(ctx context.Context, acc *entities.Account, kind domain.ErrorKind, now time.Time) {
	c.metrics.AccountErrors.WithLabelValues(string(kind)).Inc()
	if acc.Status == domain.StatusFloodWait {
		c.metrics.FloodWaitsTotal.Inc()
	}

	c.logger.Warn().
		Str("account_id", acc.ID).
		Str("error_kind", string(kind)).
		Str("status", string(acc.Status)).
		Msg("Account error classified")

	eventType := domain.EventStatusChanged
	if acc.Status == domain.StatusDisabled {
		eventType = domain.EventAccountDisabled
	}
	event := domain.AccountEvent{
		EventType: eventType,
		AccountID: acc.ID,
		UserID:    acc.UserID,
		Status:    string(acc.Status),
		Reason:    string(kind),
		Timestamp: now,
	}
	if err := c.events.PublishAccountEvent(ctx, event); err != nil {
		c.logger.Error().Err(err).
			Str("account_id", acc.ID).
			Msg("Failed to publish account event")
	}
}
