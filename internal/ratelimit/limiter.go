package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/rs/zerolog"
)

// dailyUsage is the digest count of one user on one calendar day
type dailyUsage struct {
	date  string
	count int
}

// Limiter enforces the daily digest limit per user
type Limiter struct {
	mu         sync.Mutex
	usage      map[int64]dailyUsage
	timezone   *time.Location
	dailyLimit int
	now        func() time.Time
	logger     zerolog.Logger
}

// NewLimiter creates a new rate limiter. Days roll over at midnight in timezone.
func NewLimiter(timezone string, dailyLimit int, logger zerolog.Logger) (*Limiter, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	if dailyLimit < 0 {
		return nil, fmt.Errorf("daily limit must not be negative, got %d", dailyLimit)
	}

	return &Limiter{
		usage:      make(map[int64]dailyUsage),
		timezone:   loc,
		dailyLimit: dailyLimit,
		now:        time.Now,
		logger:     logger.With().Str("component", "ratelimit").Logger(),
	}, nil
}

// CheckLimit checks if user can request another digest today
func (l *Limiter) CheckLimit(userID int64) models.RateLimitResult {
	now := l.now().In(l.timezone)

	l.mu.Lock()
	used := l.usedLocked(userID, dateKey(now))
	l.mu.Unlock()

	result := l.result(used, now)

	l.logger.Debug().
		Int64("user_id", userID).
		Int("used", used).
		Int("remaining", result.Remaining).
		Msg("Checking rate limit")

	return result
}

// Reserve checks the limit and takes one digest slot in a single step, so
// concurrent requests of the same user cannot exceed the daily limit.
// The returned release gives the slot back. It is a no-op when the request
// was denied, on repeated calls, and once the day has rolled over.
func (l *Limiter) Reserve(userID int64) (models.RateLimitResult, func()) {
	now := l.now().In(l.timezone)
	date := dateKey(now)

	l.mu.Lock()
	used := l.usedLocked(userID, date)
	result := l.result(used, now)
	if result.Allowed {
		l.incrementLocked(userID, date)
	}
	l.mu.Unlock()

	l.logger.Debug().
		Int64("user_id", userID).
		Int("used", used).
		Bool("allowed", result.Allowed).
		Msg("Reserving digest slot")

	if !result.Allowed {
		return result, func() {}
	}

	var once sync.Once
	return result, func() {
		once.Do(func() { l.release(userID, date) })
	}
}

// IncrementUsage records one digest for the user
func (l *Limiter) IncrementUsage(userID int64) {
	date := dateKey(l.now().In(l.timezone))

	l.mu.Lock()
	count := l.incrementLocked(userID, date)
	l.mu.Unlock()

	l.logger.Debug().
		Int64("user_id", userID).
		Str("date", date).
		Int("count", count).
		Msg("Usage incremented")
}

func (l *Limiter) release(userID int64, date string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.usage[userID]
	if !ok || entry.date != date || entry.count == 0 {
		return
	}
	entry.count--
	l.usage[userID] = entry

	l.logger.Debug().
		Int64("user_id", userID).
		Int("count", entry.count).
		Msg("Digest slot released")
}

// incrementLocked adds one digest for the user and drops entries of previous days
func (l *Limiter) incrementLocked(userID int64, date string) int {
	entry := l.usage[userID]
	if entry.date != date {
		entry = dailyUsage{date: date}
	}
	entry.count++
	l.usage[userID] = entry

	for id, u := range l.usage {
		if u.date != date {
			delete(l.usage, id)
		}
	}
	return entry.count
}

func (l *Limiter) usedLocked(userID int64, date string) int {
	entry, ok := l.usage[userID]
	if !ok || entry.date != date {
		return 0
	}
	return entry.count
}

func (l *Limiter) result(used int, now time.Time) models.RateLimitResult {
	remaining := max(l.dailyLimit-used, 0)
	result := models.RateLimitResult{
		Allowed:       remaining > 0,
		Used:          used,
		Limit:         l.dailyLimit,
		Remaining:     remaining,
		ResetsInHours: l.hoursUntilMidnight(now),
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf(
			"🚫 Has alcanzado el límite diario de resúmenes (%d/%d).\n\nEl límite se reinicia en %d h.",
			used, l.dailyLimit, result.ResetsInHours,
		)
	}
	return result
}

// hoursUntilMidnight calculates hours until midnight in the timezone
func (l *Limiter) hoursUntilMidnight(now time.Time) int {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, l.timezone)
	hours := int(midnight.Sub(now).Hours())

	// If less than 1 hour, show at least 1
	if hours < 1 {
		hours = 1
	}
	return hours
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
