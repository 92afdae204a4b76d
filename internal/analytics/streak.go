package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// NextStreak applies one newly active day to a profile. It reports whether
// anything changed.
//
// A day after lastActiveDate extends the streak when contiguous and restarts
// it otherwise. A day delivered late, before lastActiveDate, cannot extend
// the current streak; it only moves firstActiveDate back when older.
func NextStreak(p models.UserLearningProfile, day datekey.Key) (models.UserLearningProfile, bool) {
	next := p
	gap := datekey.DaysBetween(datekey.Key(p.LastActiveDate), day)

	switch {
	case gap == 0:
		return p, false
	case gap == 1:
		next.CurrentStreak++
		next.LastActiveDate = day.String()
	case gap > 1:
		next.CurrentStreak = 1
		next.LastActiveDate = day.String()
	default:
		if !day.Before(datekey.Key(p.FirstActiveDate)) {
			return p, false
		}
		next.FirstActiveDate = day.String()
	}

	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next, true
}

// Tracker maintains streak profiles
type Tracker struct {
	profiles *database.ProfileRepository
	stats    *database.DailyStatRepository
	now      func() time.Time
}

// NewTracker creates a tracker
func NewTracker() *Tracker {
	return &Tracker{
		profiles: database.NewProfileRepository(),
		stats:    database.NewDailyStatRepository(),
		now:      time.Now,
	}
}

// MarkActiveDay records that day became active for userID and snapshots the
// resulting streak on that day's stat row. Calling it again for the same day
// changes nothing.
func (t *Tracker) MarkActiveDay(ctx context.Context, q sqlx.ExtContext, userID int64, day datekey.Key) (*models.UserLearningProfile, error) {
	now := t.now().UTC()

	created, err := t.profiles.CreateIfAbsent(ctx, q, userID, day.String(), now)
	if err != nil {
		return nil, err
	}

	profile, err := t.profiles.Get(ctx, q, userID, true)
	if err != nil {
		return nil, err
	}

	if !created {
		next, changed := NextStreak(*profile, day)
		if changed {
			next.UpdatedAt = now
			if err := t.profiles.Update(ctx, q, &next); err != nil {
				return nil, err
			}
			profile = &next
		}
	}

	streak, err := t.streakOn(ctx, q, userID, profile, day)
	if err != nil {
		return nil, err
	}
	if err := t.stats.SetStreakSnapshot(ctx, q, userID, day.String(), streak, now); err != nil {
		return nil, err
	}
	return profile, nil
}

// streakOn is the streak as of the end of day. For the latest active day it
// is the profile's current streak; a late day continues from the snapshot of
// the day before it.
func (t *Tracker) streakOn(ctx context.Context, q sqlx.ExtContext, userID int64, profile *models.UserLearningProfile, day datekey.Key) (int, error) {
	if day.String() == profile.LastActiveDate {
		return profile.CurrentStreak, nil
	}

	prev, err := t.stats.Get(ctx, q, userID, datekey.Shift(day, -1).String(), false)
	if errors.Is(err, database.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read previous day: %w", err)
	}
	if !prev.Active || prev.StreakAtEndOfDay == nil {
		return 1, nil
	}
	return *prev.StreakAtEndOfDay + 1, nil
}
