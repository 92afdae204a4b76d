// Package analytics maintains daily learning stats, streak profiles and
// cohort retention, and serves the read models built on them.
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

// DefaultActiveReviewThreshold is the number of reviews that makes a day
// active without a completed quiz
const DefaultActiveReviewThreshold = 3

// Delta is a set of counter increments for one user day. Every field is an
// explicit count; negative values are treated as zero.
type Delta struct {
	QuizStarted   int
	QuizCompleted int
	Reviews       int
	Answered      int
	DidntKnow     int
}

func (d Delta) increment() database.StatIncrement {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	return database.StatIncrement{
		QuizStarted:   clamp(d.QuizStarted),
		QuizCompleted: clamp(d.QuizCompleted),
		Reviews:       clamp(d.Reviews),
		Answered:      clamp(d.Answered),
		DidntKnow:     clamp(d.DidntKnow),
	}
}

// Derived holds the fields computed from a day's counters
type Derived struct {
	UnknownRatio *float64
	Active       bool
}

// RecomputeDerived computes the derived fields of stat from its counters alone
func RecomputeDerived(stat models.DailyLearningStat, threshold int) Derived {
	var d Derived
	if stat.AnsweredCount > 0 {
		ratio := float64(stat.DidntKnowCount) / float64(stat.AnsweredCount)
		d.UnknownRatio = &ratio
	}
	d.Active = stat.QuizCompletedCount >= 1 || stat.ReviewCount >= threshold
	return d
}

func (d Derived) matches(stat *models.DailyLearningStat) bool {
	if d.Active != stat.Active {
		return false
	}
	if d.UnknownRatio == nil || stat.UnknownRatioRaw == nil {
		return d.UnknownRatio == nil && stat.UnknownRatioRaw == nil
	}
	return *d.UnknownRatio == *stat.UnknownRatioRaw
}

// Ledger applies counter deltas to daily stat rows
type Ledger struct {
	stats     *database.DailyStatRepository
	threshold int
	now       func() time.Time
}

// NewLedger creates a ledger. A threshold below 1 selects the default.
func NewLedger(threshold int) *Ledger {
	if threshold < 1 {
		threshold = DefaultActiveReviewThreshold
	}
	return &Ledger{
		stats:     database.NewDailyStatRepository(),
		threshold: threshold,
		now:       time.Now,
	}
}

// Threshold returns the review count that makes a day active
func (l *Ledger) Threshold() int {
	return l.threshold
}

// ApplyDelta adds d to the row of (userID, day) inside q's transaction and
// returns the resulting row. transitioned is true only when this call turned
// the day active.
func (l *Ledger) ApplyDelta(ctx context.Context, q sqlx.ExtContext, userID int64, tz string, day datekey.Key, d Delta) (stat *models.DailyLearningStat, transitioned bool, err error) {
	if !day.Valid() {
		return nil, false, fmt.Errorf("failed to apply delta: invalid date key %q", day)
	}
	tz = datekey.Canonical(tz)
	inc := d.increment()

	if inc.IsZero() {
		stat, err = l.stats.Get(ctx, q, userID, day.String(), false)
		if errors.Is(err, database.ErrNotFound) {
			return &models.DailyLearningStat{UserID: userID, StatDate: day.String(), TimeZone: tz}, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return stat, false, nil
	}

	now := l.now().UTC()
	if err := l.stats.Increment(ctx, q, userID, day.String(), tz, inc, now); err != nil {
		return nil, false, err
	}

	stat, err = l.stats.Get(ctx, q, userID, day.String(), true)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload daily stat: %w", err)
	}

	derived := RecomputeDerived(*stat, l.threshold)
	if derived.matches(stat) {
		return stat, false, nil
	}

	if err := l.stats.UpdateDerived(ctx, q, userID, day.String(), derived.UnknownRatio, derived.Active, now); err != nil {
		return nil, false, err
	}
	transitioned = !stat.Active && derived.Active
	stat.UnknownRatioRaw = derived.UnknownRatio
	stat.Active = derived.Active
	stat.UpdatedAt = now
	return stat, transitioned, nil
}
