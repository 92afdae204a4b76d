package spaced_repetition

import (
	"time"

	"github.com/example/learnstats/pkg/models"
)

// Ladder implements the strength ladder used for vocabulary review: a known
// answer moves an item one rung up, an unknown answer one rung down, and
// the rung decides how long until the next review.
type Ladder struct {
	// Review interval in days, indexed by strength
	Intervals []float64
	// Interval used for a strength outside the table
	DefaultInterval float64
}

// NewLadder creates a Ladder with the default interval table
func NewLadder() *Ladder {
	return &Ladder{
		Intervals:       []float64{0.5, 1, 2, 4, 8, 16},
		DefaultInterval: 1,
	}
}

// NextStrength returns the strength after one answer, kept within [0, MaxStrength]
func NextStrength(strength int, knew bool) int {
	if knew {
		strength++
	} else {
		strength--
	}
	if strength > models.MaxStrength {
		return models.MaxStrength
	}
	if strength < 0 {
		return 0
	}
	return strength
}

// Interval returns the time until the next review for strength
func (l *Ladder) Interval(strength int) time.Duration {
	days := l.DefaultInterval
	if strength >= 0 && strength < len(l.Intervals) {
		days = l.Intervals[strength]
	}
	return time.Duration(days * float64(24*time.Hour))
}

// Apply records an answer on item at now
func (l *Ladder) Apply(item *models.VocabItem, knew bool, now time.Time) {
	now = now.UTC()
	next := now.Add(l.Interval(NextStrength(item.Strength, knew)))

	item.Strength = NextStrength(item.Strength, knew)
	item.LastSeenAt = &now
	item.NextReviewAt = &next
}
