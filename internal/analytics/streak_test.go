package analytics

import (
	"context"
	"testing"

	"github.com/example/learnstats/internal/database/dbtest"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStreak(t *testing.T) {
	base := models.UserLearningProfile{
		FirstActiveDate: "2024-06-10",
		LastActiveDate:  "2024-06-15",
		CurrentStreak:   3,
		LongestStreak:   5,
	}

	tests := []struct {
		name    string
		day     datekey.Key
		changed bool
		first   string
		last    string
		current int
		longest int
	}{
		{"same day", "2024-06-15", false, "2024-06-10", "2024-06-15", 3, 5},
		{"next day", "2024-06-16", true, "2024-06-10", "2024-06-16", 4, 5},
		{"gap", "2024-06-18", true, "2024-06-10", "2024-06-18", 1, 5},
		{"late day inside history", "2024-06-12", false, "2024-06-10", "2024-06-15", 3, 5},
		{"late day before first", "2024-06-01", true, "2024-06-01", "2024-06-15", 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changed := NextStreak(base, tt.day)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.first, next.FirstActiveDate)
			assert.Equal(t, tt.last, next.LastActiveDate)
			assert.Equal(t, tt.current, next.CurrentStreak)
			assert.Equal(t, tt.longest, next.LongestStreak)
		})
	}

	grown, _ := NextStreak(models.UserLearningProfile{LastActiveDate: "2024-06-15", CurrentStreak: 5, LongestStreak: 5}, "2024-06-16")
	assert.Equal(t, 6, grown.LongestStreak)
}

func TestStreakContiguousDays(t *testing.T) {
	db := dbtest.New(t)
	dbtest.CreateUser(t, db, 1, "UTC")
	l, tr := NewLedger(0), NewTracker()

	for _, day := range []datekey.Key{"2024-06-15", "2024-06-16", "2024-06-17"} {
		apply(t, db, l, tr, 1, day, Delta{QuizCompleted: 1})
	}

	p := profileOf(t, db, 1)
	assert.Equal(t, 3, p.CurrentStreak)
	assert.Equal(t, 3, p.LongestStreak)
	assert.Equal(t, "2024-06-15", p.FirstActiveDate)
	assert.Equal(t, "2024-06-17", p.LastActiveDate)

	for i, day := range []datekey.Key{"2024-06-15", "2024-06-16", "2024-06-17"} {
		snap := statOf(t, db, 1, day).StreakAtEndOfDay
		require.NotNil(t, snap)
		assert.Equal(t, i+1, *snap)
	}
}

func TestStreakResetsAfterGap(t *testing.T) {
	db := dbtest.New(t)
	dbtest.CreateUser(t, db, 1, "UTC")
	l, tr := NewLedger(0), NewTracker()

	apply(t, db, l, tr, 1, "2024-06-15", Delta{QuizCompleted: 1})
	apply(t, db, l, tr, 1, "2024-06-17", Delta{QuizCompleted: 1})

	p := profileOf(t, db, 1)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
}

func TestStreakIgnoresRepeatsWithinDay(t *testing.T) {
	db := dbtest.New(t)
	dbtest.CreateUser(t, db, 1, "UTC")
	l, tr := NewLedger(0), NewTracker()

	apply(t, db, l, tr, 1, "2024-06-15", Delta{QuizCompleted: 1})
	apply(t, db, l, tr, 1, "2024-06-15", Delta{QuizCompleted: 1, Reviews: 5})

	_, err := tr.MarkActiveDay(context.Background(), db, 1, "2024-06-15")
	require.NoError(t, err)

	p := profileOf(t, db, 1)
	assert.Equal(t, 1, p.CurrentStreak)
}

func TestStreakLateDay(t *testing.T) {
	db := dbtest.New(t)
	dbtest.CreateUser(t, db, 1, "UTC")
	l, tr := NewLedger(0), NewTracker()

	apply(t, db, l, tr, 1, "2024-06-14", Delta{QuizCompleted: 1})
	apply(t, db, l, tr, 1, "2024-06-16", Delta{QuizCompleted: 1})
	// the 15th arrives after the 16th
	apply(t, db, l, tr, 1, "2024-06-15", Delta{QuizCompleted: 1})

	p := profileOf(t, db, 1)
	assert.Equal(t, "2024-06-16", p.LastActiveDate)
	assert.Equal(t, 1, p.CurrentStreak)

	snap := statOf(t, db, 1, "2024-06-15").StreakAtEndOfDay
	require.NotNil(t, snap)
	assert.Equal(t, 2, *snap)

	apply(t, db, l, tr, 1, "2024-06-10", Delta{QuizCompleted: 1})
	assert.Equal(t, "2024-06-10", profileOf(t, db, 1).FirstActiveDate)
}
