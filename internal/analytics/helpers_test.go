package analytics

import (
	"context"
	"testing"

	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// apply runs one delta in its own transaction and marks the day active on a
// transition, the way the quiz service does
func apply(t *testing.T, db *sqlx.DB, l *Ledger, tr *Tracker, userID int64, day datekey.Key, d Delta) (*models.DailyLearningStat, bool) {
	t.Helper()
	ctx := context.Background()

	var (
		stat        *models.DailyLearningStat
		transitions bool
	)
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		stat, transitions, err = l.ApplyDelta(ctx, tx, userID, "UTC", day, d)
		if err != nil {
			return err
		}
		if transitions && tr != nil {
			_, err = tr.MarkActiveDay(ctx, tx, userID, day)
		}
		return err
	})
	require.NoError(t, err)
	return stat, transitions
}

func profileOf(t *testing.T, db *sqlx.DB, userID int64) *models.UserLearningProfile {
	t.Helper()

	p, err := database.NewProfileRepository().Get(context.Background(), db, userID, false)
	require.NoError(t, err)
	return p
}

func statOf(t *testing.T, db *sqlx.DB, userID int64, day datekey.Key) *models.DailyLearningStat {
	t.Helper()

	s, err := database.NewDailyStatRepository().Get(context.Background(), db, userID, day.String(), false)
	require.NoError(t, err)
	return s
}
