package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/example/learnstats/internal/analytics"
	"github.com/example/learnstats/internal/apperror"
	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/database/dbtest"
	"github.com/example/learnstats/internal/lock"
	"github.com/example/learnstats/internal/metrics"
	"github.com/example/learnstats/internal/spaced_repetition"
	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-06-15 00:30 in Oslo, still the 14th in UTC
var osloMorning = time.Date(2024, 6, 14, 22, 30, 0, 0, time.UTC)

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	metrics *metrics.Metrics
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.New(t)
	m := metrics.NewMetrics()
	maintenance := analytics.NewMaintenance(db, lock.NewTable(db, time.Minute), "test:maintenance", analytics.NewRetention(), nil, m)
	f := &fixture{db: db, metrics: m, clock: osloMorning}
	f.svc = NewService(db, analytics.NewLedger(0), analytics.NewTracker(), spaced_repetition.NewLadder(), maintenance, nil, m)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) stat(t *testing.T, userID int64, day string) *models.DailyLearningStat {
	t.Helper()

	s, err := database.NewDailyStatRepository().Get(context.Background(), f.db, userID, day, false)
	require.NoError(t, err)
	return s
}

func (f *fixture) run(t *testing.T, userID int64, id string) *models.QuizRun {
	t.Helper()

	r, err := database.NewQuizRunRepository().GetForUser(context.Background(), f.db, userID, id, false)
	require.NoError(t, err)
	return r
}

func answer(userID, itemID int64, knew bool, runID string, attempt int) AnswerInput {
	return AnswerInput{UserID: userID, ItemID: itemID, Knew: knew, QuizRunID: &runID, AttemptIndex: &attempt}
}

func TestOsloQuizEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "Europe/Oslo")

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1, PlannedCards: 10})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", started.StatDate)
	assert.Equal(t, "Europe/Oslo", started.TimeZone)

	for i := 1; i <= 10; i++ {
		item := dbtest.CreateItem(t, f.db, 1, "word")
		knew := i > 3
		f.clock = f.clock.Add(10 * time.Second)
		res, err := f.svc.RecordAnswer(ctx, answer(1, item.ID, knew, started.QuizRunID, i))
		require.NoError(t, err)
		assert.False(t, res.Replayed)
	}

	f.clock = f.clock.Add(time.Minute)
	done, err := f.svc.CompleteQuiz(ctx, 1, started.QuizRunID, nil)
	require.NoError(t, err)
	assert.False(t, done.AlreadyCompleted)

	stat := f.stat(t, 1, "2024-06-15")
	assert.Equal(t, 1, stat.QuizStartedCount)
	assert.Equal(t, 1, stat.QuizCompletedCount)
	assert.Equal(t, 10, stat.ReviewCount)
	assert.Equal(t, 10, stat.AnsweredCount)
	assert.Equal(t, 3, stat.DidntKnowCount)
	assert.True(t, stat.Active)
	assert.Equal(t, "Europe/Oslo", stat.TimeZone)
	require.NotNil(t, stat.UnknownRatioRaw)
	assert.InDelta(t, 0.3, *stat.UnknownRatioRaw, 1e-9)

	run := f.run(t, 1, started.QuizRunID)
	assert.Equal(t, models.QuizRunCompleted, run.Status)
	require.NotNil(t, run.UnknownRatio)
	assert.InDelta(t, 0.3, *run.UnknownRatio, 1e-9)
	assert.Equal(t, 10, run.AnsweredCount)
	assert.Equal(t, 7, run.KnewCount)
	require.NotNil(t, run.DurationSec)
	assert.Equal(t, 160, *run.DurationSec)

	profile, err := database.NewProfileRepository().Get(ctx, f.db, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.CurrentStreak)
	assert.Equal(t, "2024-06-15", profile.FirstActiveDate)

	// nothing landed on the UTC date
	_, err = database.NewDailyStatRepository().Get(ctx, f.db, 1, "2024-06-14", false)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRecordAnswerReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")
	item := dbtest.CreateItem(t, f.db, 1, "apple")

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1, PlannedCards: 1})
	require.NoError(t, err)

	first, err := f.svc.RecordAnswer(ctx, answer(1, item.ID, true, started.QuizRunID, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Strength)

	f.clock = f.clock.Add(time.Second)
	again, err := f.svc.RecordAnswer(ctx, answer(1, item.ID, true, started.QuizRunID, 1))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, 1, again.Strength)

	count, err := database.NewQuizRunRepository().CountAnswers(ctx, f.db, started.QuizRunID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stat := f.stat(t, 1, "2024-06-14")
	assert.Equal(t, 1, stat.ReviewCount)
	assert.Equal(t, 1, stat.AnsweredCount)
	assert.Equal(t, 1, f.run(t, 1, started.QuizRunID).AnsweredCount)

	// replays are answered even once the run is over
	_, err = f.svc.CompleteQuiz(ctx, 1, started.QuizRunID, nil)
	require.NoError(t, err)
	again, err = f.svc.RecordAnswer(ctx, answer(1, item.ID, true, started.QuizRunID, 1))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
}

func TestCompleteQuizTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1})
	require.NoError(t, err)

	duration := 42
	first, err := f.svc.CompleteQuiz(ctx, 1, started.QuizRunID, &duration)
	require.NoError(t, err)
	assert.False(t, first.AlreadyCompleted)
	assert.Nil(t, first.Run.UnknownRatio, "no answers, no ratio")

	second, err := f.svc.CompleteQuiz(ctx, 1, started.QuizRunID, nil)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, first.Run.ID, second.Run.ID)
	require.NotNil(t, second.Run.DurationSec)
	assert.Equal(t, 42, *second.Run.DurationSec)

	assert.Equal(t, 1, f.stat(t, 1, "2024-06-14").QuizCompletedCount)
}

func TestExitAfterComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1})
	require.NoError(t, err)
	_, err = f.svc.CompleteQuiz(ctx, 1, started.QuizRunID, nil)
	require.NoError(t, err)
	before := f.stat(t, 1, "2024-06-14")

	res, err := f.svc.ExitQuiz(ctx, 1, started.QuizRunID, nil)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)
	assert.Equal(t, models.QuizRunCompleted, res.Run.Status)
	assert.Nil(t, res.Run.ExitedAt)

	after := f.stat(t, 1, "2024-06-14")
	assert.Equal(t, before.QuizStartedCount, after.QuizStartedCount)
	assert.Equal(t, before.QuizCompletedCount, after.QuizCompletedCount)
	assert.Equal(t, models.QuizRunCompleted, f.run(t, 1, started.QuizRunID).Status)
}

func TestExitQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")
	item := dbtest.CreateItem(t, f.db, 1, "apple")

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1})
	require.NoError(t, err)

	duration := 12
	res, err := f.svc.ExitQuiz(ctx, 1, started.QuizRunID, &duration)
	require.NoError(t, err)
	assert.False(t, res.AlreadyExited)
	assert.Equal(t, models.QuizRunExited, res.Run.Status)
	require.NotNil(t, res.Run.ExitedAt)

	res, err = f.svc.ExitQuiz(ctx, 1, started.QuizRunID, nil)
	require.NoError(t, err)
	assert.True(t, res.AlreadyExited)

	_, err = f.svc.CompleteQuiz(ctx, 1, started.QuizRunID, nil)
	assert.True(t, apperror.Is(err, apperror.CodeConflict))

	_, err = f.svc.RecordAnswer(ctx, answer(1, item.ID, true, started.QuizRunID, 1))
	assert.Equal(t, 409, apperror.StatusOf(err))

	stat := f.stat(t, 1, "2024-06-14")
	assert.Equal(t, 1, stat.QuizStartedCount)
	assert.Zero(t, stat.QuizCompletedCount)
	assert.Zero(t, stat.ReviewCount)
}

func TestFreeReviewCountsOnlyReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "America/New_York")
	item := dbtest.CreateItem(t, f.db, 1, "apple")

	for i := 0; i < 3; i++ {
		res, err := f.svc.Review(ctx, AnswerInput{UserID: 1, ItemID: item.ID, Knew: i != 1})
		require.NoError(t, err)
		assert.Equal(t, i == 2, res.DayActive)
	}

	// 22:30 UTC is the afternoon of the 14th in New York
	stat := f.stat(t, 1, "2024-06-14")
	assert.Equal(t, 3, stat.ReviewCount)
	assert.Zero(t, stat.AnsweredCount)
	assert.Zero(t, stat.DidntKnowCount)
	assert.Nil(t, stat.UnknownRatioRaw)
	assert.True(t, stat.Active)

	stored, err := database.NewVocabItemRepository().GetForUser(ctx, f.db, 1, item.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Strength)
	require.NotNil(t, stored.NextReviewAt)
	assert.True(t, f.clock.Add(24*time.Hour).Equal(*stored.NextReviewAt))
}

func TestStartQuizTimeZoneOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")

	res, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1, TimeZone: "Asia/Tokyo", Source: "  daily  "})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", res.TimeZone)
	assert.Equal(t, "2024-06-15", res.StatDate)
	assert.Equal(t, "daily", f.run(t, 1, res.QuizRunID).Source)

	user, err := database.NewUserRepository().GetByID(ctx, f.db, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", user.TimeZone)

	res, err = f.svc.StartQuiz(ctx, StartInput{UserID: 1, TimeZone: "Mars/Olympus"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", res.TimeZone)
	assert.Equal(t, models.DefaultQuizSource, f.run(t, 1, res.QuizRunID).Source)
}

func TestRunZoneOutlivesUserZoneChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "Europe/Oslo")
	item := dbtest.CreateItem(t, f.db, 1, "apple")

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1})
	require.NoError(t, err)
	require.NoError(t, database.NewUserRepository().UpdateTimeZone(ctx, f.db, 1, "America/Los_Angeles", f.clock))

	_, err = f.svc.RecordAnswer(ctx, answer(1, item.ID, false, started.QuizRunID, 0))
	require.NoError(t, err)

	stat := f.stat(t, 1, "2024-06-15")
	assert.Equal(t, 1, stat.AnsweredCount)
	assert.Equal(t, 1, stat.DidntKnowCount)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")
	run := "some-run"
	attempt := 1
	negative := -1
	zero := 0

	inputs := []AnswerInput{
		{UserID: 1, ItemID: 1, QuizRunID: &run},
		{UserID: 1, ItemID: 1, AttemptIndex: &attempt},
		{UserID: 1, ItemID: 1, QuizRunID: &run, AttemptIndex: &negative},
		{UserID: 1, ItemID: 1, RepeatCount: &zero},
	}
	for _, in := range inputs {
		_, err := f.svc.RecordAnswer(ctx, in)
		assert.Equal(t, 400, apperror.StatusOf(err))
	}

	_, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1, PlannedCards: -1})
	assert.Equal(t, 400, apperror.StatusOf(err))
	_, err = f.svc.CompleteQuiz(ctx, 1, "", nil)
	assert.Equal(t, 400, apperror.StatusOf(err))
	_, err = f.svc.ExitQuiz(ctx, 1, run, &negative)
	assert.Equal(t, 400, apperror.StatusOf(err))
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")
	dbtest.CreateUser(t, f.db, 2, "UTC")
	foreign := dbtest.CreateItem(t, f.db, 2, "apple")

	_, err := f.svc.StartQuiz(ctx, StartInput{UserID: 99})
	assert.Equal(t, 404, apperror.StatusOf(err))

	started, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1})
	require.NoError(t, err)

	_, err = f.svc.CompleteQuiz(ctx, 2, started.QuizRunID, nil)
	assert.Equal(t, 404, apperror.StatusOf(err), "runs are scoped to their owner")

	_, err = f.svc.RecordAnswer(ctx, answer(1, foreign.ID, true, started.QuizRunID, 1))
	assert.Equal(t, 404, apperror.StatusOf(err), "items are scoped to their owner")

	_, err = f.svc.ExitQuiz(ctx, 1, "missing", nil)
	assert.Equal(t, 404, apperror.StatusOf(err))

	// the failed answer left nothing behind
	assert.Zero(t, f.run(t, 1, started.QuizRunID).AnsweredCount)
	assert.Zero(t, f.stat(t, 1, "2024-06-14").ReviewCount)
}

func TestLifecycleRunsMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")

	_, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1})
	require.NoError(t, err)

	cursor, err := database.NewCursorRepository().Get(ctx, f.db, false)
	require.NoError(t, err)
	assert.NotNil(t, cursor.LastReconciledDate)
}

func TestConfiguredThresholdKeepsDayInactive(t *testing.T) {
	f := newFixture(t)
	f.svc.ledger = analytics.NewLedger(5)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")
	item := dbtest.CreateItem(t, f.db, 1, "apple")

	for i := 0; i < 3; i++ {
		res, err := f.svc.Review(ctx, AnswerInput{UserID: 1, ItemID: item.ID, Knew: true})
		require.NoError(t, err)
		assert.False(t, res.DayActive)
	}
	assert.False(t, f.stat(t, 1, "2024-06-14").Active, "three reviews are below a threshold of five")

	for i := 0; i < 2; i++ {
		_, err := f.svc.Review(ctx, AnswerInput{UserID: 1, ItemID: item.ID, Knew: true})
		require.NoError(t, err)
	}
	stat := f.stat(t, 1, "2024-06-14")
	assert.Equal(t, 5, stat.ReviewCount)
	assert.True(t, stat.Active)
}

func TestInvalidRequestSkipsMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.CreateUser(t, f.db, 1, "UTC")
	negative := -1

	_, err := f.svc.StartQuiz(ctx, StartInput{UserID: 1, PlannedCards: -1})
	assert.Equal(t, 400, apperror.StatusOf(err))
	_, err = f.svc.RecordAnswer(ctx, AnswerInput{UserID: 1, ItemID: 1, RepeatCount: &negative})
	assert.Equal(t, 400, apperror.StatusOf(err))
	_, err = f.svc.CompleteQuiz(ctx, 1, "", nil)
	assert.Equal(t, 400, apperror.StatusOf(err))
	_, err = f.svc.ExitQuiz(ctx, 1, "run", &negative)
	assert.Equal(t, 400, apperror.StatusOf(err))

	cursor, err := database.NewCursorRepository().Get(ctx, f.db, false)
	require.NoError(t, err)
	assert.Nil(t, cursor.LastReconciledDate)
}
