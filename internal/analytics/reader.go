package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/learnstats/internal/apperror"
	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// DashboardDays is the window of the user dashboard
const DashboardDays = 7

// MaxOverviewDays bounds the range of one admin overview
const MaxOverviewDays = 366

// Reader serves the dashboard and admin overview. It never writes, apart
// from the opportunistic maintenance pass run before each read.
type Reader struct {
	db          *sqlx.DB
	users       *database.UserRepository
	stats       *database.DailyStatRepository
	profiles    *database.ProfileRepository
	retention   *database.RetentionRepository
	maintenance *Maintenance
	now         func() time.Time
}

// NewReader creates a reader. maintenance may be nil.
func NewReader(db *sqlx.DB, maintenance *Maintenance) *Reader {
	return &Reader{
		db:          db,
		users:       database.NewUserRepository(),
		stats:       database.NewDailyStatRepository(),
		profiles:    database.NewProfileRepository(),
		retention:   database.NewRetentionRepository(),
		maintenance: maintenance,
		now:         time.Now,
	}
}

// DashboardLearningMetrics summarises the last seven days of userID in tz.
// An empty tz selects the user's stored zone.
func (r *Reader) DashboardLearningMetrics(ctx context.Context, userID int64, tz string) (*models.DashboardMetrics, error) {
	r.maintenance.Trigger(ctx)

	user, err := r.users.GetByID(ctx, r.db, userID, false)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.NotFound("user")
	}
	if err != nil {
		return nil, apperror.Unavailable("failed to load user", err)
	}
	if tz == "" {
		tz = user.TimeZone
	}
	tz = datekey.Canonical(tz)

	now := r.now()
	days := datekey.Recent(tz, DashboardDays, now)
	today := days[len(days)-1]
	out := &models.DashboardMetrics{
		UserID:   userID,
		TimeZone: tz,
		Today:    today.String(),
		Days:     make([]models.DayPoint, 0, len(days)),
	}

	profile, err := r.profiles.Get(ctx, r.db, userID, false)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return nil, apperror.Unavailable("failed to load learning profile", err)
	default:
		last := profile.LastActiveDate
		out.LastActiveDate = &last
		out.LongestStreak = profile.LongestStreak
		// a streak survives until the end of the day after its last active day
		if datekey.DaysBetween(datekey.Key(last), today) <= 1 {
			out.CurrentStreak = profile.CurrentStreak
		}
	}

	rows, err := r.stats.ListForUser(ctx, r.db, userID, days[0].String(), today.String())
	if err != nil {
		return nil, apperror.Unavailable("failed to load daily stats", err)
	}
	byDate := make(map[string]models.DailyLearningStat, len(rows))
	for _, row := range rows {
		byDate[row.StatDate] = row
	}

	var started, completed, answered, didntKnow int
	for _, day := range days {
		row := byDate[day.String()]
		out.Days = append(out.Days, models.DayPoint{
			Date:          day.String(),
			Active:        row.Active,
			QuizStarted:   row.QuizStartedCount,
			QuizCompleted: row.QuizCompletedCount,
			Reviews:       row.ReviewCount,
			Answered:      row.AnsweredCount,
			DidntKnow:     row.DidntKnowCount,
			UnknownRatio:  row.UnknownRatioRaw,
		})
		started += row.QuizStartedCount
		completed += row.QuizCompletedCount
		answered += row.AnsweredCount
		didntKnow += row.DidntKnowCount
	}
	out.CompletionRate = completionRate(completed, started)
	out.UnknownRatio = ratio(didntKnow, answered)
	return out, nil
}

// AnalyticsOverview reports per-day totals across all users for from..to
// inclusive, with the D1 and D7 retention of each day's cohort
func (r *Reader) AnalyticsOverview(ctx context.Context, from, to string) (*models.AnalyticsOverview, error) {
	fromKey, err := datekey.Parse(from)
	if err != nil {
		return nil, apperror.BadRequest(fmt.Sprintf("invalid from date %q", from))
	}
	toKey, err := datekey.Parse(to)
	if err != nil {
		return nil, apperror.BadRequest(fmt.Sprintf("invalid to date %q", to))
	}
	if toKey.Before(fromKey) {
		return nil, apperror.BadRequest("from must not be after to")
	}
	if datekey.DaysBetween(fromKey, toKey)+1 > MaxOverviewDays {
		return nil, apperror.BadRequest(fmt.Sprintf("range exceeds %d days", MaxOverviewDays))
	}

	r.maintenance.Trigger(ctx)

	totals, err := r.stats.Totals(ctx, r.db, from, to)
	if err != nil {
		return nil, apperror.Unavailable("failed to load daily totals", err)
	}
	newUsers, err := r.profiles.NewUsersPerDay(ctx, r.db, from, to)
	if err != nil {
		return nil, apperror.Unavailable("failed to count new users", err)
	}

	totalsByDate := make(map[string]models.DailyTotals, len(totals))
	for _, t := range totals {
		totalsByDate[t.StatDate] = t
	}
	newByDate := make(map[string]int, len(newUsers))
	for _, n := range newUsers {
		newByDate[n.Date] = n.Count
	}

	days := datekey.Range(fromKey, toKey)
	out := &models.AnalyticsOverview{
		From: from,
		To:   to,
		Days: make([]models.OverviewDay, 0, len(days)),
	}
	for _, day := range days {
		t, ok := totalsByDate[day.String()]
		if !ok {
			t = models.DailyTotals{StatDate: day.String()}
		}
		out.Days = append(out.Days, models.OverviewDay{
			DailyTotals:    t,
			NewUsers:       newByDate[day.String()],
			CompletionRate: completionRate(t.QuizCompleted, t.QuizStarted),
			UnknownRatio:   ratio(t.DidntKnow, t.Answered),
		})
	}

	if out.RetentionD1, err = r.retentionSeries(ctx, 1, days); err != nil {
		return nil, err
	}
	if out.RetentionD7, err = r.retentionSeries(ctx, 7, days); err != nil {
		return nil, err
	}
	return out, nil
}

// retentionSeries has one point per cohort day. Cohorts not yet computed
// keep a nil rate.
func (r *Reader) retentionSeries(ctx context.Context, offset int, days []datekey.Key) ([]models.RetentionPoint, error) {
	metrics, err := r.retention.ListRange(ctx, r.db, offset, days[0].String(), days[len(days)-1].String())
	if err != nil {
		return nil, apperror.Unavailable("failed to load retention metrics", err)
	}
	byCohort := make(map[string]models.RetentionMetric, len(metrics))
	for _, m := range metrics {
		byCohort[m.CohortDate] = m
	}

	series := make([]models.RetentionPoint, 0, len(days))
	for _, day := range days {
		point := models.RetentionPoint{CohortDate: day.String()}
		if m, ok := byCohort[day.String()]; ok {
			rate := m.RetentionRate
			point.CohortSize = m.CohortSize
			point.RetainedUsers = m.RetainedUsers
			point.RetentionRate = &rate
		}
		series = append(series, point)
	}
	return series, nil
}

func ratio(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// completionRate is completed/started capped at 1; a quiz started before
// midnight and completed after it counts on two different days
func completionRate(completed, started int) *float64 {
	rate := ratio(completed, started)
	if rate != nil && *rate > 1 {
		one := 1.0
		return &one
	}
	return rate
}
