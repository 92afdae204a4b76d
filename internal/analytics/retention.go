package analytics

import (
	"context"
	"time"

	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// RetentionOffsets are the day offsets tracked for every cohort
var RetentionOffsets = []int{1, 7}

// Retention recomputes cohort retention metrics
type Retention struct {
	repo *database.RetentionRepository
	now  func() time.Time
}

// NewRetention creates a retention calculator
func NewRetention() *Retention {
	return &Retention{
		repo: database.NewRetentionRepository(),
		now:  time.Now,
	}
}

// Recompute counts the cohort first active on cohort and how many of it were
// active dayOffset days later, and overwrites the stored metric. An empty
// cohort is stored with a zero rate.
func (r *Retention) Recompute(ctx context.Context, q sqlx.ExtContext, cohort datekey.Key, dayOffset int) (*models.RetentionMetric, error) {
	size, err := r.repo.CohortSize(ctx, q, cohort.String())
	if err != nil {
		return nil, err
	}

	metric := &models.RetentionMetric{
		CohortDate:   cohort.String(),
		DayOffset:    dayOffset,
		CohortSize:   size,
		CalculatedAt: r.now().UTC(),
	}
	if size > 0 {
		retained, err := r.repo.RetainedUsers(ctx, q, cohort.String(), datekey.Shift(cohort, dayOffset).String())
		if err != nil {
			return nil, err
		}
		metric.RetainedUsers = retained
		metric.RetentionRate = float64(retained) / float64(size)
	}

	if err := r.repo.Upsert(ctx, q, metric); err != nil {
		return nil, err
	}
	return metric, nil
}
