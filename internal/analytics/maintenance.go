package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/learnstats/internal/apperror"
	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/internal/lock"
	"github.com/example/learnstats/internal/logging"
	"github.com/example/learnstats/internal/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Trigger stops calling EnsureRun for breakerCooldown once
// breakerFailures passes in a row have failed.
const (
	breakerFailures = 3
	breakerCooldown = 30 * time.Second
)

// Outcome describes what a maintenance pass did
type Outcome string

const (
	OutcomeUpToDate        Outcome = "up_to_date"
	OutcomeLockedElsewhere Outcome = "locked_elsewhere"
	OutcomeReconciled      Outcome = "reconciled"
	OutcomeFailed          Outcome = "failed"
)

// Result summarises one EnsureRun call. From and To are set only when days
// were reconciled.
type Result struct {
	Outcome        Outcome     `json:"outcome"`
	DaysReconciled int         `json:"days_reconciled"`
	From           datekey.Key `json:"from,omitempty"`
	To             datekey.Key `json:"to,omitempty"`
}

// Maintenance advances the analytics cursor to today, recomputing retention
// for every day it passes. It is safe to call from any number of instances.
type Maintenance struct {
	db        *sqlx.DB
	locker    lock.Locker
	lockName  string
	cursors   *database.CursorRepository
	profiles  *database.ProfileRepository
	retention *Retention
	logger    *zap.Logger
	metrics   *metrics.Metrics
	breaker   *gobreaker.CircuitBreaker[Result]
	now       func() time.Time
}

// NewMaintenance creates the maintenance driver. logger and m may be nil.
func NewMaintenance(db *sqlx.DB, locker lock.Locker, lockName string, retention *Retention, logger *zap.Logger, m *metrics.Metrics) *Maintenance {
	logger = logging.OrNop(logger).Named("maintenance")
	return &Maintenance{
		db:        db,
		locker:    locker,
		lockName:  lockName,
		cursors:   database.NewCursorRepository(),
		profiles:  database.NewProfileRepository(),
		retention: retention,
		logger:    logger,
		metrics:   m,
		breaker: gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
			Name:        lockName,
			MaxRequests: 1,
			Timeout:     breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("maintenance breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		now: time.Now,
	}
}

// EnsureRun reconciles every day after the cursor up to and including
// today (UTC). When the cursor is current it returns without taking the
// lock; when another instance holds the lock it returns without error.
func (m *Maintenance) EnsureRun(ctx context.Context) (Result, error) {
	started := m.now()
	today := datekey.For(started, datekey.DefaultZone)

	current, err := m.upToDate(ctx, today)
	if err != nil {
		return Result{}, err
	}
	if current {
		m.metrics.MaintenanceRun(string(OutcomeUpToDate), 0, 0)
		return Result{Outcome: OutcomeUpToDate}, nil
	}

	lease, ok, err := m.locker.TryAcquire(ctx, m.lockName)
	if err != nil {
		return Result{}, apperror.Unavailable("failed to acquire maintenance lock", err)
	}
	if !ok {
		m.logger.Debug("maintenance lock held elsewhere")
		m.metrics.MaintenanceRun(string(OutcomeLockedElsewhere), 0, 0)
		return Result{Outcome: OutcomeLockedElsewhere}, nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error("failed to release maintenance lock", zap.Error(err))
		}
	}()

	// another instance may have finished while we waited for the lock
	from, err := m.firstPending(ctx, today)
	if err != nil {
		return Result{}, err
	}
	if today.Before(from) {
		m.metrics.MaintenanceRun(string(OutcomeUpToDate), 0, 0)
		return Result{Outcome: OutcomeUpToDate}, nil
	}

	res := Result{Outcome: OutcomeReconciled, From: from}
	for _, day := range datekey.Range(from, today) {
		if err := database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
			return m.reconcileDay(ctx, tx, day)
		}); err != nil {
			m.metrics.MaintenanceRun(string(OutcomeFailed), res.DaysReconciled, m.now().Sub(started))
			return res, apperror.Unavailable(fmt.Sprintf("failed to reconcile %s", day), err)
		}
		res.DaysReconciled++
		res.To = day
	}

	m.logger.Info("analytics reconciled",
		zap.String("from", res.From.String()),
		zap.String("to", res.To.String()),
		zap.Int("days", res.DaysReconciled),
	)
	m.metrics.MaintenanceRun(string(res.Outcome), res.DaysReconciled, m.now().Sub(started))
	return res, nil
}

// Trigger runs EnsureRun for callers that must not fail because of it.
// Repeated failures open a breaker so request paths stop paying for a
// broken lock backend until the cooldown passes.
func (m *Maintenance) Trigger(ctx context.Context) {
	if m == nil {
		return
	}
	_, err := m.breaker.Execute(func() (Result, error) {
		return m.EnsureRun(ctx)
	})
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		m.logger.Debug("maintenance skipped, breaker open")
	default:
		m.logger.Warn("maintenance pass failed", zap.Error(err))
	}
}

// BreakerState reports whether Trigger is currently calling through
func (m *Maintenance) BreakerState() gobreaker.State {
	return m.breaker.State()
}

func (m *Maintenance) upToDate(ctx context.Context, today datekey.Key) (bool, error) {
	cursor, err := m.cursors.Get(ctx, m.db, false)
	if err != nil {
		return false, apperror.Unavailable("failed to read analytics cursor", err)
	}
	return cursor.LastReconciledDate != nil && !datekey.Key(*cursor.LastReconciledDate).Before(today), nil
}

// firstPending returns the first day not yet reconciled. A cursor that never
// ran starts at the oldest cohort, or today when nobody has been active.
func (m *Maintenance) firstPending(ctx context.Context, today datekey.Key) (datekey.Key, error) {
	cursor, err := m.cursors.Get(ctx, m.db, false)
	if err != nil {
		return "", apperror.Unavailable("failed to read analytics cursor", err)
	}
	if cursor.LastReconciledDate != nil {
		return datekey.Shift(datekey.Key(*cursor.LastReconciledDate), 1), nil
	}

	earliest, err := m.profiles.EarliestFirstActiveDate(ctx, m.db)
	if err != nil {
		return "", apperror.Unavailable("failed to find earliest cohort", err)
	}
	if earliest == "" || today.Before(datekey.Key(earliest)) {
		return today, nil
	}
	return datekey.Key(earliest), nil
}

// reconcileDay recomputes the metrics measured on day and on the day before
// it, then moves the cursor to day. Repeating the previous day replaces the
// figures taken while that day was still in progress.
func (m *Maintenance) reconcileDay(ctx context.Context, tx *sqlx.Tx, day datekey.Key) error {
	for _, measured := range []datekey.Key{datekey.Shift(day, -1), day} {
		for _, offset := range RetentionOffsets {
			if _, err := m.retention.Recompute(ctx, tx, datekey.Shift(measured, -offset), offset); err != nil {
				return err
			}
		}
	}
	return m.cursors.Advance(ctx, tx, day.String(), m.now())
}
