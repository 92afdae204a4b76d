// Package quiz records quiz runs and answers and feeds them into the
// analytics ledger. Every call runs in a single transaction: run state,
// ledger delta and streak update commit or roll back together.
package quiz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/learnstats/internal/analytics"
	"github.com/example/learnstats/internal/apperror"
	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/datekey"
	"github.com/example/learnstats/internal/logging"
	"github.com/example/learnstats/internal/metrics"
	"github.com/example/learnstats/internal/spaced_repetition"
	"github.com/example/learnstats/pkg/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// StartInput starts a run. An explicit TimeZone replaces the user's stored zone.
type StartInput struct {
	UserID       int64
	PlannedCards int    `validate:"gte=0,lte=1000"`
	Source       string `validate:"max=64"`
	TimeZone     string `validate:"max=64"`
}

// AnswerInput records one answer. QuizRunID and AttemptIndex come together
// or not at all; without them the answer is a free review.
type AnswerInput struct {
	UserID       int64
	ItemID       int64
	Knew         bool
	QuizRunID    *string `validate:"omitnil,max=64"`
	AttemptIndex *int    `validate:"omitnil,gte=0"`
	RepeatCount  *int    `validate:"omitnil,gte=1"`
}

// Service implements the quiz run lifecycle
type Service struct {
	db          *sqlx.DB
	users       *database.UserRepository
	items       *database.VocabItemRepository
	runs        *database.QuizRunRepository
	ledger      *analytics.Ledger
	tracker     *analytics.Tracker
	ladder      *spaced_repetition.Ladder
	maintenance *analytics.Maintenance
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	newID       func() string
}

// NewService creates the quiz service. maintenance, logger and m may be nil.
func NewService(db *sqlx.DB, ledger *analytics.Ledger, tracker *analytics.Tracker, ladder *spaced_repetition.Ladder, maintenance *analytics.Maintenance, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:          db,
		users:       database.NewUserRepository(),
		items:       database.NewVocabItemRepository(),
		runs:        database.NewQuizRunRepository(),
		ledger:      ledger,
		tracker:     tracker,
		ladder:      ladder,
		maintenance: maintenance,
		logger:      logging.OrNop(logger).Named("quiz"),
		metrics:     m,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// StartQuiz creates a run in the started state and counts it on today's
// ledger row in the run's zone
func (s *Service) StartQuiz(ctx context.Context, in StartInput) (*models.StartQuizResult, error) {
	if err := validateStart(in); err != nil {
		return nil, err
	}
	s.maintenance.Trigger(ctx)

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = models.DefaultQuizSource
	}

	var (
		result      *models.StartQuizResult
		transitions bool
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		user, err := s.users.GetByID(ctx, tx, in.UserID, true)
		if err != nil {
			return classify(err, "user")
		}

		now := s.now().UTC()
		tz := datekey.Canonical(user.TimeZone)
		if strings.TrimSpace(in.TimeZone) != "" {
			tz = datekey.Canonical(in.TimeZone)
			if tz != user.TimeZone {
				if err := s.users.UpdateTimeZone(ctx, tx, user.ID, tz, now); err != nil {
					return classify(err, "user")
				}
			}
		}

		run := &models.QuizRun{
			ID:           s.newID(),
			UserID:       user.ID,
			Source:       source,
			PlannedCards: in.PlannedCards,
			Status:       models.QuizRunStarted,
			TimeZone:     tz,
			StartedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.runs.Create(ctx, tx, run); err != nil {
			return classify(err, "")
		}

		day := datekey.Today(tz, now)
		if _, transitions, err = s.applyDelta(ctx, tx, user.ID, tz, day, analytics.Delta{QuizStarted: 1}); err != nil {
			return err
		}

		result = &models.StartQuizResult{QuizRunID: run.ID, TimeZone: tz, StatDate: day.String()}
		return nil
	})
	if err != nil {
		return nil, classify(err, "")
	}

	s.metrics.QuizEvent(metrics.EventStarted)
	s.recordTransition(transitions)
	s.logger.Debug("quiz started",
		zap.Int64("user_id", in.UserID),
		zap.String("quiz_run_id", result.QuizRunID),
		zap.String("time_zone", result.TimeZone),
	)
	return result, nil
}

// RecordAnswer records an answer, updates the item's review schedule and
// counts the review. A repeated (run, attempt) pair returns the item's
// current state without changing anything.
func (s *Service) RecordAnswer(ctx context.Context, in AnswerInput) (*models.AnswerResult, error) {
	if err := validateAnswer(in); err != nil {
		return nil, err
	}
	s.maintenance.Trigger(ctx)

	var (
		result      *models.AnswerResult
		transitions bool
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		user, err := s.users.GetByID(ctx, tx, in.UserID, false)
		if err != nil {
			return classify(err, "user")
		}

		var run *models.QuizRun
		if in.QuizRunID != nil {
			run, err = s.runs.GetForUser(ctx, tx, user.ID, *in.QuizRunID, true)
			if err != nil {
				return classify(err, "quiz run")
			}

			answer, err := s.runs.GetAnswer(ctx, tx, run.ID, *in.AttemptIndex)
			switch {
			case err == nil:
				result, err = s.replayAnswer(ctx, tx, user.ID, answer.VocabItemID, in.RepeatCount)
				return err
			case !errors.Is(err, database.ErrNotFound):
				return classify(err, "")
			}

			if run.Status.Terminal() {
				return apperror.Conflict("quiz run is not active")
			}
		}

		item, err := s.items.GetForUser(ctx, tx, user.ID, in.ItemID, true)
		if err != nil {
			return classify(err, "vocab item")
		}

		now := s.now().UTC()
		if run != nil {
			inserted, err := s.runs.InsertAnswer(ctx, tx, &models.QuizRunAnswer{
				QuizRunID:    run.ID,
				AttemptIndex: *in.AttemptIndex,
				VocabItemID:  item.ID,
				Knew:         in.Knew,
				AnsweredAt:   now,
			})
			if err != nil {
				return classify(err, "")
			}
			if !inserted {
				result = answerResult(item, in.RepeatCount, true)
				return nil
			}
		}

		s.ladder.Apply(item, in.Knew, now)
		if err := s.items.UpdateReview(ctx, tx, item); err != nil {
			return classify(err, "vocab item")
		}

		tz := user.TimeZone
		delta := analytics.Delta{Reviews: 1}
		if run != nil {
			tz = run.TimeZone
			delta.Answered = 1
			if !in.Knew {
				delta.DidntKnow = 1
			}
		}
		var stat *models.DailyLearningStat
		stat, transitions, err = s.applyDelta(ctx, tx, user.ID, tz, datekey.Today(tz, now), delta)
		if err != nil {
			return err
		}

		if run != nil {
			run.AnsweredCount++
			if in.Knew {
				run.KnewCount++
			} else {
				run.DidntKnowCount++
			}
			run.UpdatedAt = now
			if err := s.runs.Update(ctx, tx, run); err != nil {
				return classify(err, "quiz run")
			}
		}

		result = answerResult(item, in.RepeatCount, false)
		result.DayActive = stat.Active
		return nil
	})
	if err != nil {
		return nil, classify(err, "")
	}

	if result.Replayed {
		s.metrics.Replay(metrics.OperationAnswer)
	} else {
		s.metrics.QuizEvent(metrics.EventAnswered)
	}
	s.recordTransition(transitions)
	return result, nil
}

// Review is RecordAnswer under the name used by the review flow
func (s *Service) Review(ctx context.Context, in AnswerInput) (*models.AnswerResult, error) {
	return s.RecordAnswer(ctx, in)
}

// CompleteQuiz finishes a started run and counts the completion on today's
// ledger row in the run's zone. Completing a completed run returns it again.
func (s *Service) CompleteQuiz(ctx context.Context, userID int64, runID string, durationSec *int) (*models.FinishResult, error) {
	if err := validateFinish(runID, durationSec); err != nil {
		return nil, err
	}
	s.maintenance.Trigger(ctx)

	var (
		result      *models.FinishResult
		transitions bool
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		run, err := s.runs.GetForUser(ctx, tx, userID, runID, true)
		if err != nil {
			return classify(err, "quiz run")
		}

		switch run.Status {
		case models.QuizRunCompleted:
			result = &models.FinishResult{Run: run, AlreadyCompleted: true}
			return nil
		case models.QuizRunExited:
			return apperror.Conflict("quiz run already exited")
		}

		now := s.now().UTC()
		if run.AnsweredCount > 0 {
			ratio := float64(run.DidntKnowCount) / float64(run.AnsweredCount)
			run.UnknownRatio = &ratio
		}
		run.Status = models.QuizRunCompleted
		run.CompletedAt = &now
		run.DurationSec = duration(run, durationSec, now)
		run.UpdatedAt = now
		if err := s.runs.Update(ctx, tx, run); err != nil {
			return classify(err, "quiz run")
		}

		day := datekey.Today(run.TimeZone, now)
		if _, transitions, err = s.applyDelta(ctx, tx, userID, run.TimeZone, day, analytics.Delta{QuizCompleted: 1}); err != nil {
			return err
		}

		result = &models.FinishResult{Run: run}
		return nil
	})
	if err != nil {
		return nil, classify(err, "")
	}

	if result.AlreadyCompleted {
		s.metrics.Replay(metrics.OperationComplete)
	} else {
		s.metrics.QuizEvent(metrics.EventCompleted)
	}
	s.recordTransition(transitions)
	return result, nil
}

// ExitQuiz abandons a started run. A run that already completed stays
// completed; exiting an exited run returns it again. Exits are not counted
// on the ledger.
func (s *Service) ExitQuiz(ctx context.Context, userID int64, runID string, durationSec *int) (*models.FinishResult, error) {
	if err := validateFinish(runID, durationSec); err != nil {
		return nil, err
	}
	s.maintenance.Trigger(ctx)

	var result *models.FinishResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		run, err := s.runs.GetForUser(ctx, tx, userID, runID, true)
		if err != nil {
			return classify(err, "quiz run")
		}

		switch run.Status {
		case models.QuizRunCompleted:
			result = &models.FinishResult{Run: run, AlreadyCompleted: true}
			return nil
		case models.QuizRunExited:
			result = &models.FinishResult{Run: run, AlreadyExited: true}
			return nil
		}

		now := s.now().UTC()
		run.Status = models.QuizRunExited
		run.ExitedAt = &now
		run.DurationSec = duration(run, durationSec, now)
		run.UpdatedAt = now
		if err := s.runs.Update(ctx, tx, run); err != nil {
			return classify(err, "quiz run")
		}

		result = &models.FinishResult{Run: run}
		return nil
	})
	if err != nil {
		return nil, classify(err, "")
	}

	if result.AlreadyCompleted || result.AlreadyExited {
		s.metrics.Replay(metrics.OperationExit)
	} else {
		s.metrics.QuizEvent(metrics.EventExited)
	}
	return result, nil
}

// applyDelta applies d and, when the day turns active, updates the streak
func (s *Service) applyDelta(ctx context.Context, tx *sqlx.Tx, userID int64, tz string, day datekey.Key, d analytics.Delta) (*models.DailyLearningStat, bool, error) {
	stat, transitioned, err := s.ledger.ApplyDelta(ctx, tx, userID, tz, day, d)
	if err != nil {
		return nil, false, classify(err, "")
	}
	if transitioned {
		if _, err := s.tracker.MarkActiveDay(ctx, tx, userID, day); err != nil {
			return nil, false, classify(err, "")
		}
	}
	return stat, transitioned, nil
}

func (s *Service) replayAnswer(ctx context.Context, tx *sqlx.Tx, userID, itemID int64, repeatCount *int) (*models.AnswerResult, error) {
	item, err := s.items.GetForUser(ctx, tx, userID, itemID, false)
	if err != nil {
		return nil, classify(err, "vocab item")
	}
	return answerResult(item, repeatCount, true), nil
}

func (s *Service) recordTransition(transitioned bool) {
	if transitioned {
		s.metrics.ActiveDayTransition()
	}
}

func answerResult(item *models.VocabItem, repeatCount *int, replayed bool) *models.AnswerResult {
	return &models.AnswerResult{
		VocabItemID:  item.ID,
		Strength:     item.Strength,
		NextReviewAt: item.NextReviewAt,
		RepeatCount:  repeatCount,
		Replayed:     replayed,
	}
}

// duration prefers the client's figure and falls back to the wall time
// since the run started
func duration(run *models.QuizRun, durationSec *int, now time.Time) *int {
	if durationSec != nil {
		d := *durationSec
		return &d
	}
	d := int(now.Sub(run.StartedAt).Seconds())
	if d < 0 {
		d = 0
	}
	return &d
}

// classify maps repository errors onto the caller-visible taxonomy. resource
// names what a missing row was; errors already classified pass through.
func classify(err error, resource string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if resource != "" && errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(resource)
	}
	return apperror.Unavailable("storage failure", err)
}
