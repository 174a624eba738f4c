// Package stats maintains the aggregate statistics of quizzes and users. Aggregates are folded
// incrementally on the hot path; the score ledger stays authoritative and every aggregate can
// be rebuilt from it.
package stats

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/event"
)

// Store must apply every increment atomically at the storage layer: concurrent increments
// on the same quiz or user may never lose an update.
type Store interface {
	IncrementQuizStats(ctx context.Context, quizID string, points int) (domain.QuizStats, error)
	IncrementUserStats(ctx context.Context, userID string, points int) (domain.UserStats, error)
	IncrementQuizzesCreated(ctx context.Context, userID string) (domain.UserStats, error)

	RebuildQuizStats(ctx context.Context, quizID string) (domain.QuizStats, error)
	RebuildUserStats(ctx context.Context, userID string) (domain.UserStats, error)
	RebuildAllStats(ctx context.Context) (quizzes, users int64, err error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
}

type Service struct {
	eb    *event.Bus
	store Store
}

func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		store: c.Store,
	}

	if s.eb != nil {
		s.eb.Subscribe(domain.EventNameStatsDrifted, func(ctx context.Context, e event.Event) error {
			return s.Reconcile(ctx, e.(domain.EventStatsDrifted))
		})
	}

	return s
}

type ScoreUpdate struct {
	Quiz domain.QuizStats
	User domain.UserStats
}

// ApplyScoreUpdate folds one recorded score into the quiz stats, then into the user stats.
// The two folds are independent: a failing quiz update does not prevent the user update.
func (s *Service) ApplyScoreUpdate(ctx context.Context, quizID, userID string, points int) (*ScoreUpdate, error) {
	var (
		u    ScoreUpdate
		errs []error
		err  error
	)

	if u.Quiz, err = s.store.IncrementQuizStats(ctx, quizID, points); err != nil {
		errs = append(errs, fmt.Errorf("quiz stats: quiz=%s: %w", quizID, err))
	}

	if u.User, err = s.store.IncrementUserStats(ctx, userID, points); err != nil {
		errs = append(errs, fmt.Errorf("user stats: user=%s: %w", userID, err))
	}

	if len(errs) > 0 {
		return nil, stderrors.Join(errs...)
	}

	return &u, nil
}

// ApplyCreationUpdate counts a newly created quiz for its creator.
func (s *Service) ApplyCreationUpdate(ctx context.Context, userID string) (*domain.UserStats, error) {
	st, err := s.store.IncrementQuizzesCreated(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("creation stats: user=%s: %w", userID, err)
	}

	return &st, nil
}

// Reconcile rebuilds the aggregates touched by a drifted submission.
func (s *Service) Reconcile(ctx context.Context, e domain.EventStatsDrifted) error {
	var errs []error

	if _, err := s.store.RebuildQuizStats(ctx, e.QuizID); err != nil {
		errs = append(errs, fmt.Errorf("rebuild quiz stats: quiz=%s: %w", e.QuizID, err))
	}

	if _, err := s.store.RebuildUserStats(ctx, e.UserID); err != nil {
		errs = append(errs, fmt.Errorf("rebuild user stats: user=%s: %w", e.UserID, err))
	}

	if err := stderrors.Join(errs...); err != nil {
		return err
	}

	slog.InfoContext(ctx, "stats: reconciled",
		"score_id", e.ScoreID,
		"quiz_id", e.QuizID,
		"user_id", e.UserID,
	)

	return nil
}

func (s *Service) RebuildQuizStats(ctx context.Context, quizID string) (*domain.QuizStats, error) {
	st, err := s.store.RebuildQuizStats(ctx, quizID)
	if err != nil {
		return nil, err
	}

	return &st, nil
}

func (s *Service) RebuildUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	st, err := s.store.RebuildUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &st, nil
}

// RebuildAll recomputes every aggregate from the ledger.
func (s *Service) RebuildAll(ctx context.Context) error {
	quizzes, users, err := s.store.RebuildAllStats(ctx)
	if err != nil {
		return fmt.Errorf("rebuild all stats: %w", err)
	}

	slog.InfoContext(ctx, "stats: rebuilt all aggregates",
		"quizzes", quizzes,
		"users", users,
	)

	return nil
}

// StartReconciler runs RebuildAll on the given cron schedule until the returned stop
// function is called. Stop waits for a running rebuild to finish. An empty schedule
// disables the reconciler.
//
// A rebuild overwrites increments folded while it runs, so schedule it for quiet hours.
func (s *Service) StartReconciler(ctx context.Context, schedule string) (stop func(), err error) {
	if schedule == "" {
		slog.InfoContext(ctx, "stats: scheduled reconciliation disabled")
		return func() {}, nil
	}

	c := cron.New()

	_, err = c.AddFunc(schedule, func() {
		if err := s.RebuildAll(ctx); err != nil {
			slog.ErrorContext(ctx, "stats: scheduled reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}

	c.Start()

	return func() {
		<-c.Stop().Done()
	}, nil
}
