// Package score is the append-only ledger of quiz attempts. Recorded scores are never
// mutated; every aggregate in the system can be rebuilt from them.
package score

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/scoring"
)

const (
	defaultLimit  = 10
	maxLimit      = 100
	recentScores  = 5
	topCategories = 5
)

type Store interface {
	InsertScore(ctx context.Context, sc domain.Score) error
	GetScore(ctx context.Context, scoreID string) (domain.Score, error)
	// ListUserScores returns the most recent scores of a user first.
	ListUserScores(ctx context.Context, userID string, limit int) ([]domain.Score, error)
	// ListQuizLeaderboard orders by score descending, then time taken and completion time ascending.
	ListQuizLeaderboard(ctx context.Context, quizID string, limit int) ([]domain.Score, error)
	GetBestScore(ctx context.Context, userID, quizID string) (domain.Score, error)
	SummarizeUserScores(ctx context.Context, userID string) (domain.ScoreOverview, error)
	// SummarizeUserCategory is SummarizeUserScores restricted to quizzes of one category.
	SummarizeUserCategory(ctx context.Context, userID, category string) (domain.ScoreOverview, error)
	// ListUserCategoryStats orders by attempts descending, then category.
	ListUserCategoryStats(ctx context.Context, userID string, limit int) ([]domain.CategoryStats, error)
	// ListUserCategoryScores returns the most recent scores of a user in one category first.
	ListUserCategoryScores(ctx context.Context, userID, category string, limit int) ([]domain.Score, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
}

type Service struct {
	eb    *event.Bus
	store Store
	now   func() time.Time
}

func NewService(c Config) *Service {
	return &Service{
		eb:    c.EventBus,
		store: c.Store,
		now:   time.Now,
	}
}

type RecordScoreRequest struct {
	UserID string
	QuizID string
	Result scoring.Result
}

// RecordScore appends one evaluated attempt to the ledger.
func (s *Service) RecordScore(ctx context.Context, req RecordScoreRequest) (*domain.Score, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate score ID: %w", err)
	}

	r := req.Result
	sc := domain.Score{
		ScoreID:     id.String(),
		UserID:      req.UserID,
		QuizID:      req.QuizID,
		Score:       r.Score(),
		TotalPoints: r.TotalPoints(),
		Percentage:  r.Percentage(),
		Passed:      r.Passed(),
		TimeTaken:   r.TimeTaken(),
		Answers:     r.Answers(),
		CompletedAt: s.now().UTC(),
	}

	if err := s.store.InsertScore(ctx, sc); err != nil {
		return nil, err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventScoreRecorded{Score: sc})
	}

	return &sc, nil
}

func (s *Service) GetScore(ctx context.Context, scoreID string) (*domain.Score, error) {
	sc, err := s.store.GetScore(ctx, scoreID)
	if err != nil {
		return nil, err
	}

	return &sc, nil
}

type GetUserHistoryRequest struct {
	UserID string
	Limit  int
}

func (s *Service) GetUserHistory(ctx context.Context, req GetUserHistoryRequest) ([]domain.Score, error) {
	return s.store.ListUserScores(ctx, req.UserID, normalizeLimit(req.Limit))
}

type GetLeaderboardRequest struct {
	QuizID string
	Limit  int
}

// GetLeaderboard ranks the scores of a quiz. A faster attempt wins a tie on score.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	scores, err := s.store.ListQuizLeaderboard(ctx, req.QuizID, normalizeLimit(req.Limit))
	if err != nil {
		return nil, err
	}

	l := &domain.Leaderboard{
		QuizID:  req.QuizID,
		Entries: make([]domain.LeaderboardEntry, 0, len(scores)),
	}

	for i, sc := range scores {
		l.Entries = append(l.Entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			ScoreID:     sc.ScoreID,
			UserID:      sc.UserID,
			Score:       sc.Score,
			Percentage:  sc.Percentage,
			TimeTaken:   sc.TimeTaken,
			CompletedAt: sc.CompletedAt,
		})
	}

	return l, nil
}

func (s *Service) GetBestScore(ctx context.Context, userID, quizID string) (*domain.Score, error) {
	sc, err := s.store.GetBestScore(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}

	return &sc, nil
}

// GetOverview sums up every score of a user along with the categories they play most
// and their latest attempts.
func (s *Service) GetOverview(ctx context.Context, userID string) (*domain.ScoreOverview, error) {
	o, err := s.store.SummarizeUserScores(ctx, userID)
	if err != nil {
		return nil, err
	}

	if o.Categories, err = s.store.ListUserCategoryStats(ctx, userID, topCategories); err != nil {
		return nil, err
	}

	if o.RecentScores, err = s.store.ListUserScores(ctx, userID, recentScores); err != nil {
		return nil, err
	}

	return &o, nil
}

type GetCategoryOverviewRequest struct {
	UserID   string
	Category string
	Limit    int
}

// GetCategoryOverview sums up the scores of a user on quizzes of one category. An unplayed
// category yields a zero overview.
func (s *Service) GetCategoryOverview(ctx context.Context, req GetCategoryOverviewRequest) (*domain.CategoryOverview, error) {
	o, err := s.store.SummarizeUserCategory(ctx, req.UserID, req.Category)
	if err != nil {
		return nil, err
	}

	scores, err := s.store.ListUserCategoryScores(ctx, req.UserID, req.Category, normalizeLimit(req.Limit))
	if err != nil {
		return nil, err
	}

	return &domain.CategoryOverview{
		Category: req.Category,
		Overview: o,
		Scores:   scores,
	}, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
