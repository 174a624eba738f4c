// Package quiz owns quiz definitions: authoring, activation and the read paths used by
// quiz takers and the submission pipeline.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/stats"
)

type Store interface {
	InsertQuiz(ctx context.Context, q domain.Quiz) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// UpdateQuiz overwrites the definition fields only. Stats and activity are left as stored.
	UpdateQuiz(ctx context.Context, q domain.Quiz) error
	SetQuizActive(ctx context.Context, quizID string, active bool, updateTime time.Time) error
	// ListQuizzesByCreator returns the newest quizzes of a creator first, inactive ones included.
	ListQuizzesByCreator(ctx context.Context, creatorID string, limit int) ([]domain.Quiz, error)
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type Config struct {
	EventBus *event.Bus
	Store    Store
	Stats    *stats.Service
	// Cache is optional; quizzes are read from the store directly when nil.
	Cache Cache
}

type Service struct {
	eb    *event.Bus
	store Store
	stats *stats.Service
	cache Cache
	group singleflight.Group
}

func NewService(c Config) *Service {
	return &Service{
		eb:    c.EventBus,
		store: c.Store,
		stats: c.Stats,
		cache: c.Cache,
	}
}

type CreateQuizRequest struct {
	Creator domain.User
	Draft   Draft
}

// CreateQuiz stores a new quiz owned by the requester and counts it in the creator's stats.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	if err := req.Draft.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate quiz ID: %w", err)
	}

	now := time.Now().UTC()
	q := domain.Quiz{
		QuizID:     id.String(),
		CreatorID:  req.Creator.UserID,
		IsActive:   true,
		CreateTime: now,
		UpdateTime: now,
	}
	req.Draft.apply(&q)

	if err := s.store.InsertQuiz(ctx, q); err != nil {
		return nil, err
	}

	if _, err := s.stats.ApplyCreationUpdate(ctx, q.CreatorID); err != nil {
		slog.ErrorContext(ctx, "quiz: apply creation update failed, scheduling reconciliation",
			"quiz_id", q.QuizID,
			"user_id", q.CreatorID,
			"error", err,
		)
		s.publish(ctx, domain.EventStatsDrifted{QuizID: q.QuizID, UserID: q.CreatorID})
	}

	return &q, nil
}

type UpdateQuizRequest struct {
	QuizID    string
	Requester domain.User
	Draft     Draft
}

// UpdateQuiz replaces the definition of a quiz. Only the creator or an admin may do so.
func (s *Service) UpdateQuiz(ctx context.Context, req UpdateQuizRequest) (*domain.Quiz, error) {
	q, err := s.authorize(ctx, req.QuizID, req.Requester)
	if err != nil {
		return nil, err
	}

	if err := req.Draft.Validate(); err != nil {
		return nil, err
	}

	req.Draft.apply(&q)
	q.UpdateTime = time.Now().UTC()

	if err := s.store.UpdateQuiz(ctx, q); err != nil {
		return nil, err
	}

	s.invalidate(ctx, q.QuizID)

	return &q, nil
}

type SetActiveRequest struct {
	QuizID    string
	Requester domain.User
	Active    bool
}

// SetActive soft-disables or re-enables a quiz. Quizzes are never hard-deleted so recorded
// scores keep a valid reference.
func (s *Service) SetActive(ctx context.Context, req SetActiveRequest) (*domain.Quiz, error) {
	q, err := s.authorize(ctx, req.QuizID, req.Requester)
	if err != nil {
		return nil, err
	}

	q.IsActive = req.Active
	q.UpdateTime = time.Now().UTC()

	if err := s.store.SetQuizActive(ctx, q.QuizID, q.IsActive, q.UpdateTime); err != nil {
		return nil, err
	}

	s.invalidate(ctx, q.QuizID)

	return &q, nil
}

func (s *Service) authorize(ctx context.Context, quizID string, u domain.User) (domain.Quiz, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	if !q.OwnedBy(u) {
		return domain.Quiz{}, errors.NotAuthorized("only the creator or an admin can modify quiz %s", quizID)
	}

	return q, nil
}

// GetQuiz returns the full definition including the answer key. Concurrent misses for the
// same quiz share a single store read.
func (s *Service) GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	var (
		version int64
		cached  = s.cache != nil
	)

	if cached {
		q, v, ok, err := s.cache.Get(ctx, quizID)
		if err != nil {
			slog.WarnContext(ctx, "quiz: read cache failed", "quiz_id", quizID, "error", err)
			cached = false
		}
		if ok {
			return &q, nil
		}
		version = v
	}

	v, err, _ := s.group.Do(quizID, func() (any, error) {
		q, err := s.store.GetQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}

		// Set is a no-op when the quiz was invalidated after version was read.
		if cached {
			if err := s.cache.Set(ctx, q, version); err != nil {
				slog.WarnContext(ctx, "quiz: fill cache failed", "quiz_id", quizID, "error", err)
			}
		}

		return q, nil
	})
	if err != nil {
		return nil, err
	}

	q := v.(domain.Quiz)
	return &q, nil
}

// GetAvailableQuiz returns a quiz that may be taken. Missing, private and inactive quizzes
// all fail the same way.
func (s *Service) GetAvailableQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	q, err := s.GetQuiz(ctx, quizID)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.QuizUnavailable(quizID)
	}
	if err != nil {
		return nil, err
	}

	if !q.Available() {
		return nil, errors.QuizUnavailable(quizID)
	}

	return q, nil
}

// GetQuizForTaking returns an available quiz with the answer key removed.
func (s *Service) GetQuizForTaking(ctx context.Context, quizID string) (*domain.Quiz, error) {
	q, err := s.GetAvailableQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	stripped := *q
	stripped.Questions = make([]domain.Question, 0, len(q.Questions))
	for _, qs := range q.Questions {
		stripped.Questions = append(stripped.Questions, domain.Question{
			Text:    qs.Text,
			Options: qs.Options,
			Points:  qs.Points,
		})
	}

	return &stripped, nil
}

type ListCreatedQuizzesRequest struct {
	Creator domain.User
	Limit   int
}

// ListCreatedQuizzes returns the quizzes authored by the requester, answer keys included.
// It reads the store directly so freshly deactivated quizzes show up as such.
func (s *Service) ListCreatedQuizzes(ctx context.Context, req ListCreatedQuizzesRequest) ([]domain.Quiz, error) {
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	return s.store.ListQuizzesByCreator(ctx, req.Creator.UserID, limit)
}

// GetQuizStats reads the aggregates from the store, bypassing the cache.
func (s *Service) GetQuizStats(ctx context.Context, quizID string) (*domain.QuizStats, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.QuizUnavailable(quizID)
	}
	if err != nil {
		return nil, err
	}

	if !q.Available() {
		return nil, errors.QuizUnavailable(quizID)
	}

	return &q.Stats, nil
}

func (s *Service) invalidate(ctx context.Context, quizID string) {
	// Later readers must not join a read that started before the write.
	s.group.Forget(quizID)

	if s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, quizID); err != nil {
		slog.ErrorContext(ctx, "quiz: invalidate cache failed", "quiz_id", quizID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
}
