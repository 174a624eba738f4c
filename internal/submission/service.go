// Package submission runs the quiz-taking pipeline: evaluate the answers, record the score,
// then fold it into the quiz and user aggregates.
package submission

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/quiz"
	"github.com/victornm/quizhub/internal/score"
	"github.com/victornm/quizhub/internal/scoring"
	"github.com/victornm/quizhub/internal/stats"
)

var (
	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizhub",
		Subsystem: "submission",
		Name:      "total",
		Help:      "Number of quiz submissions by outcome.",
	}, []string{"outcome"})

	reconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizhub",
		Subsystem: "submission",
		Name:      "reconciliations_total",
		Help:      "Number of recorded scores whose aggregate update failed and needs reconciliation.",
	})
)

type Config struct {
	EventBus *event.Bus
	Engine   *scoring.Engine
	Quiz     *quiz.Service
	Score    *score.Service
	Stats    *stats.Service
}

type Service struct {
	eb     *event.Bus
	engine *scoring.Engine
	quiz   *quiz.Service
	score  *score.Service
	stats  *stats.Service
}

func NewService(c Config) *Service {
	return &Service{
		eb:     c.EventBus,
		engine: c.Engine,
		quiz:   c.Quiz,
		score:  c.Score,
		stats:  c.Stats,
	}
}

type SubmitRequest struct {
	QuizID    string
	User      domain.User
	Answers   []scoring.Answer
	TimeTaken int
}

type SubmitResponse struct {
	ScoreID     string
	Score       int
	TotalPoints int
	Percentage  int
	Passed      bool
	TimeTaken   int
	Answers     []domain.AnswerOutcome
}

// Submit scores an attempt and records it. Once the score is recorded the attempt is
// final: a failing aggregate update is reported for reconciliation and the result is
// still returned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	q, err := s.quiz.GetAvailableQuiz(ctx, req.QuizID)
	if err != nil {
		submissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	res, err := s.engine.Evaluate(*q, req.Answers, req.TimeTaken)
	if err != nil {
		submissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if ignored := res.Ignored(); len(ignored) > 0 {
		slog.WarnContext(ctx, "submission: answers ignored",
			"quiz_id", q.QuizID,
			"user_id", req.User.UserID,
			"positions", ignored,
		)
	}

	sc, err := s.score.RecordScore(ctx, score.RecordScoreRequest{
		UserID: req.User.UserID,
		QuizID: q.QuizID,
		Result: res,
	})
	if err != nil {
		submissions.WithLabelValues("failed").Inc()
		return nil, err
	}

	if _, err := s.stats.ApplyScoreUpdate(ctx, sc.QuizID, sc.UserID, sc.Score); err != nil {
		reconciliations.Inc()
		slog.ErrorContext(ctx, "submission: aggregate update failed, scheduling reconciliation",
			"reconciliation", true,
			"score_id", sc.ScoreID,
			"quiz_id", sc.QuizID,
			"user_id", sc.UserID,
			"error", err,
		)

		if s.eb != nil {
			s.eb.Publish(ctx, domain.EventStatsDrifted{
				ScoreID: sc.ScoreID,
				QuizID:  sc.QuizID,
				UserID:  sc.UserID,
			})
		}
	}

	submissions.WithLabelValues("recorded").Inc()

	return &SubmitResponse{
		ScoreID:     sc.ScoreID,
		Score:       sc.Score,
		TotalPoints: sc.TotalPoints,
		Percentage:  sc.Percentage,
		Passed:      sc.Passed,
		TimeTaken:   sc.TimeTaken,
		Answers:     sc.Answers,
	}, nil
}

type GetScoreDetailRequest struct {
	ScoreID   string
	Requester domain.User
}

type ScoreDetail struct {
	Score   domain.Score
	Title   string
	Answers []AnswerDetail
}

// AnswerDetail resolves an answer outcome against the quiz text. Texts are blank when the
// recorded index no longer points into the quiz.
type AnswerDetail struct {
	QuestionIndex  int
	Question       string
	SelectedAnswer string
	CorrectAnswer  string
	Explanation    string
	IsCorrect      bool
	PointsEarned   int
}

// GetScoreDetail returns the per-question breakdown of a score to its owner or an admin.
func (s *Service) GetScoreDetail(ctx context.Context, req GetScoreDetailRequest) (*ScoreDetail, error) {
	sc, err := s.score.GetScore(ctx, req.ScoreID)
	if err != nil {
		return nil, err
	}

	if sc.UserID != req.Requester.UserID && !req.Requester.IsAdmin() {
		return nil, errors.NotAuthorized("score %s belongs to another user", req.ScoreID)
	}

	q, err := s.quiz.GetQuiz(ctx, sc.QuizID)
	if err != nil {
		return nil, err
	}

	d := &ScoreDetail{
		Score:   *sc,
		Title:   q.Title,
		Answers: make([]AnswerDetail, 0, len(sc.Answers)),
	}

	for _, a := range sc.Answers {
		ad := AnswerDetail{
			QuestionIndex: a.QuestionIndex,
			IsCorrect:     a.IsCorrect,
			PointsEarned:  a.PointsEarned,
		}

		if a.QuestionIndex >= 0 && a.QuestionIndex < len(q.Questions) {
			qs := q.Questions[a.QuestionIndex]
			ad.Question = qs.Text
			ad.SelectedAnswer = option(qs.Options, a.SelectedAnswer)
			ad.CorrectAnswer = option(qs.Options, qs.CorrectAnswer)
			ad.Explanation = qs.Explanation
		}

		d.Answers = append(d.Answers, ad)
	}

	return d, nil
}

func option(options []string, i int) string {
	if i < 0 || i >= len(options) {
		return ""
	}
	return options[i]
}
