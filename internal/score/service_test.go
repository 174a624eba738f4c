package score_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/score"
	"github.com/victornm/quizhub/internal/scoring"
	"github.com/victornm/quizhub/internal/storage/memory"
)

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		QuizID:       "q1",
		PassingScore: 70,
		TimeLimit:    5,
		IsPublic:     true,
		IsActive:     true,
		Questions: []domain.Question{
			{Text: "A?", Options: []string{"a", "b"}, CorrectAnswer: 0, Points: 1},
			{Text: "B?", Options: []string{"a", "b", "c"}, CorrectAnswer: 2, Points: 2},
		},
	}
}

func evaluate(t *testing.T, answers []scoring.Answer, timeTaken int) scoring.Result {
	t.Helper()

	res, err := scoring.NewEngine(scoring.TimePolicyClamp).Evaluate(sampleQuiz(), answers, timeTaken)
	require.NoError(t, err)
	return res
}

func TestService_RecordScore(t *testing.T) {
	store := memory.New()
	eb := event.NewBus()

	var (
		mu       sync.Mutex
		recorded []domain.EventScoreRecorded
	)
	eb.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		recorded = append(recorded, e.(domain.EventScoreRecorded))
		mu.Unlock()
		return nil
	})

	s := score.NewService(score.Config{EventBus: eb, Store: store})

	res := evaluate(t, []scoring.Answer{{QuestionIndex: 0, SelectedAnswer: 0}, {QuestionIndex: 1, SelectedAnswer: 0}}, 42)

	sc, err := s.RecordScore(context.Background(), score.RecordScoreRequest{
		UserID: "u1",
		QuizID: "q1",
		Result: res,
	})
	require.NoError(t, err)
	eb.Stop()

	require.NotEmpty(t, sc.ScoreID)
	require.False(t, sc.CompletedAt.IsZero())
	require.Equal(t, 1, sc.Score)
	require.Equal(t, 3, sc.TotalPoints)
	require.Equal(t, 33, sc.Percentage)
	require.False(t, sc.Passed)
	require.Equal(t, 42, sc.TimeTaken)
	require.Len(t, sc.Answers, 2)

	stored, err := s.GetScore(context.Background(), sc.ScoreID)
	require.NoError(t, err)
	require.Equal(t, sc, stored)

	require.Len(t, recorded, 1)
	require.Equal(t, *sc, recorded[0].Score)
}

func TestService_RecordScore_StoreFailure(t *testing.T) {
	s := score.NewService(score.Config{Store: brokenStore{memory.New()}})

	_, err := s.RecordScore(context.Background(), score.RecordScoreRequest{
		UserID: "u1",
		QuizID: "q1",
		Result: evaluate(t, nil, 0),
	})
	require.True(t, errors.Is(err, errors.CodeUnavailable))
}

func TestService_Queries(t *testing.T) {
	store := memory.New()
	s := score.NewService(score.Config{Store: store})
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	insert := func(id, user string, points, timeTaken int, at time.Duration) {
		require.NoError(t, store.InsertScore(ctx, domain.Score{
			ScoreID:     id,
			UserID:      user,
			QuizID:      "q1",
			Score:       points,
			TotalPoints: 100,
			Percentage:  points,
			Passed:      points >= 70,
			TimeTaken:   timeTaken,
			CompletedAt: base.Add(at),
		}))
	}

	insert("sc1", "u1", 80, 120, 0)
	insert("sc2", "u2", 80, 90, time.Minute)
	insert("sc3", "u1", 60, 30, 2*time.Minute)
	insert("sc4", "u1", 80, 100, 3*time.Minute)

	tests := map[string]func(t *testing.T){
		"history should be most recent first": func(t *testing.T) {
			h, err := s.GetUserHistory(ctx, score.GetUserHistoryRequest{UserID: "u1"})
			require.NoError(t, err)
			require.Equal(t, []string{"sc4", "sc3", "sc1"}, ids(h))
		},
		"history should honour the limit": func(t *testing.T) {
			h, err := s.GetUserHistory(ctx, score.GetUserHistoryRequest{UserID: "u1", Limit: 1})
			require.NoError(t, err)
			require.Equal(t, []string{"sc4"}, ids(h))
		},
		"leaderboard should break ties by ascending time taken": func(t *testing.T) {
			l, err := s.GetLeaderboard(ctx, score.GetLeaderboardRequest{QuizID: "q1"})
			require.NoError(t, err)

			got := make([]string, 0, len(l.Entries))
			for _, e := range l.Entries {
				got = append(got, fmt.Sprintf("%d:%s", e.Rank, e.ScoreID))
			}
			require.Equal(t, []string{"1:sc2", "2:sc4", "3:sc1", "4:sc3"}, got)
		},
		"best score should prefer the faster of equal scores": func(t *testing.T) {
			b, err := s.GetBestScore(ctx, "u1", "q1")
			require.NoError(t, err)
			require.Equal(t, "sc4", b.ScoreID)
		},
		"best score should be not found without attempts": func(t *testing.T) {
			_, err := s.GetBestScore(ctx, "u3", "q1")
			require.True(t, errors.Is(err, errors.CodeNotFound))
		},
		"overview should summarise every attempt": func(t *testing.T) {
			o, err := s.GetOverview(ctx, "u1")
			require.NoError(t, err)
			require.EqualValues(t, 3, o.TotalQuizzes)
			require.EqualValues(t, 220, o.TotalScore)
			require.EqualValues(t, 300, o.TotalPoints)
			require.EqualValues(t, 2, o.PassedQuizzes)
			require.EqualValues(t, 250, o.TotalTime)
			require.Equal(t, "73.33", o.AveragePercentage.String())
			require.Equal(t, []string{"sc4", "sc3", "sc1"}, ids(o.RecentScores))
			require.Empty(t, o.Categories, "scores of unknown quizzes have no category")
		},
	}

	for name, tt := range tests {
		t.Run(name, tt)
	}
}

func TestService_Categories(t *testing.T) {
	store := memory.New()
	s := score.NewService(score.Config{Store: store})
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	for id, category := range map[string]string{"q1": "math", "q2": "math", "q3": "history"} {
		require.NoError(t, store.InsertQuiz(ctx, domain.Quiz{QuizID: id, Category: category, IsPublic: true, IsActive: true}))
	}

	insert := func(id, user, quizID string, pct int, at time.Duration) {
		require.NoError(t, store.InsertScore(ctx, domain.Score{
			ScoreID:     id,
			UserID:      user,
			QuizID:      quizID,
			Score:       pct,
			TotalPoints: 100,
			Percentage:  pct,
			Passed:      pct >= 70,
			TimeTaken:   10,
			CompletedAt: base.Add(at),
		}))
	}

	insert("sc1", "u1", "q1", 90, 0)
	insert("sc2", "u1", "q2", 45, time.Minute)
	insert("sc3", "u1", "q3", 70, 2*time.Minute)
	insert("sc4", "u1", "q1", 60, 3*time.Minute)
	insert("sc5", "u2", "q1", 100, 4*time.Minute)

	t.Run("overview should rank categories by attempts", func(t *testing.T) {
		o, err := s.GetOverview(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, o.Categories, 2)

		require.Equal(t, "math", o.Categories[0].Category)
		require.EqualValues(t, 3, o.Categories[0].Attempts)
		require.Equal(t, "65", o.Categories[0].AveragePercentage.String())

		require.Equal(t, "history", o.Categories[1].Category)
		require.EqualValues(t, 1, o.Categories[1].Attempts)
	})

	tests := map[string]struct {
		category string
		scores   []string
		total    int64
		passed   int64
		average  string
	}{
		"should only count quizzes of the category": {
			category: "math",
			scores:   []string{"sc4", "sc2", "sc1"},
			total:    3,
			passed:   1,
			average:  "65",
		},
		"should be empty for an unplayed category": {
			category: "art",
			scores:   []string{},
			average:  "0",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			o, err := s.GetCategoryOverview(ctx, score.GetCategoryOverviewRequest{UserID: "u1", Category: tt.category})
			require.NoError(t, err)
			require.Equal(t, tt.category, o.Category)
			require.Equal(t, tt.scores, ids(o.Scores))
			require.Equal(t, tt.total, o.Overview.TotalQuizzes)
			require.Equal(t, tt.passed, o.Overview.PassedQuizzes)
			require.Equal(t, tt.average, o.Overview.AveragePercentage.String())
		})
	}
}

func ids(scores []domain.Score) []string {
	res := make([]string, 0, len(scores))
	for _, sc := range scores {
		res = append(res, sc.ScoreID)
	}
	return res
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) InsertScore(context.Context, domain.Score) error {
	return errors.Persistence(context.DeadlineExceeded)
}
