// Package memory is an in-process storage adapter. It serializes every operation behind one
// mutex, which makes each increment atomic the same way a single SQL UPDATE is.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
)

const averagePlaces = 4

type Store struct {
	mu      sync.Mutex
	users   map[string]domain.User
	quizzes map[string]domain.Quiz
	scores  []domain.Score
}

func New() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		quizzes: make(map[string]domain.Quiz),
	}
}

func (s *Store) InsertUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("user already exists: username=%s", u.Username))
		}
	}
	if _, ok := s.users[u.UserID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("user already exists: user=%s", u.UserID))
	}

	s.users[u.UserID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, userNotFound(userID)
	}
	return u, nil
}

func (s *Store) InsertQuiz(_ context.Context, q domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[q.QuizID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("quiz already exists: quiz=%s", q.QuizID))
	}

	s.quizzes[q.QuizID] = cloneQuiz(q)
	return nil
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, quizNotFound(quizID)
	}
	return cloneQuiz(q), nil
}

func (s *Store) ListQuizzesByCreator(_ context.Context, creatorID string, limit int) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := []domain.Quiz{}
	for _, q := range s.quizzes {
		if q.CreatorID == creatorID {
			res = append(res, cloneQuiz(q))
		}
	}

	slices.SortFunc(res, func(a, b domain.Quiz) int {
		return cmp.Or(
			b.CreateTime.Compare(a.CreateTime),
			cmp.Compare(a.QuizID, b.QuizID),
		)
	})

	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) UpdateQuiz(_ context.Context, q domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.quizzes[q.QuizID]
	if !ok {
		return quizNotFound(q.QuizID)
	}

	q.CreatorID = stored.CreatorID
	q.IsActive = stored.IsActive
	q.Stats = stored.Stats
	q.CreateTime = stored.CreateTime
	s.quizzes[q.QuizID] = cloneQuiz(q)
	return nil
}

func (s *Store) SetQuizActive(_ context.Context, quizID string, active bool, updateTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return quizNotFound(quizID)
	}

	q.IsActive = active
	q.UpdateTime = updateTime
	s.quizzes[quizID] = q
	return nil
}

func (s *Store) InsertScore(_ context.Context, sc domain.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.scores {
		if existing.ScoreID == sc.ScoreID {
			return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("score already exists: score=%s", sc.ScoreID))
		}
	}

	sc.Answers = slices.Clone(sc.Answers)
	s.scores = append(s.scores, sc)
	return nil
}

func (s *Store) GetScore(_ context.Context, scoreID string) (domain.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range s.scores {
		if sc.ScoreID == scoreID {
			return cloneScore(sc), nil
		}
	}
	return domain.Score{}, errors.New(errors.CodeNotFound, errors.WithMessagef("score not found: score=%s", scoreID))
}

func (s *Store) ListUserScores(_ context.Context, userID string, limit int) ([]domain.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(func(sc domain.Score) bool { return sc.UserID == userID })
	slices.SortStableFunc(res, func(a, b domain.Score) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})

	return truncate(res, limit), nil
}

func (s *Store) ListQuizLeaderboard(_ context.Context, quizID string, limit int) ([]domain.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(func(sc domain.Score) bool { return sc.QuizID == quizID })
	slices.SortStableFunc(res, rankOrder)

	return truncate(res, limit), nil
}

func (s *Store) GetBestScore(_ context.Context, userID, quizID string) (domain.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(func(sc domain.Score) bool { return sc.UserID == userID && sc.QuizID == quizID })
	if len(res) == 0 {
		return domain.Score{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no score recorded: user=%s quiz=%s", userID, quizID))
	}

	return slices.MinFunc(res, rankOrder), nil
}

func (s *Store) SummarizeUserScores(_ context.Context, userID string) (domain.ScoreOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return summarize(s.filter(func(sc domain.Score) bool { return sc.UserID == userID })), nil
}

func (s *Store) SummarizeUserCategory(_ context.Context, userID, category string) (domain.ScoreOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return summarize(s.filter(s.inCategory(userID, category))), nil
}

func (s *Store) ListUserCategoryStats(_ context.Context, userID string, limit int) ([]domain.CategoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type acc struct {
		attempts, pctTotal int64
	}

	byCategory := make(map[string]*acc)
	for _, sc := range s.scores {
		q, ok := s.quizzes[sc.QuizID]
		if sc.UserID != userID || !ok {
			continue
		}

		a := byCategory[q.Category]
		if a == nil {
			a = new(acc)
			byCategory[q.Category] = a
		}
		a.attempts++
		a.pctTotal += int64(sc.Percentage)
	}

	res := make([]domain.CategoryStats, 0, len(byCategory))
	for category, a := range byCategory {
		res = append(res, domain.CategoryStats{
			Category:          category,
			Attempts:          a.attempts,
			AveragePercentage: average(a.pctTotal, a.attempts).Round(2),
		})
	}

	slices.SortFunc(res, func(a, b domain.CategoryStats) int {
		return cmp.Or(
			cmp.Compare(b.Attempts, a.Attempts),
			cmp.Compare(a.Category, b.Category),
		)
	})

	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) ListUserCategoryScores(_ context.Context, userID, category string, limit int) ([]domain.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(s.inCategory(userID, category))
	slices.SortStableFunc(res, func(a, b domain.Score) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})

	return truncate(res, limit), nil
}

// inCategory matches the scores of a user on stored quizzes of category.
func (s *Store) inCategory(userID, category string) func(domain.Score) bool {
	return func(sc domain.Score) bool {
		q, ok := s.quizzes[sc.QuizID]
		return ok && sc.UserID == userID && q.Category == category
	}
}

func summarize(scores []domain.Score) domain.ScoreOverview {
	var (
		o        domain.ScoreOverview
		pctTotal int64
	)
	for _, sc := range scores {
		o.TotalQuizzes++
		o.TotalScore += int64(sc.Score)
		o.TotalPoints += int64(sc.TotalPoints)
		o.TotalTime += int64(sc.TimeTaken)
		pctTotal += int64(sc.Percentage)
		if sc.Passed {
			o.PassedQuizzes++
		}
	}

	o.AveragePercentage = average(pctTotal, o.TotalQuizzes).Round(2)
	return o
}

func (s *Store) IncrementQuizStats(_ context.Context, quizID string, points int) (domain.QuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizStats{}, quizNotFound(quizID)
	}

	q.Stats.TotalAttempts++
	q.Stats.TotalScoreSum += int64(points)
	q.Stats.AverageScore = average(q.Stats.TotalScoreSum, q.Stats.TotalAttempts)
	s.quizzes[quizID] = q

	return q.Stats, nil
}

func (s *Store) IncrementUserStats(_ context.Context, userID string, points int) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.UserStats{}, userNotFound(userID)
	}

	u.Stats.TotalQuizzesTaken++
	u.Stats.TotalScore += int64(points)
	u.Stats.AverageScore = average(u.Stats.TotalScore, u.Stats.TotalQuizzesTaken)
	s.users[userID] = u

	return u.Stats, nil
}

func (s *Store) IncrementQuizzesCreated(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.UserStats{}, userNotFound(userID)
	}

	u.Stats.QuizzesCreated++
	s.users[userID] = u

	return u.Stats, nil
}

func (s *Store) RebuildQuizStats(_ context.Context, quizID string) (domain.QuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizStats{}, quizNotFound(quizID)
	}

	q.Stats = s.quizStats(quizID)
	s.quizzes[quizID] = q

	return q.Stats, nil
}

func (s *Store) RebuildUserStats(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.UserStats{}, userNotFound(userID)
	}

	u.Stats = s.userStats(userID)
	s.users[userID] = u

	return u.Stats, nil
}

func (s *Store) RebuildAllStats(_ context.Context) (quizzes, users int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, q := range s.quizzes {
		q.Stats = s.quizStats(id)
		s.quizzes[id] = q
		quizzes++
	}

	for id, u := range s.users {
		u.Stats = s.userStats(id)
		s.users[id] = u
		users++
	}

	return quizzes, users, nil
}

func (s *Store) quizStats(quizID string) domain.QuizStats {
	var st domain.QuizStats
	for _, sc := range s.scores {
		if sc.QuizID == quizID {
			st.TotalAttempts++
			st.TotalScoreSum += int64(sc.Score)
		}
	}
	st.AverageScore = average(st.TotalScoreSum, st.TotalAttempts)
	return st
}

func (s *Store) userStats(userID string) domain.UserStats {
	var st domain.UserStats
	for _, sc := range s.scores {
		if sc.UserID == userID {
			st.TotalQuizzesTaken++
			st.TotalScore += int64(sc.Score)
		}
	}
	for _, q := range s.quizzes {
		if q.CreatorID == userID {
			st.QuizzesCreated++
		}
	}
	st.AverageScore = average(st.TotalScore, st.TotalQuizzesTaken)
	return st
}

func (s *Store) filter(keep func(domain.Score) bool) []domain.Score {
	var res []domain.Score
	for _, sc := range s.scores {
		if keep(sc) {
			res = append(res, cloneScore(sc))
		}
	}
	return res
}

func rankOrder(a, b domain.Score) int {
	return cmp.Or(
		cmp.Compare(b.Score, a.Score),
		cmp.Compare(a.TimeTaken, b.TimeTaken),
		a.CompletedAt.Compare(b.CompletedAt),
	)
}

func average(sum, n int64) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(n), averagePlaces)
}

func truncate(scores []domain.Score, limit int) []domain.Score {
	if limit > 0 && len(scores) > limit {
		return scores[:limit]
	}
	if scores == nil {
		return []domain.Score{}
	}
	return scores
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Tags = slices.Clone(q.Tags)
	q.Questions = slices.Clone(q.Questions)
	for i := range q.Questions {
		q.Questions[i].Options = slices.Clone(q.Questions[i].Options)
	}
	return q
}

func cloneScore(sc domain.Score) domain.Score {
	sc.Answers = slices.Clone(sc.Answers)
	return sc
}

func quizNotFound(quizID string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: quiz=%s", quizID))
}

func userNotFound(userID string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: user=%s", userID))
}
