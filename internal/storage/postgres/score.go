package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizhub/internal/domain"
)

// answerRecord is the JSONB layout of an answer outcome.
type answerRecord struct {
	QuestionIndex  int  `json:"questionIndex"`
	SelectedAnswer int  `json:"selectedAnswer"`
	IsCorrect      bool `json:"isCorrect"`
	PointsEarned   int  `json:"pointsEarned"`
}

const (
	scoreColumns = `score_id, user_id, quiz_id, score, total_points, percentage, passed, time_taken, answers, completed_at`

	qualifiedScoreColumns = `scores.score_id, scores.user_id, scores.quiz_id, scores.score, scores.total_points,
	scores.percentage, scores.passed, scores.time_taken, scores.answers, scores.completed_at`

	overviewColumns = `
	COUNT(*),
	COALESCE(SUM(scores.score), 0),
	COALESCE(SUM(scores.total_points), 0),
	COALESCE(ROUND(AVG(scores.percentage), 2), 0),
	COUNT(*) FILTER (WHERE scores.passed),
	COALESCE(SUM(scores.time_taken), 0)`
)

func (s *Store) InsertScore(ctx context.Context, sc domain.Score) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `INSERT INTO scores (` + scoreColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	answers := make([]answerRecord, 0, len(sc.Answers))
	for _, a := range sc.Answers {
		answers = append(answers, answerRecord(a))
	}

	_, err := s.db.Exec(ctx, stmt,
		sc.ScoreID,
		sc.UserID,
		sc.QuizID,
		sc.Score,
		sc.TotalPoints,
		sc.Percentage,
		sc.Passed,
		sc.TimeTaken,
		answers,
		sc.CompletedAt,
	)
	return convert(err, nil)
}

func (s *Store) GetScore(ctx context.Context, scoreID string) (domain.Score, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `SELECT ` + scoreColumns + ` FROM scores WHERE score_id = $1;`

	sc, err := scanScore(s.db.QueryRow(ctx, stmt, scoreID))
	if err != nil {
		return domain.Score{}, convert(err, scoreNotFound("score not found: score=%s", scoreID))
	}

	return sc, nil
}

func (s *Store) ListUserScores(ctx context.Context, userID string, limit int) ([]domain.Score, error) {
	const stmt = `
SELECT ` + scoreColumns + `
FROM scores
WHERE user_id = $1
ORDER BY completed_at DESC
LIMIT $2;`

	return s.listScores(ctx, stmt, userID, limit)
}

func (s *Store) ListQuizLeaderboard(ctx context.Context, quizID string, limit int) ([]domain.Score, error) {
	const stmt = `
SELECT ` + scoreColumns + `
FROM scores
WHERE quiz_id = $1
ORDER BY score DESC, time_taken ASC, completed_at ASC
LIMIT $2;`

	return s.listScores(ctx, stmt, quizID, limit)
}

func (s *Store) GetBestScore(ctx context.Context, userID, quizID string) (domain.Score, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
SELECT ` + scoreColumns + `
FROM scores
WHERE user_id = $1 AND quiz_id = $2
ORDER BY score DESC, time_taken ASC, completed_at ASC
LIMIT 1;`

	sc, err := scanScore(s.db.QueryRow(ctx, stmt, userID, quizID))
	if err != nil {
		return domain.Score{}, convert(err, scoreNotFound("no score recorded: user=%s quiz=%s", userID, quizID))
	}

	return sc, nil
}

func (s *Store) SummarizeUserScores(ctx context.Context, userID string) (domain.ScoreOverview, error) {
	const stmt = `
SELECT ` + overviewColumns + `
FROM scores
WHERE user_id = $1;`

	return s.summarize(ctx, stmt, userID)
}

func (s *Store) SummarizeUserCategory(ctx context.Context, userID, category string) (domain.ScoreOverview, error) {
	const stmt = `
SELECT ` + overviewColumns + `
FROM scores
JOIN quizzes ON quizzes.quiz_id = scores.quiz_id
WHERE scores.user_id = $1 AND quizzes.category = $2;`

	return s.summarize(ctx, stmt, userID, category)
}

func (s *Store) ListUserCategoryStats(ctx context.Context, userID string, limit int) ([]domain.CategoryStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
SELECT quizzes.category, COUNT(*) AS attempts, ROUND(AVG(scores.percentage), 2)
FROM scores
JOIN quizzes ON quizzes.quiz_id = scores.quiz_id
WHERE scores.user_id = $1
GROUP BY quizzes.category
ORDER BY attempts DESC, quizzes.category ASC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, userID, limit)
	if err != nil {
		return nil, convert(err, nil)
	}

	stats, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.CategoryStats, error) {
		var st domain.CategoryStats
		err := r.Scan(&st.Category, &st.Attempts, &st.AveragePercentage)
		return st, err
	})
	if err != nil {
		return nil, convert(err, nil)
	}

	return stats, nil
}

func (s *Store) ListUserCategoryScores(ctx context.Context, userID, category string, limit int) ([]domain.Score, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
SELECT ` + qualifiedScoreColumns + `
FROM scores
JOIN quizzes ON quizzes.quiz_id = scores.quiz_id
WHERE scores.user_id = $1 AND quizzes.category = $2
ORDER BY scores.completed_at DESC
LIMIT $3;`

	rows, err := s.db.Query(ctx, stmt, userID, category, limit)
	if err != nil {
		return nil, convert(err, nil)
	}

	scores, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Score, error) {
		return scanScore(r)
	})
	if err != nil {
		return nil, convert(err, nil)
	}

	return scores, nil
}

func (s *Store) summarize(ctx context.Context, stmt string, args ...any) (domain.ScoreOverview, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o domain.ScoreOverview
	err := s.db.QueryRow(ctx, stmt, args...).Scan(
		&o.TotalQuizzes,
		&o.TotalScore,
		&o.TotalPoints,
		&o.AveragePercentage,
		&o.PassedQuizzes,
		&o.TotalTime,
	)
	if err != nil {
		return domain.ScoreOverview{}, convert(err, nil)
	}

	return o, nil
}

func (s *Store) listScores(ctx context.Context, stmt string, key string, limit int) ([]domain.Score, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, stmt, key, limit)
	if err != nil {
		return nil, convert(err, nil)
	}

	scores, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Score, error) {
		return scanScore(r)
	})
	if err != nil {
		return nil, convert(err, nil)
	}

	return scores, nil
}

func scanScore(r pgx.Row) (domain.Score, error) {
	var (
		sc      domain.Score
		answers []answerRecord
	)

	err := r.Scan(
		&sc.ScoreID,
		&sc.UserID,
		&sc.QuizID,
		&sc.Score,
		&sc.TotalPoints,
		&sc.Percentage,
		&sc.Passed,
		&sc.TimeTaken,
		&answers,
		&sc.CompletedAt,
	)
	if err != nil {
		return domain.Score{}, err
	}

	sc.Answers = make([]domain.AnswerOutcome, 0, len(answers))
	for _, a := range answers {
		sc.Answers = append(sc.Answers, domain.AnswerOutcome(a))
	}
	sc.CompletedAt = sc.CompletedAt.UTC()

	return sc, nil
}
