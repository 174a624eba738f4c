package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizhub/internal/domain"
)

func (s *Store) IncrementQuizStats(ctx context.Context, quizID string, points int) (domain.QuizStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Right-hand sides see the row before the update.
	const stmt = `
UPDATE quizzes
SET total_attempts  = total_attempts + 1,
	total_score_sum = total_score_sum + $2,
	average_score   = ROUND((total_score_sum + $2)::numeric / (total_attempts + 1), 4)
WHERE quiz_id = $1
RETURNING total_attempts, total_score_sum, average_score;`

	var st domain.QuizStats
	err := s.db.QueryRow(ctx, stmt, quizID, int64(points)).Scan(&st.TotalAttempts, &st.TotalScoreSum, &st.AverageScore)
	if err != nil {
		return domain.QuizStats{}, convert(err, quizNotFound(quizID))
	}

	return st, nil
}

func (s *Store) IncrementUserStats(ctx context.Context, userID string, points int) (domain.UserStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
UPDATE users
SET total_quizzes_taken = total_quizzes_taken + 1,
	total_score         = total_score + $2,
	average_score       = ROUND((total_score + $2)::numeric / (total_quizzes_taken + 1), 4)
WHERE user_id = $1
RETURNING total_quizzes_taken, total_score, average_score, quizzes_created;`

	st, err := scanUserStats(s.db.QueryRow(ctx, stmt, userID, int64(points)))
	if err != nil {
		return domain.UserStats{}, convert(err, userNotFound(userID))
	}

	return st, nil
}

func (s *Store) IncrementQuizzesCreated(ctx context.Context, userID string) (domain.UserStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
UPDATE users
SET quizzes_created = quizzes_created + 1
WHERE user_id = $1
RETURNING total_quizzes_taken, total_score, average_score, quizzes_created;`

	st, err := scanUserStats(s.db.QueryRow(ctx, stmt, userID))
	if err != nil {
		return domain.UserStats{}, convert(err, userNotFound(userID))
	}

	return st, nil
}

const (
	rebuildQuizStatsStmt = `
UPDATE quizzes q
SET total_attempts  = a.n,
	total_score_sum = a.s,
	average_score   = CASE WHEN a.n = 0 THEN 0 ELSE ROUND(a.s::numeric / a.n, 4) END
FROM (
	SELECT qz.quiz_id, COUNT(sc.score_id) AS n, COALESCE(SUM(sc.score), 0) AS s
	FROM quizzes qz
	LEFT JOIN scores sc ON sc.quiz_id = qz.quiz_id
	WHERE $1::text IS NULL OR qz.quiz_id = $1
	GROUP BY qz.quiz_id
) a
WHERE q.quiz_id = a.quiz_id
RETURNING q.total_attempts, q.total_score_sum, q.average_score;`

	rebuildUserStatsStmt = `
UPDATE users u
SET total_quizzes_taken = a.n,
	total_score         = a.s,
	average_score       = CASE WHEN a.n = 0 THEN 0 ELSE ROUND(a.s::numeric / a.n, 4) END,
	quizzes_created     = (SELECT COUNT(*) FROM quizzes qz WHERE qz.creator_id = u.user_id)
FROM (
	SELECT us.user_id, COUNT(sc.score_id) AS n, COALESCE(SUM(sc.score), 0) AS s
	FROM users us
	LEFT JOIN scores sc ON sc.user_id = us.user_id
	WHERE $1::text IS NULL OR us.user_id = $1
	GROUP BY us.user_id
) a
WHERE u.user_id = a.user_id
RETURNING u.total_quizzes_taken, u.total_score, u.average_score, u.quizzes_created;`
)

// RebuildQuizStats recomputes the aggregates of one quiz from the ledger.
func (s *Store) RebuildQuizStats(ctx context.Context, quizID string) (domain.QuizStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var st domain.QuizStats
	err := s.db.QueryRow(ctx, rebuildQuizStatsStmt, quizID).Scan(&st.TotalAttempts, &st.TotalScoreSum, &st.AverageScore)
	if err != nil {
		return domain.QuizStats{}, convert(err, quizNotFound(quizID))
	}

	return st, nil
}

// RebuildUserStats recomputes the aggregates of one user from the ledger and the quizzes table.
func (s *Store) RebuildUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st, err := scanUserStats(s.db.QueryRow(ctx, rebuildUserStatsStmt, userID))
	if err != nil {
		return domain.UserStats{}, convert(err, userNotFound(userID))
	}

	return st, nil
}

// RebuildAllStats recomputes every aggregate in one transaction. A full rebuild scans the
// whole ledger, so it is not bounded by the per-call timeout.
func (s *Store) RebuildAllStats(ctx context.Context) (quizzes, users int64, err error) {
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, rebuildQuizStatsStmt, nil)
		if err != nil {
			return fmt.Errorf("quizzes: %w", err)
		}
		quizzes = tag.RowsAffected()

		tag, err = tx.Exec(ctx, rebuildUserStatsStmt, nil)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		users = tag.RowsAffected()

		return nil
	})
	if err != nil {
		return 0, 0, convert(err, nil)
	}

	return quizzes, users, nil
}

func scanUserStats(r pgx.Row) (domain.UserStats, error) {
	var st domain.UserStats
	err := r.Scan(&st.TotalQuizzesTaken, &st.TotalScore, &st.AverageScore, &st.QuizzesCreated)
	return st, err
}
