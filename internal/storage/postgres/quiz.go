package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizhub/internal/domain"
)

// questionRecord is the JSONB layout of a question.
type questionRecord struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Points        int      `json:"points"`
}

func toQuestionRecords(qs []domain.Question) []questionRecord {
	res := make([]questionRecord, 0, len(qs))
	for _, q := range qs {
		res = append(res, questionRecord{
			Question:      q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Points:        q.Points,
		})
	}
	return res
}

func fromQuestionRecords(rs []questionRecord) []domain.Question {
	res := make([]domain.Question, 0, len(rs))
	for _, r := range rs {
		res = append(res, domain.Question{
			Text:          r.Question,
			Options:       r.Options,
			CorrectAnswer: r.CorrectAnswer,
			Explanation:   r.Explanation,
			Points:        r.Points,
		})
	}
	return res
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (s *Store) InsertQuiz(ctx context.Context, q domain.Quiz) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
INSERT INTO quizzes (
	quiz_id, creator_id, title, description, category, difficulty, tags, questions,
	time_limit, passing_score, is_public, is_active, create_time, update_time
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`

	_, err := s.db.Exec(ctx, stmt,
		q.QuizID,
		q.CreatorID,
		q.Title,
		q.Description,
		q.Category,
		string(q.Difficulty),
		nonNil(q.Tags),
		toQuestionRecords(q.Questions),
		q.TimeLimit,
		q.PassingScore,
		q.IsPublic,
		q.IsActive,
		q.CreateTime,
		q.UpdateTime,
	)
	return convert(err, nil)
}

const quizColumns = `quiz_id, creator_id, title, description, category, difficulty, tags, questions,
	time_limit, passing_score, is_public, is_active,
	total_attempts, total_score_sum, average_score, create_time, update_time`

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE quiz_id = $1;`

	q, err := scanQuiz(s.db.QueryRow(ctx, stmt, quizID))
	if err != nil {
		return domain.Quiz{}, convert(err, quizNotFound(quizID))
	}

	return q, nil
}

// ListQuizzesByCreator returns every quiz of a creator, inactive ones included, newest first.
func (s *Store) ListQuizzesByCreator(ctx context.Context, creatorID string, limit int) ([]domain.Quiz, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
SELECT ` + quizColumns + `
FROM quizzes
WHERE creator_id = $1
ORDER BY create_time DESC, quiz_id ASC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, creatorID, limit)
	if err != nil {
		return nil, convert(err, nil)
	}

	quizzes, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		return scanQuiz(r)
	})
	if err != nil {
		return nil, convert(err, nil)
	}

	return quizzes, nil
}

func scanQuiz(r pgx.Row) (domain.Quiz, error) {
	var (
		q          domain.Quiz
		difficulty string
		questions  []questionRecord
	)
	err := r.Scan(
		&q.QuizID,
		&q.CreatorID,
		&q.Title,
		&q.Description,
		&q.Category,
		&difficulty,
		&q.Tags,
		&questions,
		&q.TimeLimit,
		&q.PassingScore,
		&q.IsPublic,
		&q.IsActive,
		&q.Stats.TotalAttempts,
		&q.Stats.TotalScoreSum,
		&q.Stats.AverageScore,
		&q.CreateTime,
		&q.UpdateTime,
	)
	if err != nil {
		return domain.Quiz{}, err
	}

	q.Difficulty = domain.Difficulty(difficulty)
	q.Questions = fromQuestionRecords(questions)
	q.CreateTime = q.CreateTime.UTC()
	q.UpdateTime = q.UpdateTime.UTC()
	return q, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, q domain.Quiz) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
UPDATE quizzes
SET title = $2, description = $3, category = $4, difficulty = $5, tags = $6, questions = $7,
	time_limit = $8, passing_score = $9, is_public = $10, update_time = $11
WHERE quiz_id = $1;`

	tag, err := s.db.Exec(ctx, stmt,
		q.QuizID,
		q.Title,
		q.Description,
		q.Category,
		string(q.Difficulty),
		nonNil(q.Tags),
		toQuestionRecords(q.Questions),
		q.TimeLimit,
		q.PassingScore,
		q.IsPublic,
		q.UpdateTime,
	)
	if err != nil {
		return convert(err, nil)
	}

	if tag.RowsAffected() == 0 {
		return quizNotFound(q.QuizID)()
	}

	return nil
}

func (s *Store) SetQuizActive(ctx context.Context, quizID string, active bool, updateTime time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `UPDATE quizzes SET is_active = $2, update_time = $3 WHERE quiz_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, quizID, active, updateTime)
	if err != nil {
		return convert(err, nil)
	}

	if tag.RowsAffected() == 0 {
		return quizNotFound(quizID)()
	}

	return nil
}
