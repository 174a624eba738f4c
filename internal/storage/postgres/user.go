package postgres

import (
	"context"

	"github.com/victornm/quizhub/internal/domain"
)

func (s *Store) InsertUser(ctx context.Context, u domain.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `INSERT INTO users (user_id, username, role, create_time) VALUES ($1, $2, $3, $4);`

	_, err := s.db.Exec(ctx, stmt, u.UserID, u.Username, string(u.Role), u.CreateTime)
	return convert(err, nil)
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const stmt = `
SELECT user_id, username, role, total_quizzes_taken, total_score, average_score, quizzes_created, create_time
FROM users
WHERE user_id = $1;`

	var (
		u    domain.User
		role string
	)
	err := s.db.QueryRow(ctx, stmt, userID).Scan(
		&u.UserID,
		&u.Username,
		&role,
		&u.Stats.TotalQuizzesTaken,
		&u.Stats.TotalScore,
		&u.Stats.AverageScore,
		&u.Stats.QuizzesCreated,
		&u.CreateTime,
	)
	if err != nil {
		return domain.User{}, convert(err, userNotFound(userID))
	}

	u.Role = domain.Role(role)
	u.CreateTime = u.CreateTime.UTC()
	return u, nil
}
