package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Quiz is an authored set of multiple-choice questions with its scoring rules.
type Quiz struct {
	QuizID       string
	CreatorID    string
	Title        string
	Description  string
	Category     string
	Difficulty   Difficulty
	Tags         []string
	Questions    []Question
	TimeLimit    int // minutes
	PassingScore int // percentage
	IsPublic     bool
	IsActive     bool
	Stats        QuizStats
	CreateTime   time.Time
	UpdateTime   time.Time
}

// TotalPoints is derived from the questions and never stored.
func (q Quiz) TotalPoints() int {
	var total int
	for _, qs := range q.Questions {
		total += qs.Points
	}
	return total
}

// Available reports whether the quiz can be fetched for taking and submitted to.
func (q Quiz) Available() bool {
	return q.IsPublic && q.IsActive
}

func (q Quiz) TimeLimitSeconds() int {
	return q.TimeLimit * 60
}

// OwnedBy reports whether u may mutate the quiz.
func (q Quiz) OwnedBy(u User) bool {
	return u.IsAdmin() || q.CreatorID == u.UserID
}

type Question struct {
	Text          string
	Options       []string
	CorrectAnswer int
	Explanation   string
	Points        int
}

// QuizStats are cached aggregates; the score ledger is the source of truth.
type QuizStats struct {
	TotalAttempts int64
	TotalScoreSum int64
	AverageScore  decimal.Decimal
}

type User struct {
	UserID     string
	Username   string
	Role       Role
	Stats      UserStats
	CreateTime time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type UserStats struct {
	TotalQuizzesTaken int64
	TotalScore        int64
	AverageScore      decimal.Decimal
	QuizzesCreated    int64
}

// Score is an immutable record of one user's attempt at one quiz.
type Score struct {
	ScoreID     string
	UserID      string
	QuizID      string
	Score       int
	TotalPoints int
	Percentage  int
	Passed      bool
	TimeTaken   int // seconds
	Answers     []AnswerOutcome
	CompletedAt time.Time
}

type AnswerOutcome struct {
	QuestionIndex  int
	SelectedAnswer int
	IsCorrect      bool
	PointsEarned   int
}

// ScoreOverview summarises every score a user has recorded.
type ScoreOverview struct {
	TotalQuizzes      int64
	TotalScore        int64
	TotalPoints       int64
	AveragePercentage decimal.Decimal
	PassedQuizzes     int64
	TotalTime         int64

	// Categories and RecentScores are only set on a user's full overview.
	Categories   []CategoryStats
	RecentScores []Score
}

// CategoryStats counts a user's attempts on the quizzes of one category.
type CategoryStats struct {
	Category          string
	Attempts          int64
	AveragePercentage decimal.Decimal
}

// CategoryOverview is a user's overview restricted to one category, with the scores behind it.
type CategoryOverview struct {
	Category string
	Overview ScoreOverview
	Scores   []Score
}

// Leaderboard lists scores of a quiz by score descending, then by time taken ascending.
type Leaderboard struct {
	QuizID  string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Rank        int
	ScoreID     string
	UserID      string
	Score       int
	Percentage  int
	TimeTaken   int
	CompletedAt time.Time
}
