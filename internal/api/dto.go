package api

import (
	"time"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/submission"
)

type (
	Quiz struct {
		QuizID       string     `json:"quizId"`
		CreatorID    string     `json:"creatorId"`
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Category     string     `json:"category"`
		Difficulty   string     `json:"difficulty"`
		Tags         []string   `json:"tags"`
		Questions    []Question `json:"questions"`
		TotalPoints  int        `json:"totalPoints"`
		TimeLimit    int        `json:"timeLimit"`
		PassingScore int        `json:"passingScore"`
		IsPublic     bool       `json:"isPublic"`
		IsActive     bool       `json:"isActive"`
		Stats        QuizStats  `json:"stats"`
		CreateTime   time.Time  `json:"createTime"`
		UpdateTime   time.Time  `json:"updateTime"`
	}

	// Question omits the answer key unless the caller may see it.
	Question struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		Points        int      `json:"points"`
		CorrectAnswer *int     `json:"correctAnswer,omitempty"`
		Explanation   string   `json:"explanation,omitempty"`
	}

	QuizStats struct {
		TotalAttempts int64  `json:"totalAttempts"`
		TotalScoreSum int64  `json:"totalScoreSum"`
		AverageScore  string `json:"averageScore"`
	}

	User struct {
		UserID     string    `json:"userId"`
		Username   string    `json:"username"`
		Role       string    `json:"role"`
		Stats      UserStats `json:"stats"`
		CreateTime time.Time `json:"createTime"`
	}

	UserStats struct {
		TotalQuizzesTaken int64  `json:"totalQuizzesTaken"`
		TotalScore        int64  `json:"totalScore"`
		AverageScore      string `json:"averageScore"`
		QuizzesCreated    int64  `json:"quizzesCreated"`
	}

	Answer struct {
		QuestionIndex  int  `json:"questionIndex"`
		SelectedAnswer int  `json:"selectedAnswer"`
		IsCorrect      bool `json:"isCorrect"`
		PointsEarned   int  `json:"pointsEarned"`
	}

	Score struct {
		ScoreID     string    `json:"scoreId"`
		UserID      string    `json:"userId"`
		QuizID      string    `json:"quizId"`
		Score       int       `json:"score"`
		TotalPoints int       `json:"totalPoints"`
		Percentage  int       `json:"percentage"`
		Passed      bool      `json:"passed"`
		TimeTaken   int       `json:"timeTaken"`
		Answers     []Answer  `json:"answers"`
		CompletedAt time.Time `json:"completedAt"`
	}

	SubmitRequest struct {
		Answers []struct {
			QuestionIndex  int `json:"questionIndex"`
			SelectedAnswer int `json:"selectedAnswer"`
		} `json:"answers"`
		TimeTaken int `json:"timeTaken"`
	}

	SubmitResponse struct {
		ScoreID     string   `json:"scoreId"`
		Score       int      `json:"score"`
		TotalPoints int      `json:"totalPoints"`
		Percentage  int      `json:"percentage"`
		Passed      bool     `json:"passed"`
		TimeTaken   int      `json:"timeTaken"`
		Answers     []Answer `json:"answers"`
	}

	AnswerDetail struct {
		QuestionIndex  int    `json:"questionIndex"`
		Question       string `json:"question"`
		SelectedAnswer string `json:"selectedAnswer"`
		CorrectAnswer  string `json:"correctAnswer"`
		Explanation    string `json:"explanation,omitempty"`
		IsCorrect      bool   `json:"isCorrect"`
		PointsEarned   int    `json:"pointsEarned"`
	}

	ScoreDetail struct {
		Score
		QuizTitle string         `json:"quizTitle"`
		Details   []AnswerDetail `json:"details"`
	}

	ScoreOverview struct {
		TotalQuizzes      int64  `json:"totalQuizzes"`
		TotalScore        int64  `json:"totalScore"`
		TotalPoints       int64  `json:"totalPoints"`
		AveragePercentage string `json:"averagePercentage"`
		PassedQuizzes     int64  `json:"passedQuizzes"`
		TotalTime         int64  `json:"totalTime"`

		CategoryStats []CategoryStats `json:"categoryStats,omitempty"`
		RecentScores  []Score         `json:"recentScores,omitempty"`
	}

	CategoryStats struct {
		Category          string `json:"category"`
		Attempts          int64  `json:"attempts"`
		AveragePercentage string `json:"averagePercentage"`
	}

	CategoryOverview struct {
		Category string        `json:"category"`
		Stats    ScoreOverview `json:"stats"`
		Scores   []Score       `json:"scores"`
	}

	Leaderboard struct {
		QuizID  string             `json:"quizId"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Rank        int       `json:"rank"`
		ScoreID     string    `json:"scoreId"`
		UserID      string    `json:"userId"`
		Score       int       `json:"score"`
		Percentage  int       `json:"percentage"`
		TimeTaken   int       `json:"timeTaken"`
		CompletedAt time.Time `json:"completedAt"`
	}
)

// toQuiz renders q. The answer key is included only when withKey is set.
func toQuiz(q domain.Quiz, withKey bool) Quiz {
	res := Quiz{
		QuizID:       q.QuizID,
		CreatorID:    q.CreatorID,
		Title:        q.Title,
		Description:  q.Description,
		Category:     q.Category,
		Difficulty:   string(q.Difficulty),
		Tags:         q.Tags,
		Questions:    make([]Question, 0, len(q.Questions)),
		TotalPoints:  q.TotalPoints(),
		TimeLimit:    q.TimeLimit,
		PassingScore: q.PassingScore,
		IsPublic:     q.IsPublic,
		IsActive:     q.IsActive,
		Stats:        toQuizStats(q.Stats),
		CreateTime:   q.CreateTime,
		UpdateTime:   q.UpdateTime,
	}

	if res.Tags == nil {
		res.Tags = []string{}
	}

	for _, qs := range q.Questions {
		question := Question{
			Question: qs.Text,
			Options:  qs.Options,
			Points:   qs.Points,
		}
		if withKey {
			correct := qs.CorrectAnswer
			question.CorrectAnswer = &correct
			question.Explanation = qs.Explanation
		}
		res.Questions = append(res.Questions, question)
	}

	return res
}

func toQuizStats(s domain.QuizStats) QuizStats {
	return QuizStats{
		TotalAttempts: s.TotalAttempts,
		TotalScoreSum: s.TotalScoreSum,
		AverageScore:  s.AverageScore.StringFixed(2),
	}
}

func toUser(u domain.User) User {
	return User{
		UserID:   u.UserID,
		Username: u.Username,
		Role:     string(u.Role),
		Stats: UserStats{
			TotalQuizzesTaken: u.Stats.TotalQuizzesTaken,
			TotalScore:        u.Stats.TotalScore,
			AverageScore:      u.Stats.AverageScore.StringFixed(2),
			QuizzesCreated:    u.Stats.QuizzesCreated,
		},
		CreateTime: u.CreateTime,
	}
}

func toAnswers(as []domain.AnswerOutcome) []Answer {
	res := make([]Answer, 0, len(as))
	for _, a := range as {
		res = append(res, Answer(a))
	}
	return res
}

func toScore(sc domain.Score) Score {
	return Score{
		ScoreID:     sc.ScoreID,
		UserID:      sc.UserID,
		QuizID:      sc.QuizID,
		Score:       sc.Score,
		TotalPoints: sc.TotalPoints,
		Percentage:  sc.Percentage,
		Passed:      sc.Passed,
		TimeTaken:   sc.TimeTaken,
		Answers:     toAnswers(sc.Answers),
		CompletedAt: sc.CompletedAt,
	}
}

func toScores(scs []domain.Score) []Score {
	res := make([]Score, 0, len(scs))
	for _, sc := range scs {
		res = append(res, toScore(sc))
	}
	return res
}

func toSubmitResponse(r submission.SubmitResponse) SubmitResponse {
	return SubmitResponse{
		ScoreID:     r.ScoreID,
		Score:       r.Score,
		TotalPoints: r.TotalPoints,
		Percentage:  r.Percentage,
		Passed:      r.Passed,
		TimeTaken:   r.TimeTaken,
		Answers:     toAnswers(r.Answers),
	}
}

func toScoreDetail(d submission.ScoreDetail) ScoreDetail {
	res := ScoreDetail{
		Score:     toScore(d.Score),
		QuizTitle: d.Title,
		Details:   make([]AnswerDetail, 0, len(d.Answers)),
	}

	for _, a := range d.Answers {
		res.Details = append(res.Details, AnswerDetail(a))
	}

	return res
}

func toScoreOverview(o domain.ScoreOverview) ScoreOverview {
	res := ScoreOverview{
		TotalQuizzes:      o.TotalQuizzes,
		TotalScore:        o.TotalScore,
		TotalPoints:       o.TotalPoints,
		AveragePercentage: o.AveragePercentage.StringFixed(2),
		PassedQuizzes:     o.PassedQuizzes,
		TotalTime:         o.TotalTime,
	}

	if o.Categories != nil {
		res.CategoryStats = make([]CategoryStats, 0, len(o.Categories))
		for _, cs := range o.Categories {
			res.CategoryStats = append(res.CategoryStats, CategoryStats{
				Category:          cs.Category,
				Attempts:          cs.Attempts,
				AveragePercentage: cs.AveragePercentage.StringFixed(2),
			})
		}
	}

	if o.RecentScores != nil {
		res.RecentScores = toScores(o.RecentScores)
	}

	return res
}

func toCategoryOverview(o domain.CategoryOverview) CategoryOverview {
	return CategoryOverview{
		Category: o.Category,
		Stats:    toScoreOverview(o.Overview),
		Scores:   toScores(o.Scores),
	}
}

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	res := Leaderboard{
		QuizID:  l.QuizID,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		res.Entries = append(res.Entries, LeaderboardEntry(e))
	}

	return res
}
