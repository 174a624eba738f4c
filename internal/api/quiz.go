package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizhub/internal/leaderboard"
	"github.com/victornm/quizhub/internal/quiz"
	"github.com/victornm/quizhub/internal/scoring"
	"github.com/victornm/quizhub/internal/submission"
)

func (a *API) CreateQuiz(c *gin.Context) {
	var d quiz.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		renderError(c, bindError(err))
		return
	}

	q, err := a.qs.CreateQuiz(c.Request.Context(), quiz.CreateQuizRequest{
		Creator: currentUser(c),
		Draft:   d,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuiz(*q, true))
}

// ListMyQuizzes lists the quizzes authored by the caller with their answer keys.
func (a *API) ListMyQuizzes(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		renderError(c, err)
		return
	}

	qs, err := a.qs.ListCreatedQuizzes(c.Request.Context(), quiz.ListCreatedQuizzesRequest{
		Creator: currentUser(c),
		Limit:   limit,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	res := make([]Quiz, 0, len(qs))
	for _, q := range qs {
		res = append(res, toQuiz(q, true))
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": res})
}

func (a *API) UpdateQuiz(c *gin.Context) {
	var d quiz.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		renderError(c, bindError(err))
		return
	}

	q, err := a.qs.UpdateQuiz(c.Request.Context(), quiz.UpdateQuizRequest{
		QuizID:    c.Param("id"),
		Requester: currentUser(c),
		Draft:     d,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuiz(*q, true))
}

// DeactivateQuiz serves DELETE. Quizzes are only ever soft-deleted.
func (a *API) DeactivateQuiz(c *gin.Context) {
	a.setActive(c, false)
}

func (a *API) ActivateQuiz(c *gin.Context) {
	a.setActive(c, true)
}

func (a *API) setActive(c *gin.Context, active bool) {
	q, err := a.qs.SetActive(c.Request.Context(), quiz.SetActiveRequest{
		QuizID:    c.Param("id"),
		Requester: currentUser(c),
		Active:    active,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuiz(*q, true))
}

func (a *API) GetQuizForTaking(c *gin.Context) {
	q, err := a.qs.GetQuizForTaking(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuiz(*q, false))
}

func (a *API) GetQuizStats(c *gin.Context) {
	st, err := a.qs.GetQuizStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuizStats(*st))
}

func (a *API) SubmitQuiz(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, bindError(err))
		return
	}

	answers := make([]scoring.Answer, 0, len(req.Answers))
	for _, ans := range req.Answers {
		answers = append(answers, scoring.Answer{
			QuestionIndex:  ans.QuestionIndex,
			SelectedAnswer: ans.SelectedAnswer,
		})
	}

	resp, err := a.sub.Submit(c.Request.Context(), submission.SubmitRequest{
		QuizID:    c.Param("id"),
		User:      currentUser(c),
		Answers:   answers,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSubmitResponse(*resp))
}

func (a *API) GetLeaderboard(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		renderError(c, err)
		return
	}

	quizID := c.Param("id")
	if _, err := a.qs.GetAvailableQuiz(c.Request.Context(), quizID); err != nil {
		renderError(c, err)
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		QuizID: quizID,
		Limit:  limit,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}
