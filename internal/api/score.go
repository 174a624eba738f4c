package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizhub/internal/score"
	"github.com/victornm/quizhub/internal/submission"
)

func (a *API) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, toUser(currentUser(c)))
}

func (a *API) GetScoreHistory(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		renderError(c, err)
		return
	}

	scores, err := a.ss.GetUserHistory(c.Request.Context(), score.GetUserHistoryRequest{
		UserID: currentUser(c).UserID,
		Limit:  limit,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"scores": toScores(scores)})
}

func (a *API) GetScoreOverview(c *gin.Context) {
	o, err := a.ss.GetOverview(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScoreOverview(*o))
}

func (a *API) GetCategoryOverview(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		renderError(c, err)
		return
	}

	o, err := a.ss.GetCategoryOverview(c.Request.Context(), score.GetCategoryOverviewRequest{
		UserID:   currentUser(c).UserID,
		Category: c.Param("category"),
		Limit:    limit,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCategoryOverview(*o))
}

func (a *API) GetBestScore(c *gin.Context) {
	sc, err := a.ss.GetBestScore(c.Request.Context(), currentUser(c).UserID, c.Param("quizId"))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScore(*sc))
}

func (a *API) GetScoreDetail(c *gin.Context) {
	d, err := a.sub.GetScoreDetail(c.Request.Context(), submission.GetScoreDetailRequest{
		ScoreID:   c.Param("id"),
		Requester: currentUser(c),
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScoreDetail(*d))
}
