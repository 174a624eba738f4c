// Package api exposes the quiz services over HTTP and gRPC and fans service events out to
// Redis pub/sub subscribers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizhub/internal/auth"
	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/leaderboard"
	"github.com/victornm/quizhub/internal/quiz"
	"github.com/victornm/quizhub/internal/score"
	"github.com/victornm/quizhub/internal/submission"
	"github.com/victornm/quizhub/internal/user"
)

type Config struct {
	Router       gin.IRouter
	GRPC         *grpc.Server
	EventBus     *event.Bus
	Auth         *auth.Authenticator
	User         *user.Service
	Quiz         *quiz.Service
	Score        *score.Service
	Submission   *submission.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
	// CheckOrigin guards websocket upgrades. Every origin is accepted when nil.
	CheckOrigin func(r *http.Request) bool
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type API struct {
	auth *auth.Authenticator
	us   *user.Service
	qs   *quiz.Service
	ss   *score.Service
	sub  *submission.Service
	ls   *leaderboard.Service

	redis    Redis
	prefix   string
	upgrader websocket.Upgrader
}

func New(c Config) *API {
	a := &API{
		auth:   c.Auth,
		us:     c.User,
		qs:     c.Quiz,
		ss:     c.Score,
		sub:    c.Submission,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     c.CheckOrigin,
		},
	}

	if a.upgrader.CheckOrigin == nil {
		a.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	// HTTP APIs
	a.routes(c.Router)

	// gRPC APIs
	if c.GRPC != nil {
		healthpb.RegisterHealthServer(c.GRPC, health.NewServer())
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		return a.PublishScoreRecorded(ctx, e.(domain.EventScoreRecorded))
	})

	return a
}

func (a *API) routes(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ws/quizzes/:id/leaderboard", a.StreamLeaderboard)

	g := r.Group("/api")
	g.GET("/quizzes/:id", a.GetQuizForTaking)
	g.GET("/quizzes/:id/leaderboard", a.GetLeaderboard)

	authed := g.Group("", a.authenticate)

	authed.GET("/users/me", a.GetMe)
	authed.GET("/users/me/quizzes", a.ListMyQuizzes)

	authed.POST("/quizzes", a.CreateQuiz)
	authed.PUT("/quizzes/:id", a.UpdateQuiz)
	authed.DELETE("/quizzes/:id", a.DeactivateQuiz)
	authed.POST("/quizzes/:id/activate", a.ActivateQuiz)
	authed.GET("/quizzes/:id/stats", a.GetQuizStats)
	authed.POST("/quizzes/:id/submit", a.SubmitQuiz)

	authed.GET("/scores/history", a.GetScoreHistory)
	authed.GET("/scores/overview", a.GetScoreOverview)
	authed.GET("/scores/category/:category", a.GetCategoryOverview)
	authed.GET("/scores/quiz/:quizId/best", a.GetBestScore)
	authed.GET("/scores/:id", a.GetScoreDetail)
}

// renderError writes err as the response body. Untyped errors become opaque internal errors.
func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

func bindError(err error) error {
	return errors.Validation([]errors.FieldViolation{{Field: "body", Reason: err.Error()}})
}

// queryLimit reads the limit query parameter. Zero lets the service apply its default.
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.Validation([]errors.FieldViolation{{Field: "limit", Reason: "must be a positive integer"}})
	}

	return n, nil
}
