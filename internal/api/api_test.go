package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizhub/internal/api"
	"github.com/victornm/quizhub/internal/auth"
	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/leaderboard"
	"github.com/victornm/quizhub/internal/quiz"
	"github.com/victornm/quizhub/internal/score"
	"github.com/victornm/quizhub/internal/scoring"
	"github.com/victornm/quizhub/internal/stats"
	"github.com/victornm/quizhub/internal/storage/memory"
	"github.com/victornm/quizhub/internal/submission"
	"github.com/victornm/quizhub/internal/user"
)

var (
	author = domain.User{UserID: "u-author", Username: "author", Role: domain.RoleUser}
	taker  = domain.User{UserID: "u-taker", Username: "taker", Role: domain.RoleUser}
	admin  = domain.User{UserID: "u-admin", Username: "admin", Role: domain.RoleAdmin}

	anonymous domain.User
)

const quizBody = `{
	"title": "Go basics",
	"description": "Warm-up questions",
	"category": "programming",
	"questions": [
		{"question": "First?", "options": ["a", "b"], "correctAnswer": 0, "explanation": "a it is", "points": 1},
		{"question": "Second?", "options": ["x", "y", "z"], "correctAnswer": 2, "points": 2}
	]
}`

func TestAPI_Authentication(t *testing.T) {
	f := makeFixture(t)

	tests := map[string]struct {
		header string
		status int
	}{
		"should reject a missing token":      {header: "", status: http.StatusUnauthorized},
		"should reject a malformed header":   {header: "Token abc", status: http.StatusUnauthorized},
		"should reject a forged token":       {header: "Bearer not-a-jwt", status: http.StatusUnauthorized},
		"should reject an unknown user":      {header: "Bearer " + f.token(t, "ghost"), status: http.StatusUnauthorized},
		"should accept a valid bearer token": {header: "Bearer " + f.token(t, taker.UserID), status: http.StatusOK},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAPI_QuizLifecycle(t *testing.T) {
	f := makeFixture(t)

	var created api.Quiz
	w := f.do(t, http.MethodPost, "/api/quizzes", author, quizBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &created)
	require.Equal(t, 3, created.TotalPoints)
	require.Equal(t, "medium", created.Difficulty)
	require.NotNil(t, created.Questions[1].CorrectAnswer, "the author sees the answer key")

	// taking view is public and hides the answer key
	w = f.do(t, http.MethodGet, "/api/quizzes/"+created.QuizID, anonymous, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotContains(t, w.Body.String(), "correctAnswer")
	require.NotContains(t, w.Body.String(), "explanation")

	// only the author or an admin may edit
	w = f.do(t, http.MethodPut, "/api/quizzes/"+created.QuizID, taker, quizBody)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/api/quizzes/"+created.QuizID, admin, strings.Replace(quizBody, "Go basics", "Go basics II", 1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// delete is a soft disable
	w = f.do(t, http.MethodDelete, "/api/quizzes/"+created.QuizID, author, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/quizzes/"+created.QuizID, anonymous, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	stored, err := f.store.GetQuiz(context.Background(), created.QuizID)
	require.NoError(t, err)
	require.Equal(t, "Go basics II", stored.Title)

	w = f.do(t, http.MethodPost, "/api/quizzes/"+created.QuizID+"/activate", author, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/quizzes/"+created.QuizID, taker, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_ListMyQuizzes(t *testing.T) {
	f := makeFixture(t)
	q := f.createQuiz(t)

	w := f.do(t, http.MethodDelete, "/api/quizzes/"+q.QuizID, author, "")
	require.Equal(t, http.StatusOK, w.Code)

	tests := map[string]struct {
		as     domain.User
		status int
		count  int
	}{
		"should list the author's quizzes, inactive ones included": {as: author, status: http.StatusOK, count: 1},
		"should be empty for a user without quizzes":               {as: taker, status: http.StatusOK, count: 0},
		"should require authentication":                            {as: anonymous, status: http.StatusUnauthorized},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/api/users/me/quizzes", tt.as, "")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}

			var resp struct {
				Quizzes []api.Quiz `json:"quizzes"`
			}
			decode(t, w, &resp)
			require.Len(t, resp.Quizzes, tt.count)

			for _, got := range resp.Quizzes {
				require.Equal(t, q.QuizID, got.QuizID)
				require.False(t, got.IsActive)
				require.NotNil(t, got.Questions[0].CorrectAnswer, "the author sees the answer key")
			}
		})
	}
}

func TestAPI_CreateQuiz_Validation(t *testing.T) {
	f := makeFixture(t)

	body := `{"title": "", "description": "d", "category": "c", "difficulty": "insane",
		"questions": [{"question": "Q?", "options": ["only"], "correctAnswer": 3}]}`

	w := f.do(t, http.MethodPost, "/api/quizzes", author, body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Details []struct {
				Field string `json:"field"`
			} `json:"details"`
		} `json:"error"`
	}
	decode(t, w, &resp)

	var fields []string
	for _, d := range resp.Error.Details {
		fields = append(fields, d.Field)
	}
	require.ElementsMatch(t, []string{"title", "difficulty", "questions[0].options", "questions[0].correctAnswer"}, fields)

	w = f.do(t, http.MethodPost, "/api/quizzes", author, `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Submit(t *testing.T) {
	f := makeFixture(t)
	q := f.createQuiz(t)

	sub := f.redis.Subscribe(context.Background(), "quizhub:user:"+taker.UserID)
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/quizzes/"+q.QuizID+"/submit", taker,
		`{"answers": [{"questionIndex": 0, "selectedAnswer": 0}, {"questionIndex": 1, "selectedAnswer": 1}], "timeTaken": 75}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.SubmitResponse
	decode(t, w, &resp)
	require.NotEmpty(t, resp.ScoreID)
	require.Equal(t, 1, resp.Score)
	require.Equal(t, 3, resp.TotalPoints)
	require.Equal(t, 33, resp.Percentage)
	require.False(t, resp.Passed)
	require.Equal(t, 75, resp.TimeTaken)
	require.Len(t, resp.Answers, 2)

	// the user channel also carries leaderboard updates for ranked users
	timeout := time.After(2 * time.Second)
	for recorded := false; !recorded; {
		select {
		case msg := <-sub.Channel():
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			if n.Event != domain.EventNameScoreRecorded {
				continue
			}

			var sc api.Score
			require.NoError(t, json.Unmarshal(n.Data, &sc))
			require.Equal(t, resp.ScoreID, sc.ScoreID)
			recorded = true
		case <-timeout:
			t.Fatal("should publish score.recorded to the user channel")
		}
	}

	// detail is restricted to the owner or an admin
	w = f.do(t, http.MethodGet, "/api/scores/"+resp.ScoreID, author, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/scores/"+resp.ScoreID, taker, "")
	require.Equal(t, http.StatusOK, w.Code)

	var detail api.ScoreDetail
	decode(t, w, &detail)
	require.Equal(t, []api.AnswerDetail{
		{QuestionIndex: 0, Question: "First?", SelectedAnswer: "a", CorrectAnswer: "a", Explanation: "a it is", IsCorrect: true, PointsEarned: 1},
		{QuestionIndex: 1, Question: "Second?", SelectedAnswer: "y", CorrectAnswer: "z"},
	}, detail.Details)

	w = f.do(t, http.MethodGet, "/api/scores/history?limit=5", taker, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), resp.ScoreID)

	w = f.do(t, http.MethodGet, "/api/scores/history?limit=zero", taker, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/scores/quiz/"+q.QuizID+"/best", taker, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/scores/overview", taker, "")
	require.Equal(t, http.StatusOK, w.Code)

	var overview api.ScoreOverview
	decode(t, w, &overview)
	require.EqualValues(t, 1, overview.TotalQuizzes)
	require.Equal(t, "33.00", overview.AveragePercentage)
	require.Equal(t, []api.CategoryStats{{Category: "programming", Attempts: 1, AveragePercentage: "33.00"}}, overview.CategoryStats)
	require.Len(t, overview.RecentScores, 1)
	require.Equal(t, resp.ScoreID, overview.RecentScores[0].ScoreID)

	w = f.do(t, http.MethodGet, "/api/scores/category/programming", taker, "")
	require.Equal(t, http.StatusOK, w.Code)

	var byCategory api.CategoryOverview
	decode(t, w, &byCategory)
	require.Equal(t, "programming", byCategory.Category)
	require.EqualValues(t, 1, byCategory.Stats.TotalQuizzes)
	require.Len(t, byCategory.Scores, 1)

	w = f.do(t, http.MethodGet, "/api/scores/category/history", taker, "")
	require.Equal(t, http.StatusOK, w.Code)

	decode(t, w, &byCategory)
	require.Zero(t, byCategory.Stats.TotalQuizzes)
	require.Empty(t, byCategory.Scores)

	f.eb.Stop()

	w = f.do(t, http.MethodGet, "/api/quizzes/"+q.QuizID+"/stats", taker, "")
	require.Equal(t, http.StatusOK, w.Code)

	var st api.QuizStats
	decode(t, w, &st)
	require.EqualValues(t, 1, st.TotalAttempts)
	require.Equal(t, "1.00", st.AverageScore)
}

func TestAPI_Submit_UnavailableQuiz(t *testing.T) {
	f := makeFixture(t)

	w := f.do(t, http.MethodPost, "/api/quizzes/missing/submit", taker, `{"answers": [], "timeTaken": 1}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_GetLeaderboard(t *testing.T) {
	f := makeFixture(t)
	q := f.createQuiz(t)

	for _, body := range []string{
		`{"answers": [{"questionIndex": 0, "selectedAnswer": 0}], "timeTaken": 120}`,
		`{"answers": [{"questionIndex": 0, "selectedAnswer": 0}], "timeTaken": 90}`,
	} {
		w := f.do(t, http.MethodPost, "/api/quizzes/"+q.QuizID+"/submit", taker, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	f.eb.Stop()

	w := f.do(t, http.MethodGet, "/api/quizzes/"+q.QuizID+"/leaderboard?limit=10", anonymous, "")
	require.Equal(t, http.StatusOK, w.Code)

	var l api.Leaderboard
	decode(t, w, &l)
	require.Len(t, l.Entries, 2)
	require.Equal(t, 90, l.Entries[0].TimeTaken, "faster attempt should rank first on a tie")
	require.Equal(t, 1, l.Entries[0].Rank)
}

func TestAPI_StreamLeaderboard(t *testing.T) {
	f := makeFixture(t)
	q := f.createQuiz(t)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quizzes/" + q.QuizID + "/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first api.Notification
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, domain.EventNameLeaderboardUpdated, first.Event)

	w := f.do(t, http.MethodPost, "/api/quizzes/"+q.QuizID+"/submit", taker,
		`{"answers": [{"questionIndex": 1, "selectedAnswer": 2}], "timeTaken": 10}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var update struct {
		Event string          `json:"event"`
		Data  api.Leaderboard `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	require.Equal(t, domain.EventNameLeaderboardUpdated, update.Event)
	require.Len(t, update.Data.Entries, 1)
	require.Equal(t, taker.UserID, update.Data.Entries[0].UserID)
}

type fixture struct {
	router *gin.Engine
	store  *memory.Store
	auth   *auth.Authenticator
	redis  redis.UniversalClient
	eb     *event.Bus
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()

	tok, err := f.auth.Issue(userID)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path string, as domain.User, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if as.UserID != "" {
		r.Header.Set("Authorization", "Bearer "+f.token(t, as.UserID))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func (f *fixture) createQuiz(t *testing.T) api.Quiz {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/quizzes", author, quizBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var q api.Quiz
	decode(t, w, &q)
	return q
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func makeFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	store := memory.New()
	for _, u := range []domain.User{author, taker, admin} {
		require.NoError(t, store.InsertUser(ctx, u))
	}

	eb := event.NewBus()
	authn := auth.NewAuthenticator("test-secret", time.Hour)

	st := stats.NewService(stats.Config{EventBus: eb, Store: store})
	qs := quiz.NewService(quiz.Config{
		EventBus: eb,
		Store:    store,
		Stats:    st,
		Cache:    quiz.NewRedisCache(rc, "quizhub", time.Minute),
	})
	ss := score.NewService(score.Config{EventBus: eb, Store: store})

	router := gin.New()
	api.New(api.Config{
		Router:   router,
		EventBus: eb,
		Auth:     authn,
		User:     user.NewService(user.Config{Store: store}),
		Quiz:     qs,
		Score:    ss,
		Submission: submission.NewService(submission.Config{
			EventBus: eb,
			Engine:   scoring.NewEngine(scoring.TimePolicyClamp),
			Quiz:     qs,
			Score:    ss,
			Stats:    st,
		}),
		Leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: eb,
			Score:    ss,
			Redis:    rc,
			Prefix:   "quizhub",
		}),
		Redis:        rc,
		PubsubPrefix: "quizhub",
	})

	return &fixture{
		router: router,
		store:  store,
		auth:   authn,
		redis:  rc,
		eb:     eb,
	}
}
