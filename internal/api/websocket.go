package api

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/leaderboard"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StreamLeaderboard upgrades to a websocket that receives the current leaderboard of a quiz
// and then every leaderboard.updated notification published for it.
func (a *API) StreamLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	quizID := c.Param("id")

	if _, err := a.qs.GetAvailableQuiz(ctx, quizID); err != nil {
		renderError(c, err)
		return
	}

	l, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{QuizID: quizID})
	if err != nil {
		renderError(c, err)
		return
	}

	// Subscribe before upgrading so no update published in between is lost.
	sub := a.redis.Subscribe(ctx, a.quizLeaderboardChannel(quizID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		renderError(c, err)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "api: websocket upgrade failed", "quiz_id", quizID, "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)

		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	first, err := json.Marshal(Notification{
		Event: domain.EventNameLeaderboardUpdated,
		Data:  toLeaderboard(*l),
	})
	if err != nil {
		slog.ErrorContext(ctx, "api: marshal leaderboard failed", "quiz_id", quizID, "error", err)
		return
	}

	if err := write(conn, websocket.TextMessage, first); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	messages := sub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := write(conn, websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}

		case <-ping.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return

		case <-ctx.Done():
			return
		}
	}
}

func write(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}
