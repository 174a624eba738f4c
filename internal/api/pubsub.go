package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizhub/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated notifies the quiz channel and every user ranked on the leaderboard.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, a.quizLeaderboardChannel(data.QuizID), e.Name(), data)
	})

	notified := make(map[string]struct{}, len(data.Entries))
	for _, entry := range data.Entries {
		if _, ok := notified[entry.UserID]; ok {
			continue
		}
		notified[entry.UserID] = struct{}{}

		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.UserID), e.Name(), data)
		})
	}

	return eg.Wait()
}

// PublishScoreRecorded tells the user that one of their attempts has been scored.
func (a *API) PublishScoreRecorded(ctx context.Context, e domain.EventScoreRecorded) error {
	return a.publishNotification(ctx, a.userChannel(e.Score.UserID), e.Name(), toScore(e.Score))
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) userChannel(userID string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, userID)
}

func (a *API) quizLeaderboardChannel(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:leaderboard", a.prefix, quizID)
}
