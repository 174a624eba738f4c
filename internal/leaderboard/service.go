package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/score"
)

const (
	publishInterval = 200 * time.Millisecond
	// windowLease frees the window of an owner that died mid-window.
	windowLease   = 10 * publishInterval
	cachedEntries = 100
	defaultTTL    = time.Minute
	versionTTL    = 24 * time.Hour
)

var (
	// KEYS: time, pending. ARGV: lease in ms. Returns 1 to the new window owner.
	acquireWindow = redis.NewScript(`
if redis.call("SET", KEYS[1], "1", "NX", "PX", ARGV[1]) then
	return 1
end
redis.call("SET", KEYS[2], "1", "PX", ARGV[1])
return 0
`)

	// KEYS: time, pending. ARGV: lease in ms. Returns 1 when the owner has to publish again.
	renewWindow = redis.NewScript(`
if redis.call("DEL", KEYS[2]) == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	return 1
end
redis.call("DEL", KEYS[1])
return 0
`)

	// KEYS: entry, version. ARGV: expected version, payload, ttl in ms.
	setIfVersion = redis.NewScript(`
local v = redis.call("GET", KEYS[2]) or "0"
if v ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

	// KEYS: entry, version. ARGV: version ttl in ms.
	bumpVersion = redis.NewScript(`
redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
redis.call("DEL", KEYS[1])
return 1
`)
)

type Config struct {
	EventBus *event.Bus
	Score    *score.Service
	Redis    redis.UniversalClient
	Prefix   string
	TTL      time.Duration
}

type Service struct {
	eb     *event.Bus
	score  *score.Service
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		score:  c.Score,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}

	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}

	s.eb.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreRecorded))
	})

	return s
}

type GetLeaderboardRequest struct {
	QuizID string
	Limit  int
}

// GetLeaderboard returns the top scores of a quiz. The top entries are cached in Redis and
// the ledger is read on a miss. Limits above the cached size are capped.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	l, version, err := s.cached(ctx, req.QuizID)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: read cache failed", "quiz_id", req.QuizID, "error", err)
	}

	if l == nil {
		if l, err = s.load(ctx, req.QuizID, version, err == nil); err != nil {
			return nil, err
		}
	}

	return truncate(l, req.Limit), nil
}

func (s *Service) cached(ctx context.Context, quizID string) (*domain.Leaderboard, int64, error) {
	vals, err := s.redis.MGet(ctx, s.getLeaderboardKey(quizID), s.getLeaderboardVersionKey(quizID)).Result()
	if err != nil {
		return nil, 0, err
	}

	var version int64
	if v, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("parse leaderboard version %q: %w", v, err)
		}
	}

	b, ok := vals[0].(string)
	if !ok {
		return nil, version, nil
	}

	var l domain.Leaderboard
	if err := json.Unmarshal([]byte(b), &l); err != nil {
		return nil, version, fmt.Errorf("unmarshal leaderboard: %w", err)
	}

	return &l, version, nil
}

// load reads the ledger and, when fill is set, caches the result unless the leaderboard was
// invalidated after version was read.
func (s *Service) load(ctx context.Context, quizID string, version int64, fill bool) (*domain.Leaderboard, error) {
	l, err := s.score.GetLeaderboard(ctx, score.GetLeaderboardRequest{
		QuizID: quizID,
		Limit:  cachedEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: quiz=%s: %w", quizID, err)
	}

	if !fill {
		return l, nil
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal leaderboard: %w", err)
	}

	keys := []string{s.getLeaderboardKey(quizID), s.getLeaderboardVersionKey(quizID)}
	if err := setIfVersion.Run(ctx, s.redis, keys, version, b, s.ttl.Milliseconds()).Err(); err != nil {
		slog.WarnContext(ctx, "leaderboard: fill cache failed", "quiz_id", quizID, "error", err)
	}

	return l, nil
}

// UpdateLeaderboard drops the cached leaderboard of the scored quiz and schedules a publication.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreRecorded) error {
	quizID := e.Score.QuizID

	keys := []string{s.getLeaderboardKey(quizID), s.getLeaderboardVersionKey(quizID)}
	if err := bumpVersion.Run(ctx, s.redis, keys, versionTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("invalidate leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, quizID)
}

// schedulePublishLeaderboard publishes at most one leaderboard per quiz per publish interval.
// The first score of a burst publishes right away and becomes the window owner. Scores landing
// inside the window only mark the quiz as pending; the owner publishes the latest state once
// the window ends and keeps going while scores keep arriving.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, quizID string) error {
	keys := []string{s.getLeaderboardTimeKey(quizID), s.getLeaderboardPendingKey(quizID)}

	// The window lives in Redis so several instances share it.
	owner, err := acquireWindow.Run(ctx, s.redis, keys, windowLease.Milliseconds()).Bool()
	if err != nil {
		return fmt.Errorf("acquire publish window: %w", err)
	}

	if !owner {
		return nil
	}

	for {
		if err := s.publishLeaderboard(ctx, quizID); err != nil {
			s.releaseWindow(ctx, quizID)
			return err
		}

		select {
		case <-ctx.Done():
			s.releaseWindow(ctx, quizID)
			return ctx.Err()
		case <-time.After(publishInterval):
		}

		pending, err := renewWindow.Run(ctx, s.redis, keys, windowLease.Milliseconds()).Bool()
		if err != nil {
			return fmt.Errorf("renew publish window: %w", err)
		}

		if !pending {
			return nil
		}
	}
}

// releaseWindow gives the window up early. A score that arrives later starts a new one.
func (s *Service) releaseWindow(ctx context.Context, quizID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.redis.Del(ctx, s.getLeaderboardTimeKey(quizID)).Err(); err != nil {
		slog.ErrorContext(ctx, "leaderboard: release publish window failed", "quiz_id", quizID, "error", err)
	}
}

func (s *Service) publishLeaderboard(ctx context.Context, quizID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		QuizID: quizID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: quiz=%s: %w", quizID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

// Keys of one quiz share a hash tag so the scripts stay on one cluster slot.
func (s *Service) getLeaderboardKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:{%s}:leaderboard", s.prefix, quizID)
}

func (s *Service) getLeaderboardVersionKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:{%s}:leaderboard:version", s.prefix, quizID)
}

func (s *Service) getLeaderboardTimeKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:{%s}:leaderboard:time", s.prefix, quizID)
}

func (s *Service) getLeaderboardPendingKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:{%s}:leaderboard:pending", s.prefix, quizID)
}

func truncate(l *domain.Leaderboard, limit int) *domain.Leaderboard {
	if limit <= 0 {
		limit = 10
	}

	out := *l
	if len(out.Entries) > limit {
		out.Entries = out.Entries[:limit]
	}
	return &out
}
