package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizhub/internal/domain"
)

// Cache keeps full quiz definitions close to the submission path.
//
// Every quiz has a version that Delete bumps. Get reports the version it saw, and Set only
// stores a definition when the version is still the same, so a fill that read the store
// before an invalidation cannot write the old definition back.
type Cache interface {
	Get(ctx context.Context, quizID string) (q domain.Quiz, version int64, ok bool, err error)
	Set(ctx context.Context, q domain.Quiz, version int64) error
	Delete(ctx context.Context, quizID string) error
}

// versionTTL outlives any in-flight fill by a wide margin.
const versionTTL = 24 * time.Hour

var (
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

type RedisCache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

const defaultTTL = 5 * time.Minute

func NewRedisCache(r redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &RedisCache{
		redis:  r,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, quizID string) (domain.Quiz, int64, bool, error) {
	vals, err := c.redis.MGet(ctx, c.key(quizID), c.versionKey(quizID)).Result()
	if err != nil {
		return domain.Quiz{}, 0, false, fmt.Errorf("get quiz cache: %w", err)
	}

	var version int64
	if s, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(s, 10, 64); err != nil {
			return domain.Quiz{}, 0, false, fmt.Errorf("parse quiz cache version %q: %w", s, err)
		}
	}

	s, ok := vals[0].(string)
	if !ok {
		return domain.Quiz{}, version, false, nil
	}

	var q domain.Quiz
	if err := json.Unmarshal([]byte(s), &q); err != nil {
		return domain.Quiz{}, version, false, fmt.Errorf("unmarshal quiz cache: %w", err)
	}

	return q, version, true, nil
}

func (c *RedisCache) Set(ctx context.Context, q domain.Quiz, version int64) error {
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quiz cache: %w", err)
	}

	keys := []string{c.key(q.QuizID), c.versionKey(q.QuizID)}
	return setIfVersion.Run(ctx, c.redis, keys, version, b, jitter(c.ttl).Milliseconds()).Err()
}

func (c *RedisCache) Delete(ctx context.Context, quizID string) error {
	keys := []string{c.key(quizID), c.versionKey(quizID)}
	return bumpVersion.Run(ctx, c.redis, keys, versionTTL.Milliseconds()).Err()
}

// Keys of one quiz share a hash tag so the scripts stay on one cluster slot.
func (c *RedisCache) key(quizID string) string {
	return fmt.Sprintf("%s:quiz:{%s}", c.prefix, quizID)
}

func (c *RedisCache) versionKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:{%s}:version", c.prefix, quizID)
}

// jitter spreads expirations over [ttl, ttl*1.1) so entries filled together do not expire together.
func jitter(ttl time.Duration) time.Duration {
	return ttl + rand.N(ttl/10+1)
}
