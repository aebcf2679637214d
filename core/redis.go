package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

const (
	redisSeriesKeyPrefix = "rememberme:series:"
	redisUserKeyPrefix   = "rememberme:user:"
)

// RedisTokenRepository stores remember-me series in redis hashes with a TTL
// slightly past the validity window; lazy expiry at validation still governs.
type RedisTokenRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenRepository(client *redis.Client, validity time.Duration) *RedisTokenRepository {
	return &RedisTokenRepository{client: client, ttl: validity + time.Hour}
}

func seriesKey(series string) string { return redisSeriesKeyPrefix + series }
func userKey(email string) string    { return redisUserKeyPrefix + email }

func (r *RedisTokenRepository) Create(ctx context.Context, token RememberMeToken) error {
	pipe := r.client.TxPipeline()
	key := seriesKey(token.Series)
	pipe.HSet(ctx, key,
		"token", token.Token,
		"email", token.Email,
		"last_used", token.LastUsed.UnixMilli(),
	)
	pipe.Expire(ctx, key, r.ttl)
	pipe.SAdd(ctx, userKey(token.Email), token.Series)
	pipe.Expire(ctx, userKey(token.Email), r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisTokenRepository) Find(ctx context.Context, series string) (*RememberMeToken, error) {
	vals, err := r.client.HGetAll(ctx, seriesKey(series)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	lastUsedMs, err := strconv.ParseInt(vals["last_used"], 10, 64)
	if err != nil {
		return nil, errors.New("corrupt remember-me record")
	}
	return &RememberMeToken{
		Series:   series,
		Token:    vals["token"],
		Email:    vals["email"],
		LastUsed: time.UnixMilli(lastUsedMs),
	}, nil
}

// rotateScript replaces the token value only when the stored value still
// matches, making the rotation a single conditional write.
var rotateScript = redis.NewScript(`
local t = redis.call('HGET', KEYS[1], 'token')
if t == ARGV[1] then
  redis.call('HSET', KEYS[1], 'token', ARGV[2], 'last_used', ARGV[3])
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  return 1
end
return 0
`)

func (r *RedisTokenRepository) Rotate(ctx context.Context, series, oldToken, newToken string, lastUsed time.Time) (bool, error) {
	res, err := rotateScript.Run(ctx, r.client, []string{seriesKey(series)},
		oldToken, newToken, lastUsed.UnixMilli(), r.ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, errors.New("unexpected rotate response type")
	}
	return n == 1, nil
}

func (r *RedisTokenRepository) DeleteSeries(ctx context.Context, series string) error {
	email, err := r.client.HGet(ctx, seriesKey(series), "email").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, seriesKey(series))
	if email != "" {
		pipe.SRem(ctx, userKey(email), series)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisTokenRepository) DeleteAllForUser(ctx context.Context, email string) error {
	series, err := r.client.SMembers(ctx, userKey(email)).Result()
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, s := range series {
		pipe.Del(ctx, seriesKey(s))
	}
	pipe.Del(ctx, userKey(email))
	_, err = pipe.Exec(ctx)
	return err
}
