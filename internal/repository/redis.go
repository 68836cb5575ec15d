package repository

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	redistrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/redis/go-redis.v9"
)

const sessionKeyPrefix = "iiifviewer:session:"

type redisCommands interface {
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisClient stores the session snapshots. Every read extends the expiration of the key.
type RedisClient struct {
	baseClient redisCommands
	ttl        time.Duration
}

// NewRedisClient connects to the Redis at the given URL ('redis://' or 'rediss://'). A bare 'host:port' address is
// accepted as well and uses TLS. Non empty username and password override the URL ones.
func NewRedisClient(rawURL, username, password string, ttl time.Duration, enableTracing bool) (RedisClient, error) {
	if ttl <= 0 {
		return RedisClient{}, errors.New("the session ttl must be positive")
	}

	options, err := redis.ParseURL(rawURL)
	if err != nil {
		options = &redis.Options{
			Addr:      rawURL,
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	if username != "" {
		options.Username = username
	}
	if password != "" {
		options.Password = password
	}

	var rdb redis.UniversalClient
	if enableTracing {
		rdb = redistrace.NewClient(options)
	} else {
		rdb = redis.NewClient(options)
	}

	ctx, ctxcancel := context.WithTimeout(context.Background(), time.Second)
	defer ctxcancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return RedisClient{}, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return RedisClient{baseClient: rdb, ttl: ttl}, nil
}

// Get returns the session payload or nil when the session doesn't exist.
func (rc RedisClient) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	result, err := rc.baseClient.GetEx(ctx, sessionKey(id), rc.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get the key '%s': %w", sessionKey(id), err)
	}
	return io.NopCloser(bytes.NewReader(result)), nil
}

// Put stores the session payload.
func (rc RedisClient) Put(ctx context.Context, id string, payload io.Reader) error {
	content, err := io.ReadAll(payload)
	if err != nil {
		return fmt.Errorf("failed to read the payload: %w", err)
	}
	if err := rc.baseClient.Set(ctx, sessionKey(id), content, rc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set the key '%s': %w", sessionKey(id), err)
	}
	return nil
}

// Close the connection pool.
func (rc RedisClient) Close() error {
	return rc.baseClient.Close()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
