package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-anonymizer/internal/domain"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "anonymizer:session:"

// CachedSessionRepository is a read-through Redis cache in front of another
// SessionRepository. Writes evict the cached entry rather than replacing it, so two racing
// saves cannot leave the cache holding the one the database did not keep. Cache failures
// are logged and never fail a request.
type CachedSessionRepository struct {
	next   domain.SessionRepository
	client *redis.Client
	ttl    time.Duration
	logger domain.Logger
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewCachedSessionRepository(next domain.SessionRepository, client *redis.Client, ttl time.Duration, logger domain.Logger) *CachedSessionRepository {
	return &CachedSessionRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (c *CachedSessionRepository) Create(ctx context.Context, session *domain.Session, token string) error {
	if err := c.next.Create(ctx, session, token); err != nil {
		return err
	}
	c.store(ctx, session)
	return nil
}

func (c *CachedSessionRepository) Update(ctx context.Context, session *domain.Session, token string) error {
	err := c.next.Update(ctx, session, token)
	c.evict(ctx, session.SessionID)
	return err
}

func (c *CachedSessionRepository) GetByID(ctx context.Context, id string, token string) (*domain.Session, error) {
	data, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	if err == nil {
		var session domain.Session
		if err := json.Unmarshal(data, &session); err == nil {
			c.logger.Debug("Session cache hit", "session_id", id)
			return &session, nil
		}
		c.logger.Warn("Dropping corrupted session cache entry", "session_id", id)
		c.evict(ctx, id)
	} else if err != redis.Nil {
		c.logger.Error("Session cache lookup failed", err, "session_id", id)
	}

	session, err := c.next.GetByID(ctx, id, token)
	if err != nil {
		return nil, err
	}
	c.store(ctx, session)
	return session, nil
}

// ListByUser always reads through; listings are not cached.
func (c *CachedSessionRepository) ListByUser(ctx context.Context, userID string, token string) ([]*domain.Session, error) {
	return c.next.ListByUser(ctx, userID, token)
}

func (c *CachedSessionRepository) Delete(ctx context.Context, id string, token string) error {
	if err := c.next.Delete(ctx, id, token); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *CachedSessionRepository) store(ctx context.Context, session *domain.Session) {
	data, err := json.Marshal(session)
	if err != nil {
		c.logger.Error("Failed to marshal session for caching", err, "session_id", session.SessionID)
		return
	}
	if err := c.client.Set(ctx, sessionKey(session.SessionID), data, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to cache session", err, "session_id", session.SessionID)
	}
}

func (c *CachedSessionRepository) evict(ctx context.Context, id string) {
	if err := c.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		c.logger.Error("Failed to evict cached session", err, "session_id", id)
	}
}
