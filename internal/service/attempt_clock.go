package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

const (
	untimedAttemptTTL   = 30 * 24 * time.Hour
	defaultAttemptGrace = 24 * time.Hour
)

// AttemptClock records when a student opened an assessment. The first
// recorded start wins; later calls return it unchanged.
type AttemptClock interface {
	Start(ctx context.Context, assessmentID, studentID uint, ttl time.Duration) (time.Time, error)
	StartedAt(ctx context.Context, assessmentID, studentID uint) (*time.Time, error)
}

// AttemptTTL returns how long a cached start is worth keeping for a time limit.
func AttemptTTL(timeLimitMinutes int, grace time.Duration) time.Duration {
	if timeLimitMinutes <= 0 {
		return untimedAttemptTTL
	}
	return time.Duration(timeLimitMinutes)*time.Minute + grace
}

func attemptKey(assessmentID, studentID uint) string {
	return fmt.Sprintf("assessment:attempt:%d:%d", assessmentID, studentID)
}

type storedAttemptClock struct {
	repo repository.AttemptRepository
	now  func() time.Time
}

// NewStoredAttemptClock keeps attempt starts in the database. Records never
// expire, so a start survives until the submission copies it.
func NewStoredAttemptClock(repo repository.AttemptRepository) AttemptClock {
	return &storedAttemptClock{repo: repo, now: time.Now}
}

func (c *storedAttemptClock) Start(ctx context.Context, assessmentID, studentID uint, _ time.Duration) (time.Time, error) {
	return c.repo.Begin(ctx, assessmentID, studentID, c.now().UTC())
}

func (c *storedAttemptClock) StartedAt(ctx context.Context, assessmentID, studentID uint) (*time.Time, error) {
	return c.repo.StartedAt(ctx, assessmentID, studentID)
}

type redisAttemptClock struct {
	client *redis.Client
	store  AttemptClock
}

// NewRedisAttemptClock caches starts from store in Redis. The store stays the
// source of truth: cache misses, expired keys and Redis errors all fall
// through to it.
func NewRedisAttemptClock(client *redis.Client, store AttemptClock) AttemptClock {
	return &redisAttemptClock{client: client, store: store}
}

func (c *redisAttemptClock) Start(ctx context.Context, assessmentID, studentID uint, ttl time.Duration) (time.Time, error) {
	if started, ok := c.cached(ctx, assessmentID, studentID); ok {
		return started, nil
	}

	started, err := c.store.Start(ctx, assessmentID, studentID, ttl)
	if err != nil {
		return time.Time{}, err
	}
	c.client.Set(ctx, attemptKey(assessmentID, studentID), started.Format(time.RFC3339Nano), ttl)
	return started, nil
}

func (c *redisAttemptClock) StartedAt(ctx context.Context, assessmentID, studentID uint) (*time.Time, error) {
	if started, ok := c.cached(ctx, assessmentID, studentID); ok {
		return &started, nil
	}
	return c.store.StartedAt(ctx, assessmentID, studentID)
}

func (c *redisAttemptClock) cached(ctx context.Context, assessmentID, studentID uint) (time.Time, bool) {
	value, err := c.client.Get(ctx, attemptKey(assessmentID, studentID)).Result()
	if err != nil {
		return time.Time{}, false
	}
	started, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return started, true
}
