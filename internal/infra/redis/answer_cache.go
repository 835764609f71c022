package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"livequiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AnswerCache stores each question's generated answer set as JSON under one
// key. The cached content never changes after the first write; reads shuffle
// display order in the caller, not here.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redis.Client, ttl time.Duration) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl}
}

func (c *AnswerCache) Get(ctx context.Context, questionID string) ([]domain.GeneratedAnswer, bool, error) {
	raw, err := c.client.Get(ctx, c.key(questionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached answers: %w", err)
	}
	var answers []domain.GeneratedAnswer
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached answers: %w", err)
	}
	return answers, true, nil
}

func (c *AnswerCache) Put(ctx context.Context, questionID string, answers []domain.GeneratedAnswer) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if err := c.client.Set(ctx, c.key(questionID), raw, c.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache answers: %w", err)
	}
	return nil
}

func (c *AnswerCache) key(questionID string) string {
	return "quiz:question:" + questionID + ":answers"
}

func (c *AnswerCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations; the package-level source
	// is safe for concurrent Put callers
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
