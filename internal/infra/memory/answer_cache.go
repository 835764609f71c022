package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// AnswerCache is an in-memory implementation of questiongen.AnswerCache.
type AnswerCache struct {
	mu      sync.RWMutex
	answers map[string][]domain.GeneratedAnswer
}

func NewAnswerCache() *AnswerCache {
	return &AnswerCache{answers: make(map[string][]domain.GeneratedAnswer)}
}

func (c *AnswerCache) Get(_ context.Context, questionID string) ([]domain.GeneratedAnswer, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	answers, ok := c.answers[questionID]
	if !ok {
		return nil, false, nil
	}
	out := make([]domain.GeneratedAnswer, len(answers))
	copy(out, answers)
	return out, true, nil
}

func (c *AnswerCache) Put(_ context.Context, questionID string, answers []domain.GeneratedAnswer) error {
	stored := make([]domain.GeneratedAnswer, len(answers))
	copy(stored, answers)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[questionID] = stored
	return nil
}
