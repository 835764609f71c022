package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Liveness marks running event sessions in Redis so operators can see which
// events are live. Best effort only; session state itself stays in-process.
type Liveness struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLiveness(client *redis.Client, ttl time.Duration) *Liveness {
	return &Liveness{client: client, ttl: ttl}
}

func (l *Liveness) MarkLive(eventID string) {
	_ = l.client.Set(context.Background(), l.key(eventID), "1", l.ttl).Err()
}

func (l *Liveness) MarkStopped(eventID string) {
	_ = l.client.Del(context.Background(), l.key(eventID)).Err()
}

func (l *Liveness) key(eventID string) string {
	return "quiz:event:" + eventID + ":live"
}
