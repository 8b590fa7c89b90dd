package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Alert is the payload handed to the delivery worker for one fresh match.
// Rendering and sending happen downstream; this package only enqueues.
type Alert struct {
	WatchlistID   uuid.UUID `json:"watchlist_id"`
	WatchlistName string    `json:"watchlist_name"`
	NoticeID      uuid.UUID `json:"notice_id"`
	NoticeTitle   string    `json:"notice_title"`
	NoticeURL     string    `json:"notice_url"`
	Email         string    `json:"email"`
	Explanation   string    `json:"explanation"`
	Score         int       `json:"score"`
	QueuedAt      time.Time `json:"queued_at"`
}

// Dispatcher pushes alerts toward their delivery channel. Implementations
// must be safe for concurrent use and must never block a matching pass on
// delivery problems.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert Alert) error
}

// RedisDispatcher enqueues alerts on a Redis list consumed by the mail
// worker. Delivery failures stay on the worker side; here the only
// failure mode is the enqueue itself.
type RedisDispatcher struct {
	client *redis.Client
	queue  string
	log    *zap.Logger
}

func NewRedisDispatcher(client *redis.Client, queue string, log *zap.Logger) *RedisDispatcher {
	if queue == "" {
		queue = "tenderwatch:alerts"
	}
	return &RedisDispatcher{client: client, queue: queue, log: log}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, alert Alert) error {
	alert.QueuedAt = time.Now().UTC()
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	if err := d.client.LPush(ctx, d.queue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	d.log.Debug("alert queued",
		zap.String("watchlist", alert.WatchlistName),
		zap.String("notice", alert.NoticeID.String()))
	return nil
}

// NoopDispatcher drops alerts. Used when no Redis URL is configured and
// in tests.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, Alert) error { return nil }
